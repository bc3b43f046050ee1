package region

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
)

// Scheme is the one-byte compression tag stored in front of each payload.
type Scheme byte

const (
	SchemeGzip Scheme = 1
	SchemeZlib Scheme = 2
	SchemeNone Scheme = 3

	// externalFlag marks a payload stored in a sidecar file.
	externalFlag Scheme = 0x80
)

func (s Scheme) String() string {
	switch s {
	case SchemeGzip:
		return "gzip"
	case SchemeZlib:
		return "zlib"
	case SchemeNone:
		return "none"
	}
	return fmt.Sprintf("scheme(%d)", byte(s))
}

// ParseScheme maps a configuration name to a Scheme.
func ParseScheme(name string) (Scheme, error) {
	switch strings.ToLower(name) {
	case "gzip":
		return SchemeGzip, nil
	case "zlib", "":
		return SchemeZlib, nil
	case "none", "uncompressed":
		return SchemeNone, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownScheme, name)
}

// Codec turns payload bytes into their stored form and back.
type Codec interface {
	NewWriter(w io.Writer) (io.WriteCloser, error)
	NewReader(r io.Reader) (io.ReadCloser, error)
}

var (
	codecsMu sync.RWMutex
	codecs   = map[Scheme]Codec{
		SchemeGzip: gzipCodec{},
		SchemeZlib: zlibCodec{},
		SchemeNone: noneCodec{},
	}
)

// RegisterCodec installs or replaces the codec for a scheme. Tags with the
// high bit set are reserved.
func RegisterCodec(s Scheme, c Codec) {
	if s == 0 || s&externalFlag != 0 {
		panic(fmt.Sprintf("region: reserved scheme tag %d", byte(s)))
	}
	codecsMu.Lock()
	defer codecsMu.Unlock()
	codecs[s] = c
}

func codecFor(s Scheme) (Codec, bool) {
	codecsMu.RLock()
	defer codecsMu.RUnlock()
	c, ok := codecs[s]
	return c, ok
}

// compress encodes data with the scheme's codec.
func compress(s Scheme, data []byte) ([]byte, error) {
	c, ok := codecFor(s)
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownScheme, s)
	}
	var buf bytes.Buffer
	w, err := c.NewWriter(&buf)
	if err != nil {
		return nil, fmt.Errorf("%s writer: %w", s, err)
	}
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("%s compress: %w", s, err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("%s compress: %w", s, err)
	}
	return buf.Bytes(), nil
}

type gzipCodec struct{}

func (gzipCodec) NewWriter(w io.Writer) (io.WriteCloser, error) { return gzip.NewWriter(w), nil }
func (gzipCodec) NewReader(r io.Reader) (io.ReadCloser, error)  { return gzip.NewReader(r) }

type zlibCodec struct{}

func (zlibCodec) NewWriter(w io.Writer) (io.WriteCloser, error) { return zlib.NewWriter(w), nil }
func (zlibCodec) NewReader(r io.Reader) (io.ReadCloser, error)  { return zlib.NewReader(r) }

type noneCodec struct{}

func (noneCodec) NewWriter(w io.Writer) (io.WriteCloser, error) { return nopWriteCloser{w}, nil }
func (noneCodec) NewReader(r io.Reader) (io.ReadCloser, error)  { return io.NopCloser(r), nil }

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }
