package region

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/marmos91/regionstore/internal/logger"
	"github.com/marmos91/regionstore/pkg/bufpool"
)

// Handle is the random-access storage behind a File. *os.File satisfies it.
type Handle interface {
	io.ReaderAt
	io.WriterAt
	Stat() (os.FileInfo, error)
	Sync() error
	Close() error
}

// ScanFunc receives successive pieces of a decompressed payload. p is only
// valid for the duration of the call. Returning SkipRest stops the scan
// without error.
type ScanFunc func(p []byte) error

// File is one open region container.
type File struct {
	h      Handle
	path   string
	dir    string
	pos    RegionPos
	hasPos bool

	opts   Options
	pool   *bufpool.Pool
	header *header
	alloc  *SectorAllocator

	size   int64 // bytes on disk
	dirty  bool
	closed bool

	// afterPayload runs between the payload write and the header update.
	afterPayload func() error
}

// Open opens or creates the region file at path.
func Open(path string, opts Options) (*File, error) {
	opts = opts.WithDefaults()
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	fh, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, err
	}
	f, err := OpenHandle(fh, path, opts)
	if err != nil {
		_ = fh.Close()
		return nil, err
	}
	return f, nil
}

// OpenHandle builds a File over an already open handle. An empty handle gets
// a fresh header. path locates oversized payload sidecars and may be empty,
// in which case payloads above MaxRunSectors are rejected.
func OpenHandle(h Handle, path string, opts Options) (*File, error) {
	opts = opts.WithDefaults()
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	fi, err := h.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat region: %w", err)
	}

	f := &File{
		h:    h,
		path: path,
		opts: opts,
		pool: bufpool.ForSector(opts.SectorSize),
		size: fi.Size(),
	}
	if path != "" {
		f.dir = filepath.Dir(path)
		f.pos, f.hasPos = ParseFileName(filepath.Base(path), opts.Extension)
	}

	if f.size == 0 {
		if err := f.initHeader(); err != nil {
			return nil, err
		}
		logger.Debug("Region file created", logger.KeyPath, path)
		return f, nil
	}

	if err := f.loadHeader(); err != nil {
		if path != "" {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		return nil, err
	}
	logger.Debug("Region file opened", logger.KeyPath, path, logger.KeySize, f.size)
	return f, nil
}

func (f *File) initHeader() error {
	f.header = newHeader(f.opts.Slots())
	f.alloc = NewSectorAllocator(uint32(f.opts.HeaderSectors()))

	buf := f.header.encode(f.opts.HeaderBytes())
	if _, err := f.h.WriteAt(buf, 0); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	f.size = int64(len(buf))
	f.dirty = true
	if f.opts.SyncWrites {
		return f.sync()
	}
	return nil
}

func (f *File) loadHeader() error {
	tables := 2 * entrySize * f.opts.Slots()
	if f.size < int64(tables) {
		return corruptHeader("file is %d bytes, header tables need %d", f.size, tables)
	}

	buf := make([]byte, tables)
	if _, err := f.h.ReadAt(buf, 0); err != nil {
		return fmt.Errorf("read header: %w", err)
	}
	hdr, err := decodeHeader(buf, f.opts.Slots())
	if err != nil {
		return err
	}

	alloc, problems := hdr.replay(uint32(f.opts.HeaderSectors()), f.fileSectors())
	for _, p := range problems {
		if p.fatal() {
			return corruptHeader("%s", p)
		}
		// Reads of this slot will report a corrupt payload.
		logger.Warn("Region run past end of file",
			logger.KeyPath, f.path, logger.KeySlot, p.Slot,
			logger.KeySectorOffset, p.Run.Offset, logger.KeySectorCount, p.Run.Count)
	}

	f.header = hdr
	f.alloc = alloc
	return nil
}

func (f *File) fileSectors() uint32 {
	ss := int64(f.opts.SectorSize)
	return uint32((f.size + ss - 1) / ss)
}

// Path returns the file path, or "" for a handle opened without one.
func (f *File) Path() string { return f.path }

// Options returns the effective options.
func (f *File) Options() Options { return f.opts }

// Allocator exposes the sector allocator for inspection.
func (f *File) Allocator() *SectorAllocator { return f.alloc }

// Size returns the file size in bytes.
func (f *File) Size() int64 { return f.size }

func (f *File) check(slot int) error {
	if f.closed {
		return ErrClosed
	}
	if slot < 0 || slot >= f.header.slots() {
		return fmt.Errorf("%w: %d not in [0, %d)", ErrInvalidSlot, slot, f.header.slots())
	}
	return nil
}

// Has reports whether the slot holds a payload.
func (f *File) Has(slot int) (bool, error) {
	if err := f.check(slot); err != nil {
		return false, err
	}
	return !f.header.runs[slot].IsZero(), nil
}

// Entry returns the header entry of a slot. ok is false for absent slots.
func (f *File) Entry(slot int) (Entry, bool, error) {
	if err := f.check(slot); err != nil {
		return Entry{}, false, err
	}
	return f.entry(slot), !f.header.runs[slot].IsZero(), nil
}

func (f *File) entry(slot int) Entry {
	e := Entry{Run: f.header.runs[slot]}
	if ts := f.header.timestamps[slot]; ts != 0 {
		e.Modified = unixTime(ts)
	}
	return e
}

// Entries returns every present slot in slot order.
func (f *File) Entries() ([]SlotEntry, error) {
	if f.closed {
		return nil, ErrClosed
	}
	var out []SlotEntry
	for slot, run := range f.header.runs {
		if run.IsZero() {
			continue
		}
		out = append(out, SlotEntry{Slot: slot, Entry: f.entry(slot)})
	}
	return out, nil
}

// =============================================================================
// Read path
// =============================================================================

// Read returns the decompressed payload of a slot, or nil if the slot is
// empty.
func (f *File) Read(slot int) ([]byte, error) {
	rc, found, err := f.openPayload(slot)
	if err != nil || !found {
		return nil, err
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, f.corruptPayload(slot, "decode: %v", err)
	}
	if data == nil {
		data = []byte{}
	}
	return data, nil
}

// Scan streams the decompressed payload of a slot to fn. It reports whether
// the slot held a payload.
func (f *File) Scan(slot int, fn ScanFunc) (bool, error) {
	rc, found, err := f.openPayload(slot)
	if err != nil || !found {
		return false, err
	}
	defer rc.Close()

	buf := f.pool.Get(f.opts.SectorSize)
	defer f.pool.Put(buf)

	for {
		n, rerr := rc.Read(buf)
		if n > 0 {
			if err := fn(buf[:n]); err != nil {
				if errors.Is(err, SkipRest) {
					return true, nil
				}
				return true, err
			}
		}
		if rerr == io.EOF {
			return true, nil
		}
		if rerr != nil {
			return true, f.corruptPayload(slot, "decode: %v", rerr)
		}
	}
}

// payloadReader decompresses a raw payload. raw is set only when the buffer
// came from pool.
type payloadReader struct {
	io.ReadCloser
	raw  []byte
	pool *bufpool.Pool
}

func (r *payloadReader) Close() error {
	err := r.ReadCloser.Close()
	if r.raw != nil {
		r.pool.Put(r.raw)
		r.raw = nil
	}
	return err
}

func (f *File) openPayload(slot int) (io.ReadCloser, bool, error) {
	if err := f.check(slot); err != nil {
		return nil, false, err
	}
	run := f.header.runs[slot]
	if run.IsZero() {
		return nil, false, nil
	}

	ss := int64(f.opts.SectorSize)
	off := int64(run.Offset) * ss
	capacity := int64(run.Count) * ss

	if off+prefixSize > f.size {
		return nil, true, f.corruptPayload(slot, "run %v starts past end of file (%d bytes)", run, f.size)
	}
	var prefix [prefixSize]byte
	if _, err := f.h.ReadAt(prefix[:], off); err != nil {
		return nil, true, fmt.Errorf("read payload prefix of slot %d: %w", slot, err)
	}
	length := int64(binary.BigEndian.Uint32(prefix[:4]))
	scheme := Scheme(prefix[4])

	if length == 0 || length > capacity-4 {
		return nil, true, f.corruptPayload(slot, "length %d does not fit run %v", length, run)
	}

	var raw []byte
	pooled := false
	if scheme&externalFlag != 0 {
		scheme &^= externalFlag
		data, err := f.readExternal(slot)
		if err != nil {
			return nil, true, err
		}
		raw = data
	} else {
		if off+4+length > f.size {
			return nil, true, f.corruptPayload(slot, "length %d runs past end of file", length)
		}
		raw = f.pool.Get(int(length - 1))
		pooled = true
		if _, err := f.h.ReadAt(raw, off+prefixSize); err != nil {
			f.pool.Put(raw)
			return nil, true, fmt.Errorf("read payload of slot %d: %w", slot, err)
		}
	}
	release := func() {
		if pooled {
			f.pool.Put(raw)
		}
	}

	codec, ok := codecFor(scheme)
	if !ok {
		release()
		return nil, true, f.corruptPayload(slot, "unknown compression scheme %d", byte(scheme))
	}
	r, err := codec.NewReader(bytes.NewReader(raw))
	if err != nil {
		release()
		return nil, true, f.corruptPayload(slot, "%s stream: %v", scheme, err)
	}
	pr := &payloadReader{ReadCloser: r, pool: f.pool}
	if pooled {
		pr.raw = raw
	}
	return pr, true, nil
}

// =============================================================================
// Write path
// =============================================================================

// Write stores data in the slot, replacing any previous payload.
//
// The new payload always goes to a freshly allocated run. The header entry is
// updated only after the payload bytes are written, and the previous run is
// freed only after that. Any failure before the header update leaves the old
// payload in place. An oversized payload is staged beside its sidecar and
// renamed over it once the header points at the new stub.
func (f *File) Write(slot int, data []byte) error {
	if err := f.check(slot); err != nil {
		return err
	}

	compressed, err := compress(f.opts.Compression, data)
	if err != nil {
		return err
	}

	scheme := f.opts.Compression
	body := compressed
	staged := ""

	sectors := f.opts.SectorsFor(len(compressed))
	if sectors > MaxRunSectors {
		if !f.hasPos {
			return fmt.Errorf("%w: %d sectors", ErrPayloadTooLarge, sectors)
		}
		if staged, err = f.stageExternal(slot, compressed); err != nil {
			return err
		}
		scheme |= externalFlag
		body = nil
		sectors = 1
	}

	run, err := f.alloc.Allocate(sectors)
	if err != nil {
		discardStaged(staged)
		return err
	}
	abort := func(err error) error {
		f.alloc.Free(run)
		discardStaged(staged)
		return err
	}

	ss := f.opts.SectorSize
	buf := f.pool.GetZeroed(sectors * ss)
	binary.BigEndian.PutUint32(buf[:4], uint32(len(body)+1))
	buf[4] = byte(scheme)
	copy(buf[prefixSize:], body)

	_, err = f.h.WriteAt(buf, int64(run.Offset)*int64(ss))
	f.pool.Put(buf)
	if err != nil {
		return abort(fmt.Errorf("write payload of slot %d: %w", slot, err))
	}
	if end := int64(run.End()) * int64(ss); end > f.size {
		f.size = end
	}

	if f.opts.SyncWrites {
		if err := f.sync(); err != nil {
			return abort(err)
		}
	}
	if f.afterPayload != nil {
		if err := f.afterPayload(); err != nil {
			return abort(err)
		}
	}

	old := f.header.runs[slot]
	oldTS := f.header.timestamps[slot]
	oldExternal := !old.IsZero() && f.isExternal(old)

	if err := f.writeEntry(slot, run, uint32(f.opts.Now().Unix())); err != nil {
		return abort(err)
	}

	if staged != "" {
		if err := f.commitExternal(slot, staged); err != nil {
			// Point the slot back at the previous payload.
			if rerr := f.writeEntry(slot, old, oldTS); rerr != nil {
				discardStaged(staged)
				f.dirty = true
				return errors.Join(err, rerr)
			}
			return abort(err)
		}
	}

	f.alloc.Free(old)
	f.dirty = true

	if oldExternal && staged == "" {
		f.removeExternal(slot)
	}

	if f.opts.SyncWrites {
		return f.sync()
	}
	return nil
}

// Clear removes the payload of a slot. Clearing an empty slot is a no-op.
func (f *File) Clear(slot int) error {
	if err := f.check(slot); err != nil {
		return err
	}
	old := f.header.runs[slot]
	if old.IsZero() {
		return nil
	}
	external := f.isExternal(old)

	if err := f.writeEntry(slot, SectorRun{}, 0); err != nil {
		return err
	}
	f.alloc.Free(old)
	f.dirty = true

	if external {
		f.removeExternal(slot)
	}
	if f.opts.SyncWrites {
		return f.sync()
	}
	return nil
}

// writeEntry persists one header entry and then updates the in-memory copy.
// The offset table is the commit point: the timestamp goes first, and is
// rolled back on disk if the offset write fails, so both tables keep
// describing the same payload.
func (f *File) writeEntry(slot int, run SectorRun, ts uint32) error {
	var b [entrySize]byte
	slots := f.header.slots()
	tsOff := int64((slots + slot) * entrySize)

	binary.BigEndian.PutUint32(b[:], ts)
	if _, err := f.h.WriteAt(b[:], tsOff); err != nil {
		return fmt.Errorf("write timestamp of slot %d: %w", slot, err)
	}
	binary.BigEndian.PutUint32(b[:], run.pack())
	if _, err := f.h.WriteAt(b[:], int64(slot*entrySize)); err != nil {
		err = fmt.Errorf("write header entry of slot %d: %w", slot, err)
		binary.BigEndian.PutUint32(b[:], f.header.timestamps[slot])
		if _, rerr := f.h.WriteAt(b[:], tsOff); rerr != nil {
			return errors.Join(err, fmt.Errorf("restore timestamp of slot %d: %w", slot, rerr))
		}
		return err
	}

	f.header.runs[slot] = run
	f.header.timestamps[slot] = ts
	return nil
}

// isExternal reads the scheme byte of a run to see whether the payload lives
// in a sidecar. Read errors count as not external.
func (f *File) isExternal(run SectorRun) bool {
	if !f.hasPos {
		return false
	}
	var b [1]byte
	if _, err := f.h.ReadAt(b[:], int64(run.Offset)*int64(f.opts.SectorSize)+4); err != nil {
		return false
	}
	return Scheme(b[0])&externalFlag != 0
}

// =============================================================================
// Durability and lifecycle
// =============================================================================

// Flush forces written payloads and header entries to stable storage.
func (f *File) Flush() error {
	if f.closed {
		return ErrClosed
	}
	if !f.dirty {
		return nil
	}
	return f.sync()
}

func (f *File) sync() error {
	if err := syncHandle(f.h); err != nil {
		return fmt.Errorf("sync region: %w", err)
	}
	f.dirty = false
	return nil
}

// Close flushes and releases the handle. The File is unusable afterwards,
// even if Close returns an error.
func (f *File) Close() error {
	if f.closed {
		return ErrClosed
	}
	flushErr := f.Flush()
	closeErr := f.h.Close()
	f.closed = true
	if closeErr != nil {
		closeErr = fmt.Errorf("close region: %w", closeErr)
	}
	return errors.Join(flushErr, closeErr)
}
