// Package backup uploads point-in-time copies of a region directory to an
// object store.
//
// A snapshot is a set of objects under <prefix>/<snapshot-id>/: one object
// per region file, one per sidecar file referenced by a live header entry,
// and a manifest.json written last. A snapshot without a manifest is
// incomplete.
package backup

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/marmos91/regionstore/internal/logger"
	"github.com/marmos91/regionstore/internal/telemetry"
	"github.com/marmos91/regionstore/pkg/region"
)

// ManifestName is the object name of the snapshot manifest.
const ManifestName = "manifest.json"

// ErrNoRegions is returned when the source holds no region file.
var ErrNoRegions = errors.New("backup: no region files to upload")

// Source is the store being backed up. *store.RegionStore satisfies it.
type Source interface {
	Flush(ctx context.Context) error
	Regions() ([]region.RegionPos, error)
	Inspect(ctx context.Context, rpos region.RegionPos, fn func(f *region.File) error) (bool, error)
	Options() region.Options
}

// Uploader stores one object.
type Uploader interface {
	Upload(ctx context.Context, key string, body io.ReadSeeker, size int64) error
}

// Metrics provides observability for backups.
//
// This is optional - a nil Metrics skips collection.
type Metrics interface {
	ObserveUpload(bytes int64, d time.Duration, err error)
	RecordSnapshot(files int, d time.Duration, err error)
}

// Options configures one Run.
type Options struct {
	// Prefix is prepended to every object key.
	Prefix string

	// Bucket is only used for logging and tracing.
	Bucket string

	Metrics Metrics

	// Now and NewID are overridable for tests.
	Now   func() time.Time
	NewID func() string
}

// Manifest describes a completed snapshot.
type Manifest struct {
	Snapshot    string      `json:"snapshot"`
	CreatedAt   time.Time   `json:"created_at"`
	RegionSize  int         `json:"region_size"`
	SectorSize  int         `json:"sector_size"`
	Extension   string      `json:"extension"`
	Compression string      `json:"compression"`
	Files       []FileEntry `json:"files"`
	Bytes       int64       `json:"bytes"`
}

// FileEntry is one uploaded file.
type FileEntry struct {
	Name   string `json:"name"`
	Key    string `json:"key"`
	Size   int64  `json:"size"`
	SHA256 string `json:"sha256"`

	// Chunks is the number of present slots; zero for sidecars.
	Chunks int `json:"chunks,omitempty"`
}

// Run flushes src and uploads every region file and its live sidecars.
// Each region is uploaded while its file is locked, so a concurrent writer
// cannot change it mid-upload.
func Run(ctx context.Context, src Source, up Uploader, opts Options) (m *Manifest, err error) {
	start := time.Now()
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewID == nil {
		opts.NewID = func() string { return uuid.New().String() }
	}

	ro := src.Options()
	m = &Manifest{
		Snapshot:    opts.NewID(),
		CreatedAt:   opts.Now().UTC(),
		RegionSize:  ro.RegionSize,
		SectorSize:  ro.SectorSize,
		Extension:   ro.Extension,
		Compression: ro.Compression.String(),
	}

	ctx, sp := telemetry.StartSpan(ctx, telemetry.SpanBackup)
	sp.SetAttributes(telemetry.Bucket(opts.Bucket))
	defer func() {
		telemetry.EndSpan(sp, err)
		if opts.Metrics != nil {
			opts.Metrics.RecordSnapshot(len(m.Files), time.Since(start), err)
		}
	}()

	log := logger.With(logger.KeySnapshot, m.Snapshot, logger.KeyBucket, opts.Bucket)

	if err := src.Flush(ctx); err != nil {
		return m, fmt.Errorf("backup: flush: %w", err)
	}

	regions, err := src.Regions()
	if err != nil {
		return m, fmt.Errorf("backup: list regions: %w", err)
	}
	if len(regions) == 0 {
		return m, ErrNoRegions
	}

	u := &uploader{up: up, prefix: path.Join(opts.Prefix, m.Snapshot), bucket: opts.Bucket, metrics: opts.Metrics}
	for _, rpos := range regions {
		if err := ctx.Err(); err != nil {
			return m, err
		}

		_, err := src.Inspect(ctx, rpos, func(f *region.File) error {
			entries, err := f.Entries()
			if err != nil {
				return err
			}
			if err := f.Flush(); err != nil {
				return err
			}

			fe, err := u.file(ctx, f.Path())
			if err != nil {
				return err
			}
			fe.Chunks = len(entries)
			m.add(fe)

			for _, e := range entries {
				side := f.ExternalPath(e.Slot)
				if side == "" {
					continue
				}
				if _, err := os.Stat(side); errors.Is(err, os.ErrNotExist) {
					continue
				}
				fe, err := u.file(ctx, side)
				if err != nil {
					return err
				}
				m.add(fe)
			}
			return nil
		})
		if err != nil {
			return m, fmt.Errorf("backup: region %s: %w", rpos, err)
		}
	}

	body, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return m, fmt.Errorf("backup: encode manifest: %w", err)
	}
	if err := u.put(ctx, path.Join(u.prefix, ManifestName), bytes.NewReader(body), int64(len(body))); err != nil {
		return m, fmt.Errorf("backup: upload manifest: %w", err)
	}

	log.Info("Backup complete",
		logger.KeyCount, len(m.Files),
		logger.KeyBytes, m.Bytes,
		logger.KeyDurationMs, logger.Duration(start))
	return m, nil
}

func (m *Manifest) add(fe FileEntry) {
	m.Files = append(m.Files, fe)
	m.Bytes += fe.Size
}

type uploader struct {
	up      Uploader
	prefix  string
	bucket  string
	metrics Metrics
}

// file hashes and uploads one local file.
func (u *uploader) file(ctx context.Context, p string) (FileEntry, error) {
	f, err := os.Open(p)
	if err != nil {
		return FileEntry{}, err
	}
	defer f.Close()

	h := sha256.New()
	size, err := io.Copy(h, f)
	if err != nil {
		return FileEntry{}, fmt.Errorf("hash %s: %w", p, err)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return FileEntry{}, err
	}

	name := filepath.Base(p)
	key := path.Join(u.prefix, name)
	if err := u.put(ctx, key, f, size); err != nil {
		return FileEntry{}, fmt.Errorf("upload %s: %w", name, err)
	}
	return FileEntry{Name: name, Key: key, Size: size, SHA256: hex.EncodeToString(h.Sum(nil))}, nil
}

func (u *uploader) put(ctx context.Context, key string, body io.ReadSeeker, size int64) (err error) {
	start := time.Now()
	ctx, sp := telemetry.StartSpan(ctx, telemetry.SpanBackupUpload)
	sp.SetAttributes(telemetry.Bucket(u.bucket), telemetry.Key(key), telemetry.Bytes(int(size)))
	defer func() {
		telemetry.EndSpan(sp, err)
		if u.metrics != nil {
			u.metrics.ObserveUpload(size, time.Since(start), err)
		}
	}()

	err = u.up.Upload(ctx, key, body, size)
	if err != nil {
		logger.Warn("Backup upload failed", logger.KeyKey, key, logger.Err(err))
		return err
	}
	logger.Debug("Uploaded", logger.KeyKey, key, logger.KeyBytes, size)
	return nil
}
