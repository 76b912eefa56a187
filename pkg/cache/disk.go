package cache

import (
	"context"
	"errors"
	"io/fs"
	"sync/atomic"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
	"github.com/rs/zerolog"
)

// ErrDiskUnavailable is returned for writes to a tier whose directory could
// not be created.
var ErrDiskUnavailable = errors.New("cache directory unavailable")

// DiskTier stores one file per key under a namespace directory. Writes go to
// a temporary file in the same directory and are renamed into place, so a
// concurrent reader sees either the old file, the new file or nothing.
type DiskTier struct {
	fs        billy.Filesystem
	dir       string
	available atomic.Bool
	logger    zerolog.Logger
}

// NewDiskTier creates the namespace directory (and missing parents) on fs.
// A creation failure is logged and the tier is returned anyway; it then
// stays unavailable, reporting misses and dropping writes.
func NewDiskTier(filesystem billy.Filesystem, dir string, logger zerolog.Logger) *DiskTier {
	d := &DiskTier{
		fs:     filesystem,
		dir:    dir,
		logger: logger,
	}

	if err := filesystem.MkdirAll(dir, 0o755); err != nil {
		TierErrors.WithLabelValues(TierDisk, "init").Inc()
		logger.Error().Err(err).Str("dir", d.absDir()).Msg("Can't create cache directory")
		return d
	}

	d.available.Store(true)
	logger.Info().Str("dir", d.absDir()).Msg("Cache directory ready")
	return d
}

// Name implements Tier.
func (d *DiskTier) Name() string { return TierDisk }

// Available reports whether the namespace directory exists.
func (d *DiskTier) Available() bool { return d.available.Load() }

// Path returns the location of key's file, relative to the filesystem root.
func (d *DiskTier) Path(key string) string {
	return d.fs.Join(d.dir, key)
}

// Get implements Tier. Every filesystem error is reported as a miss, and so
// is an empty file.
func (d *DiskTier) Get(_ context.Context, key string) ([]byte, bool) {
	path := d.Path(key)

	info, err := d.fs.Stat(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			TierErrors.WithLabelValues(TierDisk, "get").Inc()
			d.logger.Error().Err(err).Str("path", path).Msg("Can't stat cache file")
		}
		return nil, false
	}
	if info.IsDir() || info.Size() == 0 {
		return nil, false
	}

	data, err := util.ReadFile(d.fs, path)
	if err != nil {
		TierErrors.WithLabelValues(TierDisk, "get").Inc()
		d.logger.Error().Err(err).Str("path", path).Msg("Can't load cache file")
		return nil, false
	}
	return data, true
}

// Set implements Tier. Failures are logged and dropped.
func (d *DiskTier) Set(_ context.Context, key string, data []byte) {
	err := d.write(key, data)
	if errors.Is(err, ErrDiskUnavailable) {
		d.logger.Debug().Str("path", d.Path(key)).Msg("Cache directory unavailable, write dropped")
		return
	}
	if err != nil {
		TierErrors.WithLabelValues(TierDisk, "set").Inc()
		d.logger.Error().Err(err).Str("path", d.Path(key)).Msg("Can't write cache file")
	}
}

func (d *DiskTier) write(key string, data []byte) error {
	if !d.available.Load() {
		return ErrDiskUnavailable
	}

	tmp, err := d.fs.TempFile(d.dir, ".tmp-")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	_, err = tmp.Write(data)
	closeErr := tmp.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		_ = d.fs.Remove(tmpName)
		return err
	}

	if err := d.fs.Rename(tmpName, d.Path(key)); err != nil {
		_ = d.fs.Remove(tmpName)
		return err
	}
	return nil
}

func (d *DiskTier) absDir() string {
	return d.fs.Join(d.fs.Root(), d.dir)
}

