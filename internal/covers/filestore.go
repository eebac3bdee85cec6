package covers

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"github.com/gabriel-vasile/mimetype"

	"github.com/m3rciful/tunerover/core/logger"
)

const component = "service.covers"

// Options bounds what gets written to disk.
type Options struct {
	MaxWidth  int
	MaxHeight int
	Quality   int
	// MaxBytes caps the upload read; larger inputs fail with ErrTooLarge.
	MaxBytes int64
}

func (o *Options) normalize() {
	if o.MaxWidth <= 0 {
		o.MaxWidth = 1200
	}
	if o.MaxHeight <= 0 {
		o.MaxHeight = 1200
	}
	if o.Quality <= 0 || o.Quality > 100 {
		o.Quality = 88
	}
	if o.MaxBytes <= 0 {
		o.MaxBytes = 20 << 20
	}
}

// FileStore keeps covers as JPEG files in a single directory.
type FileStore struct {
	dir  string
	opts Options
}

// NewFileStore creates dir if needed.
func NewFileStore(dir string, opts Options) (*FileStore, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, fmt.Errorf("covers: directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("covers: create dir: %w", err)
	}
	opts.normalize()
	return &FileStore{dir: dir, opts: opts}, nil
}

// Save sniffs r, scales the image down to the configured bounds and writes it
// as JPEG under ref. Covers are write-once: ErrExists is returned when ref is
// already stored, and the stored file is left untouched.
func (s *FileStore) Save(ctx context.Context, ref string, r io.Reader) error {
	start := time.Now()
	dst, err := s.Path(ref)
	if err != nil {
		return err
	}
	if _, err := os.Lstat(dst); err == nil {
		return fmt.Errorf("%w: %s", ErrExists, ref)
	}

	data, err := io.ReadAll(io.LimitReader(r, s.opts.MaxBytes+1))
	if err != nil {
		return fmt.Errorf("covers: read upload: %w", err)
	}
	if int64(len(data)) > s.opts.MaxBytes {
		logger.Warn(ctx, component, "cover.save",
			slog.String("status", "fail"),
			slog.String("cover_ref", ref),
			slog.Int64("max_bytes", s.opts.MaxBytes),
		)
		return fmt.Errorf("%w: limit is %d bytes", ErrTooLarge, s.opts.MaxBytes)
	}
	mt := mimetype.Detect(data)
	if !strings.HasPrefix(mt.String(), "image/") {
		logger.Warn(ctx, component, "cover.save",
			slog.String("status", "fail"),
			slog.String("cover_ref", ref),
			slog.String("mime", mt.String()),
		)
		return ErrNotImage
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		// sniffed as image/* but in a format we cannot decode (heic, svg, ...)
		return fmt.Errorf("%w: %s: %v", ErrNotImage, mt.String(), err)
	}
	img = s.fit(img)

	tmp, err := os.CreateTemp(s.dir, ".tmp-"+ref+"-*")
	if err != nil {
		return fmt.Errorf("covers: create temp: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := imaging.Encode(tmp, img, imaging.JPEG, imaging.JPEGQuality(s.opts.Quality)); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("covers: encode: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("covers: close temp: %w", err)
	}
	// link fails with EEXIST instead of replacing a file stored meanwhile
	if err := os.Link(tmpName, dst); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return fmt.Errorf("%w: %s", ErrExists, ref)
		}
		return fmt.Errorf("covers: move into place: %w", err)
	}

	b := img.Bounds()
	logger.Info(ctx, component, "cover.save",
		slog.String("status", "ok"),
		slog.String("cover_ref", ref),
		slog.String("mime", mt.String()),
		slog.Int("bytes", len(data)),
		slog.String("size", fmt.Sprintf("%dx%d", b.Dx(), b.Dy())),
		slog.Duration("duration", logger.Took(start)),
	)
	return nil
}

// Publish moves the staged upload to ref. The caller must own ref, which the
// catalog guarantees once the album holding ref has been inserted; a stale
// file under ref is replaced.
func (s *FileStore) Publish(ctx context.Context, staged, ref string) error {
	src, err := s.Path(staged)
	if err != nil {
		return err
	}
	dst, err := s.Path(ref)
	if err != nil {
		return err
	}
	if err := os.Rename(src, dst); err != nil {
		logger.Error(ctx, component, "cover.publish",
			slog.String("status", "fail"),
			slog.String("cover_ref", ref),
			slog.String("err", err.Error()),
		)
		return fmt.Errorf("covers: publish %s: %w", ref, err)
	}
	logger.Info(ctx, component, "cover.publish",
		slog.String("status", "ok"),
		slog.String("cover_ref", ref),
	)
	return nil
}

// Discard removes the cover stored under ref. A missing file is not an error.
func (s *FileStore) Discard(ctx context.Context, ref string) error {
	p, err := s.Path(ref)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("covers: discard %s: %w", ref, err)
	}
	logger.Info(ctx, component, "cover.discard",
		slog.String("status", "ok"),
		slog.String("cover_ref", ref),
	)
	return nil
}

func (s *FileStore) fit(img image.Image) image.Image {
	b := img.Bounds()
	if b.Dx() <= s.opts.MaxWidth && b.Dy() <= s.opts.MaxHeight {
		return img
	}
	return imaging.Fit(img, s.opts.MaxWidth, s.opts.MaxHeight, imaging.Lanczos)
}
