// Package covers persists album cover images on local disk, addressed by a
// reference derived from the album's title, artist and year.
package covers

import (
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/gosimple/slug"
)

var (
	// ErrNotImage is returned when the uploaded content does not sniff as an image.
	ErrNotImage = errors.New("covers: content is not an image")
	// ErrTooLarge is returned when the upload exceeds Options.MaxBytes.
	ErrTooLarge = errors.New("covers: upload too large")
	// ErrExists is returned by Save when a cover is already stored under the reference.
	ErrExists = errors.New("covers: cover already stored")
	// ErrInvalidRef is returned for references that could escape the cover directory.
	ErrInvalidRef = errors.New("covers: invalid cover reference")
)

const refPrefix = "cover_"

// Ref derives the filesystem-safe cover reference for an album.
// Equal inputs always map to the same reference. The hash suffix separates
// inputs whose slugs coincide, such as titles differing only in case.
func Ref(title, artist string, year int) string {
	h := xxhash.New()
	_, _ = h.WriteString(title)
	_, _ = h.WriteString("\x00")
	_, _ = h.WriteString(artist)
	_, _ = h.WriteString("\x00")
	_, _ = h.WriteString(strconv.Itoa(year))
	return fmt.Sprintf("%s%s_%s_%d_%08x.jpg", refPrefix, slugOr(title), slugOr(artist), year, uint32(h.Sum64()))
}

// StagedRef names the upload a user's draft keeps under ref until the album is
// committed. Staged files are owned by one user, so replacing one never
// touches another draft or a committed cover.
func StagedRef(ref string, userID int64) string {
	return fmt.Sprintf("%s_draft%d.jpg", strings.TrimSuffix(ref, ".jpg"), userID)
}

func slugOr(s string) string {
	if v := slug.Make(s); v != "" {
		return v
	}
	return "x"
}

func validateRef(ref string) error {
	if ref == "" || ref != filepath.Base(ref) || strings.ContainsAny(ref, `/\`) ||
		!strings.HasPrefix(ref, refPrefix) || strings.HasPrefix(ref, ".") {
		return fmt.Errorf("%w: %q", ErrInvalidRef, ref)
	}
	return nil
}

// Path resolves ref to its file on disk.
func (s *FileStore) Path(ref string) (string, error) {
	if err := validateRef(ref); err != nil {
		return "", err
	}
	return filepath.Join(s.dir, ref), nil
}
