package storage

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"mime/multipart"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

// MaxFiles is the number of files a single capsule upload may carry.
const MaxFiles = 2

// ErrTooManyFiles is returned when an upload carries more than MaxFiles files.
var ErrTooManyFiles = errors.New("too many files")

var extPattern = regexp.MustCompile(`^\.[a-z0-9]{1,10}$`)

// MediaKind is the kind of media a file is attached as.
type MediaKind string

const (
	MediaImage MediaKind = "image"
	MediaAudio MediaKind = "audio"
)

// kindOf classifies a MIME type; other types are not capsule media.
func kindOf(contentType string) (MediaKind, bool) {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	switch {
	case strings.HasPrefix(ct, "image/"):
		return MediaImage, true
	case strings.HasPrefix(ct, "audio/"):
		return MediaAudio, true
	default:
		return "", false
	}
}

// MediaRefs are the references stored on a capsule.
type MediaRefs struct {
	Image *string
	Audio *string
}

// Names returns the non-empty references.
func (m MediaRefs) Names() []string {
	names := make([]string, 0, 2)
	if m.Image != nil {
		names = append(names, *m.Image)
	}
	if m.Audio != nil {
		names = append(names, *m.Audio)
	}
	return names
}

// Uploader turns multipart files into stored media references.
type Uploader struct {
	store Store
	now   func() time.Time
	rand  func() int
}

// NewUploader creates an uploader writing to store.
func NewUploader(store Store) *Uploader {
	return &Uploader{
		store: store,
		now:   time.Now,
		rand:  func() int { return rand.IntN(1_000_000_001) },
	}
}

// Accept stores the image and audio files among files.
// Files that are neither image nor audio are dropped. When several files
// share a kind the last one wins, and only winners are written.
func (u *Uploader) Accept(ctx context.Context, files []*multipart.FileHeader) (MediaRefs, error) {
	if len(files) > MaxFiles {
		return MediaRefs{}, fmt.Errorf("%w: at most %d allowed", ErrTooManyFiles, MaxFiles)
	}

	chosen := make(map[MediaKind]*multipart.FileHeader, 2)
	for _, fh := range files {
		if fh == nil {
			continue
		}
		kind, ok := kindOf(fh.Header.Get("Content-Type"))
		if !ok {
			continue
		}
		chosen[kind] = fh
	}

	var refs MediaRefs
	for _, kind := range []MediaKind{MediaImage, MediaAudio} {
		fh, ok := chosen[kind]
		if !ok {
			continue
		}
		name, err := u.put(ctx, fh)
		if err != nil {
			_ = u.Discard(ctx, refs)
			return MediaRefs{}, err
		}
		if kind == MediaImage {
			refs.Image = &name
		} else {
			refs.Audio = &name
		}
	}

	return refs, nil
}

func (u *Uploader) put(ctx context.Context, fh *multipart.FileHeader) (string, error) {
	f, err := fh.Open()
	if err != nil {
		return "", fmt.Errorf("open upload %q: %w", fh.Filename, err)
	}
	defer f.Close()

	name := u.newName(fh.Filename)
	if err := u.store.Put(ctx, name, f, fh.Size, fh.Header.Get("Content-Type")); err != nil {
		return "", fmt.Errorf("store upload %q: %w", fh.Filename, err)
	}
	return name, nil
}

// newName builds <unix_millis>-<random 0..1e9><ext> with a lowercased extension.
func (u *Uploader) newName(original string) string {
	ext := strings.ToLower(filepath.Ext(original))
	if !extPattern.MatchString(ext) {
		ext = ""
	}
	return fmt.Sprintf("%d-%d%s", u.now().UnixMilli(), u.rand(), ext)
}

// Discard deletes stored objects, returning every failure joined.
func (u *Uploader) Discard(ctx context.Context, refs MediaRefs) error {
	var errs []error
	for _, name := range refs.Names() {
		if err := u.store.Delete(ctx, name); err != nil {
			errs = append(errs, fmt.Errorf("delete %s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}
