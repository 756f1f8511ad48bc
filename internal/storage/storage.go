// Package storage accepts uploaded capsule media and keeps it in a media store.
package storage

import (
	"context"
	"errors"
	"io"
	"regexp"
)

var (
	// ErrObjectNotFound is returned when a media object does not exist.
	ErrObjectNotFound = errors.New("media object not found")
	// ErrInvalidName is returned for names that are not generated media references.
	ErrInvalidName = errors.New("invalid media name")
)

// refPattern matches references produced by the Uploader: <millis>-<random><ext>.
var refPattern = regexp.MustCompile(`^[0-9]{1,20}-[0-9]{1,10}(\.[a-z0-9]{1,10})?$`)

// ValidName reports whether name is a well-formed media reference.
// Only such names ever reach a Store, so they cannot escape its root.
func ValidName(name string) bool {
	return refPattern.MatchString(name)
}

// Object is an opened media object. Callers must close Body.
type Object struct {
	Body        io.ReadCloser
	ContentType string
	Size        int64
}

// Store persists media objects by name.
type Store interface {
	Put(ctx context.Context, name string, r io.Reader, size int64, contentType string) error
	Open(ctx context.Context, name string) (*Object, error)
	Delete(ctx context.Context, name string) error
}
