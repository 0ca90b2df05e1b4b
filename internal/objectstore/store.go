// Package objectstore lists and reads the source objects behind a load
// location. Locations are s3://bucket/prefix URIs or local paths (optionally
// file://). A location names a prefix, as with the warehouse COPY command:
// every object whose key starts with it is part of the load.
package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"dwh/internal/warehouse"
)

// Object is one listed source object.
type Object struct {
	// URI is the full location of the object, usable with Open.
	URI  string
	Size int64
}

// Store lists and opens objects.
type Store interface {
	// List returns the objects under location in key order. Directory
	// placeholder keys are skipped.
	List(ctx context.Context, location string) ([]Object, error)
	Open(ctx context.Context, uri string) (io.ReadCloser, error)
}

// Router dispatches s3:// locations to an S3 store and everything else to
// the local filesystem.
type Router struct {
	S3    Store
	Local Store
}

func (r *Router) pick(location string) (Store, error) {
	if IsS3(location) {
		if r.S3 == nil {
			return nil, fmt.Errorf("objectstore: no S3 client configured for %s", location)
		}
		return r.S3, nil
	}
	if r.Local == nil {
		return nil, fmt.Errorf("objectstore: no local store configured for %s", location)
	}
	return r.Local, nil
}

func (r *Router) List(ctx context.Context, location string) ([]Object, error) {
	s, err := r.pick(location)
	if err != nil {
		return nil, err
	}
	return s.List(ctx, location)
}

func (r *Router) Open(ctx context.Context, uri string) (io.ReadCloser, error) {
	s, err := r.pick(uri)
	if err != nil {
		return nil, err
	}
	return s.Open(ctx, uri)
}

// IsS3 reports whether location is an s3:// URI.
func IsS3(location string) bool {
	return strings.HasPrefix(strings.ToLower(warehouse.Unquote(location)), "s3://")
}

// ParseS3 splits s3://bucket/prefix into bucket and prefix.
func ParseS3(location string) (bucket, prefix string, err error) {
	loc := warehouse.Unquote(location)
	if !IsS3(loc) {
		return "", "", fmt.Errorf("objectstore: %q is not an s3:// URI", location)
	}
	rest := loc[len("s3://"):]
	bucket, prefix, _ = strings.Cut(rest, "/")
	if bucket == "" {
		return "", "", fmt.Errorf("objectstore: %q has no bucket", location)
	}
	return bucket, prefix, nil
}

// ErrNoObjects is returned by Probe when a location matches nothing.
var ErrNoObjects = errors.New("objectstore: no objects under location")

// Probe checks that location is readable and non-empty and returns the number
// of objects under it.
func Probe(ctx context.Context, s Store, location string) (int, error) {
	objs, err := s.List(ctx, location)
	if err != nil {
		return 0, err
	}
	if len(objs) == 0 {
		return 0, fmt.Errorf("%w: %s", ErrNoObjects, warehouse.Unquote(location))
	}
	return len(objs), nil
}

// classify tags errors carrying an HTTP status (AWS SDK response errors) so
// the pipeline reports denied or missing objects as access failures.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var status interface{ HTTPStatusCode() int }
	if errors.As(err, &status) {
		switch status.HTTPStatusCode() {
		case http.StatusForbidden, http.StatusUnauthorized, http.StatusNotFound:
			return warehouse.WithKind(warehouse.KindAccess, err)
		}
	}
	return err
}
