package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"dwh/internal/warehouse"
)

// LocalStore reads objects from the local filesystem. A location that names a
// directory lists every regular file beneath it; any other location is a path
// prefix matched against the files of its parent directory tree.
type LocalStore struct{}

func localPath(location string) string {
	loc := warehouse.Unquote(location)
	loc = strings.TrimPrefix(loc, "file://")
	return filepath.Clean(loc)
}

func (LocalStore) List(ctx context.Context, location string) ([]Object, error) {
	path := localPath(location)

	root, prefix := path, ""
	if info, err := os.Stat(path); err == nil && !info.IsDir() {
		return []Object{{URI: path, Size: info.Size()}}, nil
	} else if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, localErr(err)
		}
		root, prefix = filepath.Dir(path), path
	}

	var out []Object
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}
		if prefix != "" && !strings.HasPrefix(p, prefix) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		out = append(out, Object{URI: p, Size: info.Size()})
		return nil
	})
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) && prefix != "" {
			return nil, nil
		}
		return nil, localErr(fmt.Errorf("failed to list %s: %w", path, err))
	}

	sort.Slice(out, func(i, j int) bool { return out[i].URI < out[j].URI })
	return out, nil
}

func (LocalStore) Open(ctx context.Context, uri string) (io.ReadCloser, error) {
	f, err := os.Open(localPath(uri))
	if err != nil {
		return nil, localErr(err)
	}
	return f, nil
}

func localErr(err error) error {
	if errors.Is(err, fs.ErrPermission) || errors.Is(err, fs.ErrNotExist) {
		return warehouse.WithKind(warehouse.KindAccess, err)
	}
	return err
}
