package objectstore

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"strings"

	"github.com/spf13/afero"
)

// aferoStore implements Store over any afero.Fs, backing both the local
// filesystem backend (afero.OsFs) and the in-memory backend
// (afero.MemMapFs). Keys are forward-slash paths rooted at the fs root;
// directories are created on demand.
type aferoStore struct {
	fs   afero.Fs
	root string
}

func newAferoStore(fs afero.Fs, root string) *aferoStore {
	return &aferoStore{fs: fs, root: root}
}

func (a *aferoStore) resolve(key string) string {
	return path.Join(a.root, key)
}

func (a *aferoStore) Put(_ context.Context, key string, r io.Reader, _ int64) error {
	full := a.resolve(key)
	if err := a.fs.MkdirAll(path.Dir(full), 0o755); err != nil {
		return fmt.Errorf("objectstore: mkdir for %s: %w", key, err)
	}
	f, err := a.fs.Create(full)
	if err != nil {
		return fmt.Errorf("objectstore: create %s: %w", key, err)
	}
	defer f.Close()
	if _, err := io.Copy(f, r); err != nil {
		return fmt.Errorf("objectstore: write %s: %w", key, err)
	}
	return nil
}

func (a *aferoStore) Get(_ context.Context, key string) (io.ReadCloser, error) {
	f, err := a.fs.Open(a.resolve(key))
	if os.IsNotExist(err) {
		return nil, ErrObjectNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("objectstore: open %s: %w", key, err)
	}
	return f, nil
}

func (a *aferoStore) Head(_ context.Context, key string) (ObjectInfo, error) {
	info, err := a.fs.Stat(a.resolve(key))
	if os.IsNotExist(err) {
		return ObjectInfo{}, ErrObjectNotFound
	}
	if err != nil {
		return ObjectInfo{}, fmt.Errorf("objectstore: stat %s: %w", key, err)
	}
	return ObjectInfo{Key: key, Size: info.Size(), LastModified: info.ModTime()}, nil
}

func (a *aferoStore) Exists(ctx context.Context, key string) (bool, error) {
	_, err := a.Head(ctx, key)
	if err == ErrObjectNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (a *aferoStore) Delete(_ context.Context, key string) error {
	err := a.fs.Remove(a.resolve(key))
	if os.IsNotExist(err) {
		return nil // deleting an absent key is a no-op
	}
	if err != nil {
		return fmt.Errorf("objectstore: remove %s: %w", key, err)
	}
	return nil
}

func (a *aferoStore) List(_ context.Context, prefix string) ([]ObjectInfo, error) {
	var out []ObjectInfo
	base := a.resolve(prefix)
	err := afero.Walk(a.fs, a.root, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if info.IsDir() {
			return nil
		}
		if !strings.HasPrefix(p, base) {
			return nil
		}
		key := strings.TrimPrefix(strings.TrimPrefix(p, a.root), "/")
		out = append(out, ObjectInfo{Key: key, Size: info.Size(), LastModified: info.ModTime()})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("objectstore: list %s: %w", prefix, err)
	}
	return out, nil
}

func (a *aferoStore) Copy(ctx context.Context, srcKey, dstKey string) error {
	r, err := a.Get(ctx, srcKey)
	if err != nil {
		return err
	}
	defer r.Close()
	return a.Put(ctx, dstKey, r, -1)
}

func (a *aferoStore) PutMultipart(ctx context.Context, key string, parts []io.Reader, _ int64) error {
	readers := make([]io.Reader, len(parts))
	copy(readers, parts)
	return a.Put(ctx, key, io.MultiReader(readers...), -1)
}
