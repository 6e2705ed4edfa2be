// Package blobstore provides flat-file storage for generated datasets and
// manifests. It defines the Store interface, a directory-backed
// implementation that replaces files atomically, and an in-memory
// implementation suitable for testing.
package blobstore

import (
	"bytes"
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// ---------------------------------------------------------------------------
// Sentinel errors
// ---------------------------------------------------------------------------

var (
	ErrObjectNotFound = errors.New("object not found")
	ErrMissingName    = errors.New("object name is required")
	ErrInvalidName    = errors.New("object name must be a relative path inside the store")
)

// ---------------------------------------------------------------------------
// Content types
// ---------------------------------------------------------------------------

// ContentTypes maps the file extensions the tool writes to MIME types.
var ContentTypes = map[string]string{
	".csv":  "text/csv",
	".json": "application/json",
	".yaml": "application/yaml",
	".yml":  "application/yaml",
}

// ContentTypeFor returns the MIME type for name, falling back to
// application/octet-stream.
func ContentTypeFor(name string) string {
	if ct, ok := ContentTypes[strings.ToLower(path.Ext(name))]; ok {
		return ct
	}
	return "application/octet-stream"
}

// ---------------------------------------------------------------------------
// Domain types
// ---------------------------------------------------------------------------

// ObjectMetadata describes a stored object.
type ObjectMetadata struct {
	Name        string    `json:"name"`
	ContentType string    `json:"content_type"`
	Size        int64     `json:"size"`
	Hash        string    `json:"hash"`
	ModifiedAt  time.Time `json:"modified_at"`
}

// Object is a named payload for batch writes.
type Object struct {
	Name    string
	Content []byte
}

// ---------------------------------------------------------------------------
// Store interface
// ---------------------------------------------------------------------------

// Store defines the contract for dataset storage backends. Put and PutBatch
// overwrite existing objects.
type Store interface {
	Put(ctx context.Context, name string, content io.Reader) (*ObjectMetadata, error)
	// PutBatch writes every object or none of them.
	PutBatch(ctx context.Context, objects []Object) ([]*ObjectMetadata, error)
	Get(ctx context.Context, name string) (io.ReadCloser, *ObjectMetadata, error)
	Stat(ctx context.Context, name string) (*ObjectMetadata, error)
	Delete(ctx context.Context, name string) error
	List(ctx context.Context) ([]*ObjectMetadata, error)
}

// cleanName validates a store-relative object name and returns it in
// slash-separated canonical form.
func cleanName(name string) (string, error) {
	if name == "" {
		return "", ErrMissingName
	}
	n := path.Clean(filepath.ToSlash(name))
	if path.IsAbs(n) || filepath.IsAbs(name) || n == "." || n == ".." || strings.HasPrefix(n, "../") {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return n, nil
}

func newMetadata(name string, data []byte, modified time.Time) *ObjectMetadata {
	h := sha256.Sum256(data)
	return &ObjectMetadata{
		Name:        name,
		ContentType: ContentTypeFor(name),
		Size:        int64(len(data)),
		Hash:        fmt.Sprintf("%x", h),
		ModifiedAt:  modified.UTC(),
	}
}

// ---------------------------------------------------------------------------
// Directory implementation
// ---------------------------------------------------------------------------

// DirStore stores objects as files under a root directory. Writes go to a
// temporary file in the destination directory and are renamed into place,
// so readers never observe a half-written file.
type DirStore struct {
	root   string
	rename func(oldpath, newpath string) error
}

// NewDirStore returns a store rooted at dir, creating it if needed.
func NewDirStore(dir string) (*DirStore, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	return &DirStore{root: dir, rename: os.Rename}, nil
}

// Root returns the directory the store writes under.
func (s *DirStore) Root() string {
	return s.root
}

func (s *DirStore) path(name string) string {
	return filepath.Join(s.root, filepath.FromSlash(name))
}

type stagedFile struct {
	tmp    string
	dst    string
	backup string
	meta   *ObjectMetadata
}

func (s *DirStore) stage(name string, data []byte) (*stagedFile, error) {
	dst := s.path(name)
	if info, err := os.Stat(dst); err == nil && info.IsDir() {
		return nil, fmt.Errorf("staging %s: destination is a directory", name)
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return nil, fmt.Errorf("creating directory for %s: %w", name, err)
	}
	f, err := os.CreateTemp(filepath.Dir(dst), "."+filepath.Base(dst)+".*.tmp")
	if err != nil {
		return nil, fmt.Errorf("staging %s: %w", name, err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(f.Name())
		return nil, fmt.Errorf("writing %s: %w", name, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(f.Name())
		return nil, fmt.Errorf("syncing %s: %w", name, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return nil, fmt.Errorf("closing %s: %w", name, err)
	}
	if err := os.Chmod(f.Name(), 0o644); err != nil {
		os.Remove(f.Name())
		return nil, fmt.Errorf("setting mode on %s: %w", name, err)
	}
	return &stagedFile{tmp: f.Name(), dst: dst, meta: newMetadata(name, data, time.Now())}, nil
}

// Put reads content fully and atomically replaces the named file.
func (s *DirStore) Put(ctx context.Context, name string, content io.Reader) (*ObjectMetadata, error) {
	data, err := io.ReadAll(content)
	if err != nil {
		return nil, fmt.Errorf("reading content: %w", err)
	}
	metas, err := s.PutBatch(ctx, []Object{{Name: name, Content: data}})
	if err != nil {
		return nil, err
	}
	return metas[0], nil
}

// PutBatch stages every object before renaming any of them into place. A
// failure while staging removes all staged files and leaves existing
// objects untouched. Existing destinations are moved aside while
// publishing and restored if a later rename fails.
func (s *DirStore) PutBatch(ctx context.Context, objects []Object) ([]*ObjectMetadata, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	names := make([]string, len(objects))
	for i, obj := range objects {
		n, err := cleanName(obj.Name)
		if err != nil {
			return nil, err
		}
		names[i] = n
	}

	staged := make([]*stagedFile, 0, len(objects))
	cleanup := func() {
		for _, sf := range staged {
			os.Remove(sf.tmp)
		}
	}
	for i, obj := range objects {
		if err := ctx.Err(); err != nil {
			cleanup()
			return nil, err
		}
		sf, err := s.stage(names[i], obj.Content)
		if err != nil {
			cleanup()
			return nil, err
		}
		staged = append(staged, sf)
	}

	metas := make([]*ObjectMetadata, len(staged))
	for i, sf := range staged {
		if err := s.publish(sf); err != nil {
			s.rollback(staged[:i])
			cleanup()
			return nil, fmt.Errorf("publishing %s: %w", sf.meta.Name, err)
		}
		metas[i] = sf.meta
	}
	for _, sf := range staged {
		if sf.backup != "" {
			os.Remove(sf.backup)
		}
	}
	return metas, nil
}

// publish moves an existing destination to a backup, then renames the
// staged file over it. On failure the backup is put back.
func (s *DirStore) publish(sf *stagedFile) error {
	if _, err := os.Lstat(sf.dst); err == nil {
		backup := sf.tmp + ".bak"
		if err := s.rename(sf.dst, backup); err != nil {
			return err
		}
		sf.backup = backup
	} else if !errors.Is(err, os.ErrNotExist) {
		return err
	}
	if err := s.rename(sf.tmp, sf.dst); err != nil {
		if sf.backup != "" {
			os.Rename(sf.backup, sf.dst)
			sf.backup = ""
		}
		return err
	}
	return nil
}

// rollback undoes published files in reverse order, restoring backups and
// removing files that did not exist before the batch.
func (s *DirStore) rollback(published []*stagedFile) {
	for i := len(published) - 1; i >= 0; i-- {
		sf := published[i]
		if sf.backup != "" {
			os.Rename(sf.backup, sf.dst)
			continue
		}
		os.Remove(sf.dst)
	}
}

// Get opens the named file for reading.
func (s *DirStore) Get(ctx context.Context, name string) (io.ReadCloser, *ObjectMetadata, error) {
	meta, err := s.Stat(ctx, name)
	if err != nil {
		return nil, nil, err
	}
	f, err := os.Open(s.path(meta.Name))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil, fmt.Errorf("%w: %s", ErrObjectNotFound, name)
		}
		return nil, nil, fmt.Errorf("opening %s: %w", name, err)
	}
	return f, meta, nil
}

// Stat returns metadata for the named file. The hash is computed from the
// current file contents.
func (s *DirStore) Stat(ctx context.Context, name string) (*ObjectMetadata, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	n, err := cleanName(name)
	if err != nil {
		return nil, err
	}
	p := s.path(n)
	info, err := os.Stat(p)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrObjectNotFound, name)
		}
		return nil, fmt.Errorf("stat %s: %w", name, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", ErrObjectNotFound, name)
	}
	data, err := os.ReadFile(p)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", name, err)
	}
	return newMetadata(n, data, info.ModTime()), nil
}

// Delete removes the named file.
func (s *DirStore) Delete(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	n, err := cleanName(name)
	if err != nil {
		return err
	}
	if err := os.Remove(s.path(n)); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrObjectNotFound, name)
		}
		return fmt.Errorf("removing %s: %w", name, err)
	}
	return nil
}

// List returns metadata for every regular, non-hidden file under the root,
// sorted by name.
func (s *DirStore) List(ctx context.Context) ([]*ObjectMetadata, error) {
	var out []*ObjectMetadata
	err := filepath.WalkDir(s.root, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() || strings.HasPrefix(d.Name(), ".") {
			return nil
		}
		rel, err := filepath.Rel(s.root, p)
		if err != nil {
			return err
		}
		meta, err := s.Stat(ctx, filepath.ToSlash(rel))
		if err != nil {
			return err
		}
		out = append(out, meta)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", s.root, err)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// ---------------------------------------------------------------------------
// In-memory implementation
// ---------------------------------------------------------------------------

type storedObject struct {
	metadata ObjectMetadata
	content  []byte
}

// InMemoryStore is a thread-safe, in-memory Store for testing.
type InMemoryStore struct {
	mu      sync.RWMutex
	objects map[string]*storedObject
}

// NewInMemoryStore returns a ready-to-use InMemoryStore.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		objects: make(map[string]*storedObject),
	}
}

// Put reads content into memory and stores it under name.
func (s *InMemoryStore) Put(ctx context.Context, name string, content io.Reader) (*ObjectMetadata, error) {
	data, err := io.ReadAll(content)
	if err != nil {
		return nil, fmt.Errorf("reading content: %w", err)
	}
	metas, err := s.PutBatch(ctx, []Object{{Name: name, Content: data}})
	if err != nil {
		return nil, err
	}
	return metas[0], nil
}

// PutBatch validates every name before storing anything.
func (s *InMemoryStore) PutBatch(ctx context.Context, objects []Object) ([]*ObjectMetadata, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	names := make([]string, len(objects))
	for i, obj := range objects {
		n, err := cleanName(obj.Name)
		if err != nil {
			return nil, err
		}
		names[i] = n
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	metas := make([]*ObjectMetadata, len(objects))
	now := time.Now()
	for i, obj := range objects {
		data := append([]byte(nil), obj.Content...)
		meta := newMetadata(names[i], data, now)
		s.objects[names[i]] = &storedObject{metadata: *meta, content: data}
		out := *meta // copy
		metas[i] = &out
	}
	return metas, nil
}

// Get returns an io.ReadCloser over the object content and its metadata.
func (s *InMemoryStore) Get(ctx context.Context, name string) (io.ReadCloser, *ObjectMetadata, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	n, err := cleanName(name)
	if err != nil {
		return nil, nil, err
	}

	s.mu.RLock()
	obj, ok := s.objects[n]
	s.mu.RUnlock()

	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", ErrObjectNotFound, name)
	}

	meta := obj.metadata // copy
	return io.NopCloser(bytes.NewReader(obj.content)), &meta, nil
}

// Stat returns object metadata without content.
func (s *InMemoryStore) Stat(ctx context.Context, name string) (*ObjectMetadata, error) {
	rc, meta, err := s.Get(ctx, name)
	if err != nil {
		return nil, err
	}
	rc.Close()
	return meta, nil
}

// Delete removes an object by name.
func (s *InMemoryStore) Delete(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	n, err := cleanName(name)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.objects[n]; !ok {
		return fmt.Errorf("%w: %s", ErrObjectNotFound, name)
	}
	delete(s.objects, n)
	return nil
}

// List returns metadata for every object, sorted by name.
func (s *InMemoryStore) List(ctx context.Context) ([]*ObjectMetadata, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*ObjectMetadata, 0, len(s.objects))
	for _, obj := range s.objects {
		meta := obj.metadata
		out = append(out, &meta)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}
