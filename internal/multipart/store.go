package multipart

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNoSuchUpload = errors.New("multipart: no such upload")
	ErrInvalidPart  = errors.New("multipart: invalid part")
	ErrInvalidKey   = errors.New("multipart: invalid object key")
)

// Part identifies one uploaded part of an object.
type Part struct {
	Number int    `json:"number" yaml:"number"`
	ETag   string `json:"etag" yaml:"etag"`
	Size   int64  `json:"size" yaml:"size"`
}

// Store is the destination of multipart uploads. Implementations must allow
// UploadPart to be called concurrently for one upload.
type Store interface {
	Create(ctx context.Context, key string) (uploadID string, err error)
	UploadPart(ctx context.Context, uploadID string, number int, body []byte) (etag string, err error)
	Complete(ctx context.Context, uploadID string, parts []Part) (etag string, err error)
	Abort(ctx context.Context, uploadID string) error
}

// DirStore is a Store rooted at a directory. Objects are written to
// root/<key>; uploads in progress are staged under root/.uploads/<id>.
type DirStore struct {
	root string
}

const (
	stagingDir = ".uploads"
	keyFile    = "key"
)

// NewDirStore creates the root directory if needed.
func NewDirStore(root string) (*DirStore, error) {
	if err := os.MkdirAll(filepath.Join(root, stagingDir), 0o755); err != nil {
		return nil, fmt.Errorf("create store %s: %w", root, err)
	}
	return &DirStore{root: root}, nil
}

// Root returns the store directory.
func (s *DirStore) Root() string { return s.root }

// ObjectPath returns where the object for key is stored.
func (s *DirStore) ObjectPath(key string) string {
	return filepath.Join(s.root, filepath.FromSlash(key))
}

func (s *DirStore) uploadDir(id string) string {
	return filepath.Join(s.root, stagingDir, id)
}

func (s *DirStore) partPath(id string, number int) string {
	return filepath.Join(s.uploadDir(id), fmt.Sprintf("%05d.part", number))
}

func validKey(key string) error {
	if key == "" || strings.HasPrefix(key, stagingDir) || !filepath.IsLocal(filepath.FromSlash(key)) {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return nil
}

func (s *DirStore) Create(_ context.Context, key string) (string, error) {
	if err := validKey(key); err != nil {
		return "", err
	}
	id := uuid.NewString()
	dir := s.uploadDir(id)
	if err := os.Mkdir(dir, 0o755); err != nil {
		return "", fmt.Errorf("create upload: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, keyFile), []byte(key), 0o644); err != nil {
		return "", fmt.Errorf("create upload: %w", err)
	}
	return id, nil
}

func (s *DirStore) lookup(id string) (string, error) {
	if _, err := uuid.Parse(id); err != nil {
		return "", fmt.Errorf("%w: %q", ErrNoSuchUpload, id)
	}
	key, err := os.ReadFile(filepath.Join(s.uploadDir(id), keyFile))
	if errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("%w: %q", ErrNoSuchUpload, id)
	}
	if err != nil {
		return "", err
	}
	return string(key), nil
}

func (s *DirStore) UploadPart(ctx context.Context, id string, number int, body []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if number < 1 {
		return "", fmt.Errorf("%w: part number %d", ErrInvalidPart, number)
	}
	if _, err := s.lookup(id); err != nil {
		return "", err
	}
	if err := writeAtomic(s.partPath(id, number), body); err != nil {
		return "", fmt.Errorf("upload part %d: %w", number, err)
	}
	return PartETag(body), nil
}

// Complete assembles the listed parts, which must be in ascending part order
// and match the stored part ETags, into the object, and removes the staging
// directory. It returns the composite ETag.
func (s *DirStore) Complete(ctx context.Context, id string, parts []Part) (string, error) {
	key, err := s.lookup(id)
	if err != nil {
		return "", err
	}
	if !slices.IsSortedFunc(parts, func(a, b Part) int { return a.Number - b.Number }) {
		return "", fmt.Errorf("%w: parts are not in ascending order", ErrInvalidPart)
	}

	dst := s.ObjectPath(key)
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", err
	}
	tmp, err := os.CreateTemp(filepath.Dir(dst), ".partcopy-*")
	if err != nil {
		return "", err
	}
	defer os.Remove(tmp.Name())

	etags := make([]string, 0, len(parts))
	for i, p := range parts {
		if err := ctx.Err(); err != nil {
			tmp.Close()
			return "", err
		}
		if i > 0 && p.Number == parts[i-1].Number {
			tmp.Close()
			return "", fmt.Errorf("%w: duplicate part %d", ErrInvalidPart, p.Number)
		}
		if err := appendPart(tmp, s.partPath(id, p.Number), p); err != nil {
			tmp.Close()
			return "", err
		}
		etags = append(etags, p.ETag)
	}
	if err := tmp.Close(); err != nil {
		return "", err
	}

	etag, err := CompositeETag(etags)
	if err != nil {
		return "", err
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		return "", err
	}
	return etag, os.RemoveAll(s.uploadDir(id))
}

func appendPart(dst io.Writer, path string, p Part) error {
	body, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: part %d was not uploaded", ErrInvalidPart, p.Number)
	}
	if err != nil {
		return err
	}
	if got := PartETag(body); got != p.ETag {
		return fmt.Errorf("%w: part %d etag %s does not match %s", ErrInvalidPart, p.Number, p.ETag, got)
	}
	_, err = dst.Write(body)
	return err
}

// Abort discards every part of the upload.
func (s *DirStore) Abort(_ context.Context, id string) error {
	if _, err := s.lookup(id); err != nil {
		return err
	}
	return os.RemoveAll(s.uploadDir(id))
}

// Upload is a multipart upload that was created but neither completed nor aborted.
type Upload struct {
	ID        string    `json:"upload_id" yaml:"upload_id"`
	Key       string    `json:"key" yaml:"key"`
	Parts     int       `json:"parts" yaml:"parts"`
	Initiated time.Time `json:"initiated" yaml:"initiated"`
}

// Uploads lists the uploads in progress, oldest first.
func (s *DirStore) Uploads() ([]Upload, error) {
	entries, err := os.ReadDir(filepath.Join(s.root, stagingDir))
	if err != nil {
		return nil, err
	}
	uploads := make([]Upload, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		u, err := s.describe(e.Name())
		if errors.Is(err, ErrNoSuchUpload) {
			// Completed or aborted while listing.
			continue
		}
		if err != nil {
			return nil, err
		}
		uploads = append(uploads, u)
	}
	slices.SortFunc(uploads, func(a, b Upload) int {
		if c := a.Initiated.Compare(b.Initiated); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return uploads, nil
}

func (s *DirStore) describe(id string) (Upload, error) {
	key, err := s.lookup(id)
	if err != nil {
		return Upload{}, err
	}
	info, err := os.Stat(filepath.Join(s.uploadDir(id), keyFile))
	if err != nil {
		return Upload{}, fmt.Errorf("%w: %q", ErrNoSuchUpload, id)
	}
	parts, err := filepath.Glob(filepath.Join(s.uploadDir(id), "*.part"))
	if err != nil {
		return Upload{}, err
	}
	return Upload{ID: id, Key: key, Parts: len(parts), Initiated: info.ModTime()}, nil
}

func writeAtomic(path string, body []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".part-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(body); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
