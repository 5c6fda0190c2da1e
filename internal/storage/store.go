// Package storage persists uploaded videos and images and hands back
// references that can be bound to tickets.
package storage

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/oklog/ulid/v2"
	"github.com/zeebo/blake3"
)

var (
	ErrTooLarge   = errors.New("asset exceeds size limit")
	ErrEmpty      = errors.New("asset is empty")
	ErrInvalidKey = errors.New("invalid storage key")
)

// Object describes a stored asset.
type Object struct {
	Key      string
	URL      string
	Size     int64
	Checksum string
}

// PutInput is one upload. Prefix groups objects (for example "videos/820001-3").
type PutInput struct {
	Prefix      string
	FileName    string
	ContentType string
	Body        io.Reader
}

// Store persists assets. Put returns only after the object is durable.
type Store interface {
	Put(ctx context.Context, in PutInput) (Object, error)
	Delete(ctx context.Context, key string) error
}

// LocalStore writes assets below a root directory. Objects become visible
// under their final key only after a complete write (temp file + rename).
type LocalStore struct {
	root          string
	publicBaseURL string
	maxBytes      int64
}

// NewLocalStore creates root if needed. maxBytes <= 0 disables the limit.
func NewLocalStore(root, publicBaseURL string, maxBytes int64) (*LocalStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create storage root: %w", err)
	}
	return &LocalStore{
		root:          root,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
		maxBytes:      maxBytes,
	}, nil
}

// Root returns the directory assets are written to.
func (s *LocalStore) Root() string { return s.root }

// Ping reports whether the root is still a usable directory.
func (s *LocalStore) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	info, err := os.Stat(s.root)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("storage root %s is not a directory", s.root)
	}
	return nil
}

// Put streams the body to disk while computing its blake3 checksum.
func (s *LocalStore) Put(ctx context.Context, in PutInput) (Object, error) {
	if err := ctx.Err(); err != nil {
		return Object{}, err
	}
	if in.Body == nil {
		return Object{}, ErrEmpty
	}

	key := path.Join(sanitizePrefix(in.Prefix), ulid.Make().String()+sanitizeExt(in.FileName))
	dest := filepath.Join(s.root, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return Object{}, fmt.Errorf("create asset dir: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), ".upload-*")
	if err != nil {
		return Object{}, fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	discard := func() { _ = os.Remove(tmpName) }

	reader := in.Body
	if s.maxBytes > 0 {
		reader = io.LimitReader(in.Body, s.maxBytes+1)
	}
	hasher := blake3.New()
	n, copyErr := io.Copy(io.MultiWriter(tmp, hasher), reader)
	closeErr := tmp.Close()

	switch {
	case copyErr != nil:
		discard()
		return Object{}, fmt.Errorf("write asset: %w", copyErr)
	case closeErr != nil:
		discard()
		return Object{}, fmt.Errorf("close asset: %w", closeErr)
	case s.maxBytes > 0 && n > s.maxBytes:
		discard()
		return Object{}, ErrTooLarge
	case n == 0:
		discard()
		return Object{}, ErrEmpty
	}
	if err := ctx.Err(); err != nil {
		discard()
		return Object{}, err
	}
	if err := os.Rename(tmpName, dest); err != nil {
		discard()
		return Object{}, fmt.Errorf("commit asset: %w", err)
	}

	return Object{
		Key:      key,
		URL:      s.publicBaseURL + "/" + key,
		Size:     n,
		Checksum: hex.EncodeToString(hasher.Sum(nil)),
	}, nil
}

// Delete removes the object. Missing objects are not an error.
func (s *LocalStore) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	clean := path.Clean("/" + key)
	if key == "" || clean == "/" || strings.Contains(key, "..") {
		return ErrInvalidKey
	}
	err := os.Remove(filepath.Join(s.root, filepath.FromSlash(strings.TrimPrefix(clean, "/"))))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func sanitizePrefix(prefix string) string {
	var b strings.Builder
	for _, r := range strings.Trim(prefix, "/") {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '/':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	out := path.Clean("/" + b.String())
	if out == "/" {
		return "misc"
	}
	return strings.TrimPrefix(out, "/")
}

func sanitizeExt(fileName string) string {
	ext := strings.ToLower(filepath.Ext(fileName))
	if len(ext) < 2 || len(ext) > 8 {
		return ""
	}
	for _, r := range ext[1:] {
		if !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9') {
			return ""
		}
	}
	return ext
}
