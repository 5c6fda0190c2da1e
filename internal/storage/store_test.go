package storage

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/zeebo/blake3"
)

func newStore(t *testing.T, max int64) *LocalStore {
	t.Helper()
	s, err := NewLocalStore(t.TempDir(), "https://cdn.example/assets/", max)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	return s
}

func TestLocalStorePutAndDelete(t *testing.T) {
	s := newStore(t, 0)
	body := []byte("fake mp4 payload")

	obj, err := s.Put(context.Background(), PutInput{Prefix: "videos/820001-3", FileName: "clip.MP4", Body: bytes.NewReader(body)})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if !strings.HasPrefix(obj.Key, "videos/820001-3/") || !strings.HasSuffix(obj.Key, ".mp4") {
		t.Fatalf("unexpected key %q", obj.Key)
	}
	if obj.URL != "https://cdn.example/assets/"+obj.Key {
		t.Fatalf("unexpected url %q", obj.URL)
	}
	sum := blake3.Sum256(body)
	if obj.Checksum != hex.EncodeToString(sum[:]) {
		t.Fatalf("checksum mismatch")
	}
	if obj.Size != int64(len(body)) {
		t.Fatalf("size = %d", obj.Size)
	}
	onDisk, err := os.ReadFile(filepath.Join(s.Root(), filepath.FromSlash(obj.Key)))
	if err != nil || !bytes.Equal(onDisk, body) {
		t.Fatalf("stored bytes mismatch: %v", err)
	}

	if err := s.Delete(context.Background(), obj.Key); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := s.Delete(context.Background(), obj.Key); err != nil {
		t.Fatalf("second delete should be a no-op: %v", err)
	}
}

func TestLocalStoreRejects(t *testing.T) {
	s := newStore(t, 4)

	if _, err := s.Put(context.Background(), PutInput{Prefix: "videos", Body: strings.NewReader("too large")}); !errors.Is(err, ErrTooLarge) {
		t.Fatalf("expected ErrTooLarge, got %v", err)
	}
	if _, err := s.Put(context.Background(), PutInput{Prefix: "videos", Body: strings.NewReader("")}); !errors.Is(err, ErrEmpty) {
		t.Fatalf("expected ErrEmpty, got %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := s.Put(ctx, PutInput{Prefix: "videos", Body: strings.NewReader("ok")}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if err := s.Delete(context.Background(), "../etc/passwd"); !errors.Is(err, ErrInvalidKey) {
		t.Fatalf("expected ErrInvalidKey, got %v", err)
	}

	entries, _ := filepath.Glob(filepath.Join(s.Root(), "videos", ".upload-*"))
	if len(entries) != 0 {
		t.Fatalf("temp files left behind: %v", entries)
	}
}

func TestSanitize(t *testing.T) {
	if got := sanitizePrefix("../videos/a b"); got != "__/videos/a_b" {
		t.Errorf("prefix = %q", got)
	}
	if got := sanitizePrefix(""); got != "misc" {
		t.Errorf("empty prefix = %q", got)
	}
	if got := sanitizeExt("x.tar.gz"); got != ".gz" {
		t.Errorf("ext = %q", got)
	}
	if got := sanitizeExt("x.$$"); got != "" {
		t.Errorf("ext = %q", got)
	}
}

func TestLocalStorePing(t *testing.T) {
	s := newStore(t, 0)
	if err := s.Ping(context.Background()); err != nil {
		t.Fatalf("ping: %v", err)
	}
	if err := os.RemoveAll(s.Root()); err != nil {
		t.Fatalf("remove root: %v", err)
	}
	if err := s.Ping(context.Background()); err == nil {
		t.Fatal("expected ping to fail without a root")
	}
}
