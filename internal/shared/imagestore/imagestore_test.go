package imagestore

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func TestRemoveImageVersion(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"https://cdn.x/files/a/img.png?v=123", "https://cdn.x/files/a/img.png"},
		{"https://cdn.x/files/a/img.png#frag", "https://cdn.x/files/a/img.png"},
		{"https://cdn.x/files/a/img.png", "https://cdn.x/files/a/img.png"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := RemoveImageVersion(tt.in); got != tt.want {
			t.Errorf("RemoveImageVersion(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestGenerateImageName(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"https://files.cdn.printful.com/files/b2/prev.png?v=3", "b2-prev.png"},
		{"https://files.cdn.printful.com/files/b2/prev.png?v=4", "b2-prev.png"},
		{"https://files.cdn.printful.com/o/abc/mockup%20front.jpg", "abc-mockup_front.jpg"},
		{"https://files.cdn.printful.com/files/7f/noext", "7f-noext.png"},
		{"https://example.com/single.webp", "single.webp"},
		{"", ""},
		{"https://example.com/", ""},
	}
	for _, tt := range tests {
		if got := GenerateImageName(tt.in); got != tt.want {
			t.Errorf("GenerateImageName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestStore_DownloadOverwritesAndExists(t *testing.T) {
	body := "first"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(body))
	}))
	defer srv.Close()

	root := t.TempDir()
	s := NewStore(root, "", 0, nil)
	ctx := context.Background()

	if s.Exists(KindProduct, "a-b.png") {
		t.Fatal("image should not exist yet")
	}
	if err := s.Download(ctx, srv.URL+"/a/b.png", KindProduct, "a-b.png"); err != nil {
		t.Fatalf("Download: %v", err)
	}
	if !s.Exists(KindProduct, "a-b.png") {
		t.Fatal("image should exist after download")
	}
	if s.Exists(KindCategory, "a-b.png") {
		t.Error("kinds must not share a directory")
	}

	body = "second"
	if err := s.Download(ctx, srv.URL+"/a/b.png", KindProduct, "a-b.png"); err != nil {
		t.Fatalf("Download: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(root, "uploads", "product", "a-b.png"))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != "second" {
		t.Errorf("expected overwrite, got %q", data)
	}

	entries, _ := os.ReadDir(filepath.Join(root, "uploads", "product"))
	if len(entries) != 1 {
		t.Errorf("expected no leftover temp files, found %d entries", len(entries))
	}
}

func TestStore_DownloadFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	s := NewStore(t.TempDir(), "", 0, nil)
	if err := s.Download(context.Background(), srv.URL+"/x.png", KindProduct, "x.png"); err == nil {
		t.Fatal("expected error on 404")
	}
	if s.Exists(KindProduct, "x.png") {
		t.Error("failed download must not leave a file")
	}
}

func TestStore_PathDropsDirectories(t *testing.T) {
	s := NewStore("/srv", "", 0, nil)
	got := s.Path(KindProduct, "../../etc/passwd")
	if got != filepath.Join("/srv", "uploads", "product", "passwd") {
		t.Errorf("Path escaped upload dir: %s", got)
	}
}

func TestStore_ResolveFallback(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "default.jpg"), []byte("d"), 0o644); err != nil {
		t.Fatal(err)
	}
	s := NewStore(root, "default.jpg", 0, nil)
	ctx := context.Background()

	got, err := s.Resolve(ctx, KindProduct, "missing.png")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got != filepath.Join(root, "default.jpg") {
		t.Errorf("expected default image, got %s", got)
	}

	os.MkdirAll(filepath.Join(root, "uploads", "product"), 0o755)
	os.WriteFile(filepath.Join(root, "uploads", "product", "here.png"), []byte("x"), 0o644)
	got, err = s.Resolve(ctx, KindProduct, "here.png")
	if err != nil || got != filepath.Join(root, "uploads", "product", "here.png") {
		t.Errorf("Resolve(here.png) = %s, %v", got, err)
	}

	bare := NewStore(root, "", 0, nil)
	if _, err := bare.Resolve(ctx, KindProduct, "missing.png"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
