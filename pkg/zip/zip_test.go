package zip

import (
	"archive/zip"
	"bytes"
	"io"
	"testing"
)

func TestArchiveAssets(t *testing.T) {
	archive := ArchiveAssets([]Asset{
		{Filename: "image-01.png", MIME: "image/png", Data: []byte("first")},
		{Filename: "image-02.png", MIME: "image/png", Data: []byte("second")},
	})

	zr, err := zip.NewReader(bytes.NewReader(archive), int64(len(archive)))
	if err != nil {
		t.Fatalf("open archive: %v", err)
	}
	if len(zr.File) != 2 {
		t.Fatalf("entries = %d, want 2", len(zr.File))
	}
	want := map[string]string{"image-01.png": "first", "image-02.png": "second"}
	for _, f := range zr.File {
		rc, err := f.Open()
		if err != nil {
			t.Fatalf("open %s: %v", f.Name, err)
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			t.Fatalf("read %s: %v", f.Name, err)
		}
		if string(data) != want[f.Name] {
			t.Fatalf("%s = %q, want %q", f.Name, data, want[f.Name])
		}
	}
}

func TestArchiveAssetsDeduplicatesNames(t *testing.T) {
	archive := ArchiveAssets([]Asset{
		{Filename: "image-01.png", MIME: "image/png", Data: []byte("first")},
		{Filename: "image-01.png", MIME: "image/png", Data: []byte("second")},
	})

	zr, err := zip.NewReader(bytes.NewReader(archive), int64(len(archive)))
	if err != nil {
		t.Fatalf("open archive: %v", err)
	}
	if len(zr.File) != 2 {
		t.Fatalf("entries = %d, want 2", len(zr.File))
	}
	names := map[string]bool{}
	for _, f := range zr.File {
		if names[f.Name] {
			t.Fatalf("duplicate entry name %q", f.Name)
		}
		names[f.Name] = true
	}
	if !names["image-01.png"] || !names["1-image-01.png"] {
		t.Fatalf("entry names = %v", names)
	}
}

func TestArchiveAssetsEmpty(t *testing.T) {
	archive := ArchiveAssets(nil)
	if _, err := zip.NewReader(bytes.NewReader(archive), int64(len(archive))); err != nil {
		t.Fatalf("empty archive must still be a valid zip: %v", err)
	}
}
