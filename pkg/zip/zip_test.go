package zip

import (
	"archive/zip"
	"bytes"
	"io"
	"testing"
)

func TestArchiveAssetsRoundTrip(t *testing.T) {
	raw, err := ArchiveAssets([]Asset{
		{Filename: Filename("job", 0, "image/png"), MIME: "image/png", Data: []byte("one")},
		{Filename: Filename("job", 1, "image/jpeg"), MIME: "image/jpeg", Data: []byte("two")},
	})
	if err != nil {
		t.Fatalf("ArchiveAssets: %v", err)
	}
	zr, err := zip.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	if len(zr.File) != 2 {
		t.Fatalf("files = %d, want 2", len(zr.File))
	}
	if zr.File[0].Name != "job-01.png" || zr.File[1].Name != "job-02.jpg" {
		t.Fatalf("names = %q, %q", zr.File[0].Name, zr.File[1].Name)
	}
	rc, _ := zr.File[1].Open()
	data, _ := io.ReadAll(rc)
	_ = rc.Close()
	if string(data) != "two" {
		t.Fatalf("data = %q, want %q", data, "two")
	}
}
