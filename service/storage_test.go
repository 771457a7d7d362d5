package service

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestLocalStorage(t *testing.T) {
	ctx := context.Background()
	localdir, distdir, localdir2 := t.TempDir(), t.TempDir(), t.TempDir()

	name := "S1A__IW___A_20210101T053000_VV.tif"
	if err := os.WriteFile(filepath.Join(localdir, name), []byte("test"), 0644); err != nil {
		t.Fatal(err)
	}

	storage, err := NewStorageStrategy(ctx, distdir)
	if err != nil {
		t.Fatal(err)
	}

	key := "sentinel1/tileA/" + name
	if _, err := storage.Upload(ctx, filepath.Join(localdir, name), key); err != nil {
		t.Error(err)
	}
	if err := storage.Download(ctx, key, filepath.Join(localdir2, name)); err != nil {
		t.Error(err)
	}
	if b, err := os.ReadFile(filepath.Join(localdir2, name)); err != nil || string(b) != "test" {
		t.Errorf("expected test, got %s (%v)", b, err)
	}

	if _, err := storage.UploadDir(ctx, localdir, "sentinel1/tileA"); err != nil {
		t.Error(err)
	}
	if _, err := os.Stat(filepath.Join(distdir, "sentinel1", "tileA.zip")); err != nil {
		t.Error(err)
	}

	err = storage.Download(ctx, "sentinel1/none.tif", filepath.Join(localdir2, "none.tif"))
	if _, ok := err.(ErrFileNotFound); !ok {
		t.Errorf("expected ErrFileNotFound, got %v", err)
	}
}

func TestWithExt(t *testing.T) {
	if s := WithExt("/data/tileA/20210101_LEVEL2_SEN2A_BOA.tif", ExtensionYAML); s != "/data/tileA/20210101_LEVEL2_SEN2A_BOA.yaml" {
		t.Errorf("unexpected %s", s)
	}
	if e := GetExt("/data/tileA/x.tif"); e != ExtensionGTiff {
		t.Errorf("unexpected %s", e)
	}
	if e := GetExt("/data/tileA/x"); e != NoExtension {
		t.Errorf("unexpected %s", e)
	}
}
