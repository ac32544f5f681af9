package filesys

import (
	"path/filepath"
	"testing"
)

func TestCreateDirAndExists(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "nested", "dir")

	ok, err := Exists(dir)
	if err != nil || ok {
		t.Fatalf("expected dir not to exist yet, ok=%v err=%v", ok, err)
	}

	if err := CreateDir(dir, 0755, true); err != nil {
		t.Fatalf("CreateDir: %v", err)
	}

	ok, err = Exists(dir)
	if err != nil || !ok {
		t.Fatalf("expected dir to exist, ok=%v err=%v", ok, err)
	}

	// force=true against an existing directory should not error.
	if err := CreateDir(dir, 0755, true); err != nil {
		t.Fatalf("CreateDir on existing dir: %v", err)
	}
}

func TestWriteReadDeleteFile(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "data.bin")

	if err := WriteFile(path, 0644, []byte("hello")); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	contents, err := ReadFile(path)
	if err != nil || string(contents) != "hello" {
		t.Fatalf("ReadFile = %q, %v; want %q, nil", contents, err, "hello")
	}

	if err := DeleteFile(path); err != nil {
		t.Fatalf("DeleteFile: %v", err)
	}

	ok, err := Exists(path)
	if err != nil || ok {
		t.Fatalf("expected file to be gone, ok=%v err=%v", ok, err)
	}
}

func TestDeleteDir(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "sub")
	if err := CreateDir(dir, 0755, true); err != nil {
		t.Fatal(err)
	}
	WriteFile(filepath.Join(dir, "f"), 0644, []byte("x"))

	if err := DeleteDir(dir); err != nil {
		t.Fatalf("DeleteDir: %v", err)
	}
	ok, _ := Exists(dir)
	if ok {
		t.Fatalf("expected dir to be removed")
	}
}
