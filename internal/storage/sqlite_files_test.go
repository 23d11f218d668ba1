package storage

import (
	"os"
	"path/filepath"
	"testing"
)

func TestHasLocalDBFilesReturnsFalseWhenMissing(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "driverlog.db")
	exists, err := hasLocalDBFiles(path)
	if err != nil {
		t.Fatalf("hasLocalDBFiles() unexpected error: %v", err)
	}
	if exists {
		t.Fatal("hasLocalDBFiles() = true, want false")
	}
}

func TestHasLocalDBFilesDetectsWalOrShm(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "driverlog.db")
	if err := os.WriteFile(path+"-wal", []byte("wal"), 0o600); err != nil {
		t.Fatalf("write wal file: %v", err)
	}

	exists, err := hasLocalDBFiles(path)
	if err != nil {
		t.Fatalf("hasLocalDBFiles() unexpected error: %v", err)
	}
	if !exists {
		t.Fatal("hasLocalDBFiles() = false, want true")
	}
}

func TestWipeRemovesDatabaseFiles(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "driverlog.db")
	for _, p := range []string{path, path + "-shm"} {
		if err := os.WriteFile(p, []byte("x"), 0o600); err != nil {
			t.Fatalf("write %s: %v", p, err)
		}
	}

	existed, err := Wipe(Config{Driver: DriverSQLite, Path: path})
	if err != nil {
		t.Fatalf("Wipe() unexpected error: %v", err)
	}
	if !existed {
		t.Fatal("Wipe() existed = false, want true")
	}
	if exists, _ := hasLocalDBFiles(path); exists {
		t.Fatal("database files remain after Wipe()")
	}
}

func TestWipeRefusesPostgres(t *testing.T) {
	t.Parallel()

	if _, err := Wipe(Config{Driver: DriverPostgres, DSN: "postgres://x"}); err == nil {
		t.Fatal("Wipe() error = nil, want error for postgres")
	}
}
