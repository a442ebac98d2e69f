package filelock

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestAcquireRelease(t *testing.T) {
	lockPath := filepath.Join(t.TempDir(), "test.lock")
	lock := NewFileLock(lockPath)

	if lock.Path() != lockPath {
		t.Errorf("Path() = %s, want %s", lock.Path(), lockPath)
	}
	if err := lock.Acquire(context.Background()); err != nil {
		t.Fatalf("Failed to acquire lock: %v", err)
	}
	if err := lock.Release(); err != nil {
		t.Fatalf("Failed to release lock: %v", err)
	}
}

func TestTryAcquire(t *testing.T) {
	lockPath := filepath.Join(t.TempDir(), "test.lock")

	holder := NewFileLock(lockPath)
	if err := holder.Acquire(context.Background()); err != nil {
		t.Fatalf("Failed to acquire lock: %v", err)
	}

	other := NewFileLock(lockPath)
	acquired, err := other.TryAcquire()
	if err != nil {
		t.Fatalf("TryAcquire error: %v", err)
	}
	if acquired {
		t.Fatal("TryAcquire should fail while the lock is held")
	}

	if err := holder.Release(); err != nil {
		t.Fatal(err)
	}
	acquired, err = other.TryAcquire()
	if err != nil || !acquired {
		t.Fatalf("TryAcquire after release = %v, %v", acquired, err)
	}
	other.Release()
}

func TestAcquireTimesOut(t *testing.T) {
	lockPath := filepath.Join(t.TempDir(), "test.lock")

	holder := NewFileLock(lockPath)
	if err := holder.Acquire(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer holder.Release()

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()

	err := NewFileLock(lockPath).Acquire(ctx)
	if !errors.Is(err, ErrLockTimeout) {
		t.Fatalf("expected ErrLockTimeout, got %v", err)
	}
}

func TestAtomicWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "result.json")

	if err := AtomicWrite(path, []byte("first")); err != nil {
		t.Fatalf("AtomicWrite failed: %v", err)
	}
	if err := AtomicWrite(path, []byte("second")); err != nil {
		t.Fatalf("AtomicWrite overwrite failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "second" {
		t.Errorf("content = %q, want %q", data, "second")
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0644 {
		t.Errorf("permissions = %v, want 0644", info.Mode().Perm())
	}

	entries, _ := os.ReadDir(filepath.Dir(path))
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".tmp-") {
			t.Errorf("temp file left behind: %s", e.Name())
		}
	}
}

func TestLockAndWrite_KeepsLockFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.json")

	if err := LockAndWrite(context.Background(), path, []byte("{}")); err != nil {
		t.Fatalf("LockAndWrite failed: %v", err)
	}
	if _, err := os.Stat(path + ".lock"); err != nil {
		t.Errorf("lock file should remain: %v", err)
	}

	// The lock is free again once the write returns.
	acquired, err := NewFileLock(path + ".lock").TryAcquire()
	if err != nil || !acquired {
		t.Errorf("TryAcquire after write = %v, %v", acquired, err)
	}
}

func TestConcurrentLockAndWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.txt")

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			payload := strings.Repeat(string(rune('a'+n)), 4096)
			if err := LockAndWrite(context.Background(), path, []byte(payload)); err != nil {
				t.Errorf("LockAndWrite failed: %v", err)
			}
		}(i)
	}
	wg.Wait()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(data) != 4096 || strings.Count(string(data), string(data[0])) != 4096 {
		t.Error("file content is a mix of concurrent writes")
	}
}

func TestWriteJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "result.json")
	in := map[string]any{"status": "completed", "agents": []string{"a", "b"}}

	if err := WriteJSON(context.Background(), path, in); err != nil {
		t.Fatalf("WriteJSON failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasSuffix(string(data), "}\n") {
		t.Errorf("expected trailing newline, got %q", data)
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if out["status"] != "completed" {
		t.Errorf("status = %v", out["status"])
	}

	if err := WriteJSON(context.Background(), path, func() {}); err == nil {
		t.Error("expected encode error for a func value")
	}
}
