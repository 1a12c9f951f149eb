package credential

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// testStores returns one of each Store implementation, backed by a temp dir.
func testStores(t *testing.T) map[string]Store {
	t.Helper()
	dir := t.TempDir()

	file, err := NewFileStore(filepath.Join(dir, "credentials.json"))
	if err != nil {
		t.Fatalf("failed to create file store: %v", err)
	}

	db, err := OpenSQLite(filepath.Join(dir, "pokedex.db"))
	if err != nil {
		t.Fatalf("failed to open sqlite store: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	return map[string]Store{
		"memory": NewMemoryStore(""),
		"file":   file,
		"sqlite": db,
	}
}

func TestStoreLifecycle(t *testing.T) {
	for name, store := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			if _, err := store.Load(); !errors.Is(err, ErrNotFound) {
				t.Fatalf("expected ErrNotFound on empty store, got %v", err)
			}

			if err := store.Save("  key-1  "); err != nil {
				t.Fatalf("Save failed: %v", err)
			}
			got, err := store.Load()
			if err != nil {
				t.Fatalf("Load failed: %v", err)
			}
			if got != "key-1" {
				t.Errorf("expected key-1, got %q", got)
			}

			if err := store.Save("key-2"); err != nil {
				t.Fatalf("Save failed: %v", err)
			}
			if got, _ := store.Load(); got != "key-2" {
				t.Errorf("expected key-2 after overwrite, got %q", got)
			}

			if err := store.Clear(); err != nil {
				t.Fatalf("Clear failed: %v", err)
			}
			if _, err := store.Load(); !errors.Is(err, ErrNotFound) {
				t.Errorf("expected ErrNotFound after clear, got %v", err)
			}

			// Clearing twice is fine
			if err := store.Clear(); err != nil {
				t.Errorf("second Clear failed: %v", err)
			}
		})
	}
}

func TestStoreRejectsEmptyKey(t *testing.T) {
	for name, store := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			if err := store.Save("   "); err == nil {
				t.Error("expected error for blank key")
			}
		})
	}
}

func TestFileStorePersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "credentials.json")

	first, err := NewFileStore(path)
	if err != nil {
		t.Fatalf("NewFileStore failed: %v", err)
	}
	if err := first.Save("persisted"); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("expected file to exist: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("expected mode 0600, got %o", perm)
	}

	second, _ := NewFileStore(path)
	if got, err := second.Load(); err != nil || got != "persisted" {
		t.Errorf("expected persisted key, got %q (%v)", got, err)
	}
}

func TestFileStoreCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.json")
	os.WriteFile(path, []byte("{not json"), 0600)

	store, _ := NewFileStore(path)
	_, err := store.Load()
	if err == nil || errors.Is(err, ErrNotFound) {
		t.Errorf("expected parse error, got %v", err)
	}
}

func TestSQLiteStorePersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pokedex.db")

	first, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite failed: %v", err)
	}
	first.Save("from-disk")
	first.Close()

	second, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer second.Close()

	if got, err := second.Load(); err != nil || got != "from-disk" {
		t.Errorf("expected from-disk, got %q (%v)", got, err)
	}
}

func TestTerminalPrompterPipe(t *testing.T) {
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	// Blank lines are skipped until a key arrives
	go func() {
		w.Write([]byte("\n   \nsecret-key\n"))
		w.Close()
	}()

	p := &TerminalPrompter{In: r, Out: io.Discard, Prompt: "key: "}
	got, err := p.PromptForCredential(context.Background())
	if err != nil {
		t.Fatalf("PromptForCredential failed: %v", err)
	}
	if got != "secret-key" {
		t.Errorf("expected secret-key, got %q", got)
	}
}

func TestTerminalPrompterEOF(t *testing.T) {
	r, w, _ := os.Pipe()
	defer r.Close()
	w.Close()

	p := &TerminalPrompter{In: r, Out: io.Discard}
	if _, err := p.PromptForCredential(context.Background()); err == nil {
		t.Error("expected error on EOF without a key")
	}
}

func TestTerminalPrompterCancel(t *testing.T) {
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()
	defer w.Close()

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)

	// Nothing is ever written, so only cancellation can end the read
	done := make(chan error, 1)
	go func() {
		_, err := (&TerminalPrompter{In: r, Out: io.Discard}).PromptForCredential(ctx)
		done <- err
	}()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("prompt did not return after cancel")
	}
}

func TestPrompterFunc(t *testing.T) {
	var p Prompter = PrompterFunc(func(ctx context.Context) (string, error) {
		return "fn-key", nil
	})
	if got, _ := p.PromptForCredential(context.Background()); got != "fn-key" {
		t.Errorf("expected fn-key, got %q", got)
	}
}
