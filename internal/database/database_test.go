package database

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/chatterbox-server/chatterbox/internal/database/models"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestOpenAndMigrate(t *testing.T) {
	dir := t.TempDir()

	db, err := Open(dir)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	defer db.Close()

	// Verify database file was created.
	dbPath := filepath.Join(dir, "chatterbox.db")
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Fatal("database file was not created")
	}

	// Verify WAL mode is active.
	var journalMode string
	if err := db.QueryRow("PRAGMA journal_mode").Scan(&journalMode); err != nil {
		t.Fatalf("querying journal_mode: %v", err)
	}
	if journalMode != "wal" {
		t.Errorf("journal_mode = %q, want wal", journalMode)
	}

	// Verify all tables exist.
	for _, table := range []string{"schema_migrations", "users", "chat_history"} {
		var count int
		err := db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&count)
		if err != nil {
			t.Errorf("checking table %s: %v", table, err)
		}
		if count != 1 {
			t.Errorf("table %s not found", table)
		}
	}

	// Opening again must not re-run migrations.
	db2, err := Open(dir)
	if err != nil {
		t.Fatalf("second Open() error: %v", err)
	}
	db2.Close()
}

func TestUserRepository(t *testing.T) {
	db := openTestDB(t)
	users := NewUserRepository(db)
	ctx := context.Background()

	hash, err := HashPassword("s3cret")
	if err != nil {
		t.Fatalf("HashPassword() error: %v", err)
	}

	user := &models.User{Username: "alice", PasswordHash: hash}
	if err := users.Create(ctx, user); err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	if user.ID == 0 {
		t.Error("Create() did not set ID")
	}

	t.Run("duplicate username", func(t *testing.T) {
		dup := &models.User{Username: "alice", PasswordHash: hash}
		if err := users.Create(ctx, dup); !errors.Is(err, ErrUsernameTaken) {
			t.Errorf("Create(duplicate) error = %v, want ErrUsernameTaken", err)
		}
	})

	t.Run("lookup", func(t *testing.T) {
		got, err := users.GetByUsername(ctx, "alice")
		if err != nil {
			t.Fatalf("GetByUsername() error: %v", err)
		}
		if got.Username != "alice" || got.PasswordHash != hash {
			t.Errorf("GetByUsername() = %+v, want stored user", got)
		}
		if got.LastLogin != nil {
			t.Error("LastLogin set before first login")
		}
	})

	t.Run("unknown user", func(t *testing.T) {
		if _, err := users.GetByUsername(ctx, "nobody"); !errors.Is(err, ErrUserNotFound) {
			t.Errorf("GetByUsername(unknown) error = %v, want ErrUserNotFound", err)
		}
	})

	t.Run("touch last login", func(t *testing.T) {
		if err := users.TouchLastLogin(ctx, "alice"); err != nil {
			t.Fatalf("TouchLastLogin() error: %v", err)
		}
		got, err := users.GetByUsername(ctx, "alice")
		if err != nil {
			t.Fatalf("GetByUsername() error: %v", err)
		}
		if got.LastLogin == nil {
			t.Error("LastLogin still nil after TouchLastLogin")
		}
	})

	t.Run("count", func(t *testing.T) {
		n, err := users.Count(ctx)
		if err != nil {
			t.Fatalf("Count() error: %v", err)
		}
		if n != 1 {
			t.Errorf("Count() = %d, want 1", n)
		}
	})
}

func TestMessageRepository(t *testing.T) {
	db := openTestDB(t)
	messages := NewMessageRepository(db)
	ctx := context.Background()

	pairs := []struct{ sender, receiver, text string }{
		{"alice", "bob", "hi bob"},
		{"bob", "alice", "hi alice"},
		{"alice", "bob", "how are you"},
		{"alice", "carol", "unrelated"},
	}
	for _, p := range pairs {
		msg := &models.Message{Sender: p.sender, Receiver: p.receiver, Message: p.text}
		if err := messages.Save(ctx, msg); err != nil {
			t.Fatalf("Save(%q) error: %v", p.text, err)
		}
	}

	history, err := messages.History(ctx, "alice", "bob", 50)
	if err != nil {
		t.Fatalf("History() error: %v", err)
	}
	if len(history) != 3 {
		t.Fatalf("History() returned %d messages, want 3", len(history))
	}

	// Oldest first, both directions, no bleed from other conversations.
	wantTexts := []string{"hi bob", "hi alice", "how are you"}
	for i, want := range wantTexts {
		if history[i].Message != want {
			t.Errorf("history[%d].Message = %q, want %q", i, history[i].Message, want)
		}
	}

	t.Run("limit keeps newest", func(t *testing.T) {
		limited, err := messages.History(ctx, "alice", "bob", 2)
		if err != nil {
			t.Fatalf("History() error: %v", err)
		}
		if len(limited) != 2 {
			t.Fatalf("History(limit=2) returned %d messages, want 2", len(limited))
		}
		if limited[0].Message != "hi alice" || limited[1].Message != "how are you" {
			t.Errorf("History(limit=2) = %q/%q, want the two newest messages oldest-first",
				limited[0].Message, limited[1].Message)
		}
	})

	t.Run("symmetric lookup", func(t *testing.T) {
		reversed, err := messages.History(ctx, "bob", "alice", 50)
		if err != nil {
			t.Fatalf("History() error: %v", err)
		}
		if len(reversed) != len(history) {
			t.Errorf("History(bob, alice) returned %d messages, want %d", len(reversed), len(history))
		}
	})
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("correct horse")
	if err != nil {
		t.Fatalf("HashPassword() error: %v", err)
	}
	if hash == "correct horse" {
		t.Fatal("hash equals plaintext")
	}

	if !CheckPassword("correct horse", hash) {
		t.Error("CheckPassword rejected the right password")
	}
	if CheckPassword("battery staple", hash) {
		t.Error("CheckPassword accepted the wrong password")
	}
	if CheckPassword("correct horse", "not-a-hash") {
		t.Error("CheckPassword accepted a malformed hash")
	}
}
