package sqlite

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"themecore/pkg/domain"
)

func TestStorePersistsAndRehydrates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "themecore.db")

	store, err := NewStore(path, nil)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}

	var user domain.User
	var theme domain.Theme
	_, err = store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		var txErr error
		user, txErr = tx.CreateUser(domain.User{Email: "a@example.com"})
		if txErr != nil {
			return txErr
		}
		theme, txErr = tx.CreateTheme(domain.Theme{UserID: user.ID, Name: "Dark", ThemeData: json.RawMessage(`{"radius":4}`)})
		return txErr
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := NewStore(path, nil)
	if err != nil {
		t.Fatalf("reopen store: %v", err)
	}
	defer reopened.Close()

	gotUser, ok := reopened.GetUser(user.ID)
	if !ok || gotUser.Email != "a@example.com" {
		t.Fatalf("user not rehydrated: %+v ok=%v", gotUser, ok)
	}
	gotTheme, ok := reopened.GetTheme(theme.ID)
	if !ok || gotTheme.Name != "Dark" {
		t.Fatalf("theme not rehydrated: %+v ok=%v", gotTheme, ok)
	}
	if string(gotTheme.ThemeData) != `{"radius":4}` {
		t.Fatalf("theme data not rehydrated: %s", gotTheme.ThemeData)
	}
}

func TestStoreDoesNotPersistFailedTransactions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "themecore.db")

	store, err := NewStore(path, nil)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}

	_, err = store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		if _, txErr := tx.CreateUser(domain.User{Email: "a@example.com"}); txErr != nil {
			return txErr
		}
		_, txErr := tx.CreateUser(domain.User{Email: "a@example.com"})
		return txErr
	})
	if err == nil {
		t.Fatalf("expected duplicate rejection")
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := NewStore(path, nil)
	if err != nil {
		t.Fatalf("reopen store: %v", err)
	}
	defer reopened.Close()

	if users := reopened.ListUsers(); len(users) != 0 {
		t.Fatalf("failed transaction must not reach disk, got %d users", len(users))
	}
}

func TestStoreDefaultsPath(t *testing.T) {
	t.Chdir(t.TempDir())

	store, err := NewStore("", nil)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer store.Close()

	if store.Path() != "themecore.db" {
		t.Fatalf("expected default path themecore.db, got %s", store.Path())
	}
}
