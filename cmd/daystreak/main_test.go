package main

import (
	"errors"
	"path/filepath"
	"testing"

	gokeyring "github.com/zalando/go-keyring"

	"github.com/julianstephens/daystreak/internal/config"
	"github.com/julianstephens/daystreak/internal/keyring"
	"github.com/julianstephens/daystreak/internal/storage/postgres"
	"github.com/julianstephens/daystreak/internal/storage/sqlite"
)

func TestOpenStore(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name       string
		database   string
		keyring    string
		wantSQLite string
		wantPG     bool
		wantErr    error
	}{
		{name: "default sqlite file", wantSQLite: config.DefaultDatabasePath(dir)},
		{name: "explicit sqlite file", database: filepath.Join(dir, "other.db"), wantSQLite: filepath.Join(dir, "other.db")},
		{name: "postgres url", database: "postgres://alice@localhost:5432/daystreak", wantPG: true},
		{name: "postgres url with password", database: "postgres://alice:pw@localhost/daystreak", wantErr: postgres.ErrEmbeddedCredentials},
		{name: "keyring fallback", keyring: "postgres://alice:pw@localhost/daystreak", wantPG: true},
		{name: "flag beats keyring", database: filepath.Join(dir, "flag.db"), keyring: "postgres://alice@localhost/daystreak", wantSQLite: filepath.Join(dir, "flag.db")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gokeyring.MockInit()
			if tt.keyring != "" {
				if err := keyring.SetConnectionString(tt.keyring); err != nil {
					t.Fatalf("failed to seed keyring: %v", err)
				}
				defer func() { _ = keyring.DeleteConnectionString() }()
			}

			store, err := openStore(&config.Config{Dir: dir, Database: tt.database})
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("openStore() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("openStore() error = %v", err)
			}

			switch s := store.(type) {
			case *sqlite.Store:
				if tt.wantPG {
					t.Fatal("expected postgres store, got sqlite")
				}
				if s.GetConfigPath() != tt.wantSQLite {
					t.Errorf("sqlite path = %s, want %s", s.GetConfigPath(), tt.wantSQLite)
				}
			case *postgres.Store:
				if !tt.wantPG {
					t.Fatal("expected sqlite store, got postgres")
				}
			default:
				t.Fatalf("unexpected store type %T", store)
			}
		})
	}
}
