package database

import (
	"context"
	"database/sql"
	"errors"
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrationsEmbedded(t *testing.T) {
	entries, err := fs.ReadDir(migrationsFS, "migrations")
	require.NoError(t, err)

	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.Equal(t, []string{
		"00001_create_roles_users.sql",
		"00002_create_user_tokens.sql",
	}, names)

	body, err := fs.ReadFile(migrationsFS, "migrations/00002_create_user_tokens.sql")
	require.NoError(t, err)
	assert.Contains(t, string(body), "PRIMARY KEY (user_id, purpose)")
}

func TestMigrate_PropagatesGooseError(t *testing.T) {
	orig := gooseUp
	t.Cleanup(func() { gooseUp = orig })

	var gotDir string
	gooseUp = func(ctx context.Context, db *sql.DB, dir string) error {
		gotDir = dir
		return errors.New("boom")
	}

	err := migrate(context.Background(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "goose up: boom")
	assert.Equal(t, "migrations", gotDir)
}
