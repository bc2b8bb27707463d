package database

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigDSNQuotesValues(t *testing.T) {
	cfg := Config{User: "bot", Password: "p'ss word", Host: "db", Port: "5432", Name: "reports"}
	assert.Equal(t,
		`user='bot' password='p\'ss word' host='db' port='5432' dbname='reports' sslmode='disable'`,
		cfg.DSN())
}

func TestConfigURLEscapesPassword(t *testing.T) {
	cfg := Config{User: "bot", Password: "p@ss/word", Host: "db", Port: "5433", Name: "reports", SSLMode: "require"}
	assert.Equal(t, "postgres://bot:p%40ss%2Fword@db:5433/reports?sslmode=require", cfg.URL())
}

func TestMigrationsDirDefault(t *testing.T) {
	assert.Equal(t, DefaultMigrationsDir, Config{}.migrationsDir())
	assert.Equal(t, "/srv/sql", Config{MigrationsDir: " /srv/sql "}.migrationsDir())
}

func TestUpMigrationsAndAppliedBetween(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{
		"000002_add_index.up.sql",
		"000001_create_report_sessions.up.sql",
		"000001_create_report_sessions.down.sql",
		"notes.txt",
	} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("--"), 0o600))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "000003_dir.up.sql"), 0o700))

	files := upMigrations(dir)
	assert.Equal(t, []string{"000001_create_report_sessions.up.sql", "000002_add_index.up.sql"}, files)
	assert.Equal(t, []string{"000002_add_index.up.sql"}, appliedBetween(files, 1, 2))
	assert.Empty(t, appliedBetween(files, 2, 2))
	assert.Nil(t, upMigrations(filepath.Join(dir, "absent")))
}

func TestRepoMigrationsArePaired(t *testing.T) {
	ups := upMigrations(filepath.Join("..", "..", "migrations"))
	require.NotEmpty(t, ups)
	for _, up := range ups {
		down := up[:len(up)-len(".up.sql")] + ".down.sql"
		_, err := os.Stat(filepath.Join("..", "..", "migrations", down))
		assert.NoError(t, err, "missing %s", down)
	}
}
