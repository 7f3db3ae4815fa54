package migration

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	appconfig "github.com/agorahq/agora/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDatabaseType(t *testing.T) {
	tests := []struct {
		input    string
		expected DatabaseType
		wantErr  bool
	}{
		{"postgres", DatabaseTypePostgres, false},
		{"postgresql", DatabaseTypePostgres, false},
		{"pg", DatabaseTypePostgres, false},
		{"POSTGRES", DatabaseTypePostgres, false},
		{"mysql", DatabaseTypeMySQL, false},
		{"mariadb", DatabaseTypeMySQL, false},
		{"sqlite", DatabaseTypeSQLite, false},
		{"sqlite3", DatabaseTypeSQLite, false},
		{"oracle", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result, err := ParseDatabaseType(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.expected, result)
			}
		})
	}
}

func TestMigrateURL(t *testing.T) {
	pg := appconfig.DatabaseConfig{Host: "localhost", Port: 5432, User: "u", Password: "p", Name: "agora", SSLMode: "disable"}
	assert.Equal(t,
		"postgres://u:p@localhost:5432/agora?sslmode=disable",
		migrateURL(DatabaseTypePostgres, pg))

	pg.SSLMode = ""
	assert.Equal(t,
		"postgres://u:p@localhost:5432/agora?sslmode=disable",
		migrateURL(DatabaseTypePostgres, pg))

	my := appconfig.DatabaseConfig{Host: "localhost", Port: 3306, User: "u", Password: "p", Name: "agora"}
	assert.Equal(t,
		"u:p@tcp(localhost:3306)/agora?parseTime=true&multiStatements=true",
		migrateURL(DatabaseTypeMySQL, my))

	lite := appconfig.DatabaseConfig{Name: "/tmp/agora.db"}
	assert.Equal(t,
		"file:/tmp/agora.db?mode=rwc&_foreign_keys=on",
		migrateURL(DatabaseTypeSQLite, lite))
}

func TestNewMigrator_InvalidConfig(t *testing.T) {
	_, err := NewMigrator(nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config is required")

	_, err = NewMigrator(&Config{DatabaseType: DatabaseTypeSQLite})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database URL is required")
}

func TestMigrator_SQLite_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	dbPath := filepath.Join(t.TempDir(), "test.db")
	migrator, err := NewMigrator(&Config{
		DatabaseType: DatabaseTypeSQLite,
		DatabaseURL:  "file:" + dbPath + "?mode=rwc&_foreign_keys=on",
	})
	require.NoError(t, err)
	defer migrator.Close()

	ctx := context.Background()

	version, dirty, err := migrator.Version(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint(0), version)
	assert.False(t, dirty)

	require.NoError(t, migrator.Up(ctx))

	version, dirty, err = migrator.Version(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint(2), version)
	assert.False(t, dirty)

	statuses, err := migrator.Status(ctx)
	require.NoError(t, err)
	require.Len(t, statuses, 2)
	assert.Equal(t, "create_discussions", statuses[0].Name)
	assert.Equal(t, "create_discussion_events", statuses[1].Name)
	for _, s := range statuses {
		assert.True(t, s.Applied)
	}

	summary, err := migrator.Summary(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint(2), summary.CurrentVersion)
	assert.Equal(t, 2, summary.Applied)
	assert.Zero(t, summary.Pending)

	require.NoError(t, migrator.Down(ctx))
	version, _, err = migrator.Version(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)

	require.NoError(t, migrator.Reset(ctx))
	version, _, err = migrator.Version(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint(0), version)
}

func TestAvailableMigrations_Sorted(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that opens sqlite in short mode")
	}

	dbPath := filepath.Join(t.TempDir(), "test.db")
	migrator, err := NewMigrator(&Config{
		DatabaseType: DatabaseTypeSQLite,
		DatabaseURL:  "file:" + dbPath + "?mode=rwc&_foreign_keys=on",
	})
	require.NoError(t, err)
	defer migrator.Close()

	files, err := migrator.availableMigrations()
	require.NoError(t, err)
	require.NotEmpty(t, files)
	for i := 1; i < len(files); i++ {
		assert.Greater(t, files[i].version, files[i-1].version)
	}
}

func TestCLI_Output(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	dbPath := filepath.Join(t.TempDir(), "test.db")
	migrator, err := NewMigrator(&Config{
		DatabaseType: DatabaseTypeSQLite,
		DatabaseURL:  "file:" + dbPath + "?mode=rwc&_foreign_keys=on",
	})
	require.NoError(t, err)
	defer migrator.Close()

	var buf bytes.Buffer
	cli := NewCLI(migrator)
	cli.SetOutput(&buf)

	ctx := context.Background()

	require.NoError(t, cli.RunVersion(ctx))
	assert.Contains(t, buf.String(), "No migrations applied yet")

	buf.Reset()
	require.NoError(t, cli.RunUp(ctx))
	assert.Contains(t, buf.String(), "Current version: 2")

	buf.Reset()
	require.NoError(t, cli.RunStatus(ctx))
	assert.Contains(t, buf.String(), "create_discussions")
	assert.Contains(t, buf.String(), "Applied")
}
