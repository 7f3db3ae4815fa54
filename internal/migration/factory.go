package migration

import (
	"fmt"

	appconfig "github.com/agorahq/agora/config"
)

// NewMigratorFromConfig builds a migrator from the application database
// configuration.
func NewMigratorFromConfig(cfg appconfig.DatabaseConfig) (*SQLMigrator, error) {
	dbType, err := ParseDatabaseType(cfg.Driver)
	if err != nil {
		return nil, fmt.Errorf("invalid database type: %w", err)
	}

	return NewMigrator(&Config{
		DatabaseType: dbType,
		DatabaseURL:  migrateURL(dbType, cfg),
	})
}

// migrateURL builds the sql.Open DSN for the migration connection.
// MySQL needs multiStatements for multi-statement migration files.
func migrateURL(dbType DatabaseType, cfg appconfig.DatabaseConfig) string {
	switch dbType {
	case DatabaseTypePostgres:
		sslMode := cfg.SSLMode
		if sslMode == "" {
			sslMode = "disable"
		}
		return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
			cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Name, sslMode)
	case DatabaseTypeMySQL:
		return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&multiStatements=true",
			cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Name)
	case DatabaseTypeSQLite:
		return fmt.Sprintf("file:%s?mode=rwc&_foreign_keys=on", cfg.Name)
	default:
		return ""
	}
}
