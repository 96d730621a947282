package commands

import (
	"database/sql"

	"github.com/helical/genefold/config"
	"github.com/helical/genefold/db"
	"github.com/helical/genefold/errors"
	"github.com/helical/genefold/logger"
)

// openDatabase opens and migrates the job database. An empty override uses
// the configured path.
func openDatabase(cfg *config.Config, override string) (*sql.DB, error) {
	path := cfg.Database.Path
	if override != "" {
		path = override
	}

	database, err := db.Open(path, logger.Logger)
	if err != nil {
		return nil, errors.Wrapf(err, "open database %s", path)
	}
	if err := db.Migrate(database, logger.Logger); err != nil {
		database.Close()
		return nil, errors.Wrap(err, "migrate database")
	}
	return database, nil
}

// truncate shortens a string for table display.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
