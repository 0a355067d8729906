package main

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("no .env file found")
	}

	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		log.Fatal().Msg("DATABASE_URL environment variable is required")
	}

	migrationsPath, err := findMigrations()
	if err != nil {
		log.Fatal().Err(err).Msg("migrations directory not found")
	}

	m, err := migrate.New("file://"+migrationsPath, databaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open migrations")
	}
	defer m.Close()

	cmd := "up"
	if len(os.Args) > 1 {
		cmd = os.Args[1]
	}

	switch cmd {
	case "up":
		err = m.Up()
	case "down":
		err = m.Down()
	default:
		log.Fatal().Str("command", cmd).Msg("usage: migrate [up|down]")
	}
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		log.Fatal().Err(err).Str("command", cmd).Msg("migration failed")
	}

	version, dirty, verr := m.Version()
	if verr != nil && !errors.Is(verr, migrate.ErrNilVersion) {
		log.Warn().Err(verr).Msg("failed to read schema version")
	}
	log.Info().Str("command", cmd).Uint("version", version).Bool("dirty", dirty).Msg("migration complete")
}

// findMigrations looks for a migrations directory in the working directory
// and its parents.
func findMigrations() (string, error) {
	if dir := os.Getenv("MIGRATIONS_DIR"); dir != "" {
		return filepath.Abs(dir)
	}

	current, err := os.Getwd()
	if err != nil {
		return "", err
	}
	for i := 0; i < 6; i++ {
		candidate := filepath.Join(current, "migrations")
		if info, err := os.Stat(candidate); err == nil && info.IsDir() {
			return candidate, nil
		}
		parent := filepath.Dir(current)
		if parent == current {
			break
		}
		current = parent
	}
	return "", os.ErrNotExist
}
