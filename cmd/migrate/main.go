package main

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/joho/godotenv"
	"github.com/reduanahmadswe/SmartHealthcare-sub001/pkg/logging"
)

// Applies the consultation schema migrations. `migrate` runs everything up,
// `migrate down` rolls the last batch back.
func main() {
	logger := logging.Default()

	if err := godotenv.Load(); err != nil {
		logger.Info("no .env file found")
	}

	dbUrl := os.Getenv("DB_URL")
	if dbUrl == "" {
		logger.Error("DB_URL environment variable is required")
		os.Exit(1)
	}

	migrationsPath, err := findMigrationsDir()
	if err != nil {
		logger.Error("locate migrations", "error", err)
		os.Exit(1)
	}

	m, err := migrate.New("file://"+migrationsPath, dbUrl)
	if err != nil {
		logger.Error("open migrator", "error", err)
		os.Exit(1)
	}

	cmd := "up"
	if len(os.Args) > 1 {
		cmd = os.Args[1]
	}

	switch cmd {
	case "down":
		if err := m.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			logger.Error("migrate down", "error", err)
			os.Exit(1)
		}
		logger.Info("schema rolled back", "migrations", migrationsPath)
	default:
		if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			logger.Error("migrate up", "error", err)
			os.Exit(1)
		}
		logger.Info("schema migrated", "migrations", migrationsPath)
	}
}

// findMigrationsDir probes upward from the working directory and around the
// binary, so the runner works from the repo root, a package dir, or a
// deployed artifact.
func findMigrationsDir() (string, error) {
	var candidates []string

	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	current := cwd
	for i := 0; i < 6; i++ {
		candidates = append(candidates, filepath.Join(current, "migrations"))
		parent := filepath.Dir(current)
		if parent == current {
			break
		}
		current = parent
	}

	if exePath, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exePath)
		candidates = append(candidates,
			filepath.Join(exeDir, "migrations"),
			filepath.Join(exeDir, "..", "migrations"),
			filepath.Join(exeDir, "..", "..", "migrations"),
		)
	}

	for _, candidate := range candidates {
		if info, err := os.Stat(candidate); err == nil && info.IsDir() {
			return filepath.Abs(candidate)
		}
	}
	return "", errors.New("migrations directory not found")
}
