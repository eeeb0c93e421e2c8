package backend

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
)

// ErrNoSQLiteDatabase is returned when no existing database could be found.
var ErrNoSQLiteDatabase = errors.New("could not find chatrelay SQLite database; pass --sqlite")

// ResolveSQLitePath returns override when set and otherwise the first
// existing database among the well known locations.
func ResolveSQLitePath(override string) (string, error) {
	if override != "" {
		return override, nil
	}

	for _, candidate := range sqliteCandidates() {
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}

	return "", ErrNoSQLiteDatabase
}

func sqliteCandidates() []string {
	candidates := []string{
		"chatrelay.db",
		filepath.Join(".chatrelay", "chatrelay.db"),
	}

	home, err := os.UserHomeDir()
	if err == nil {
		candidates = append(candidates, filepath.Join(home, ".chatrelay", "chatrelay.db"))
	}

	if xdgHome := strings.TrimSpace(os.Getenv("XDG_DATA_HOME")); xdgHome != "" {
		candidates = append([]string{
			filepath.Join(xdgHome, "chatrelay", "chatrelay.db"),
		}, candidates...)
	}

	return candidates
}
