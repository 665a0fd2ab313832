package secrets

import (
	"fmt"
	"sort"
	"strings"

	"github.com/tsijukebox/jukebox-backend/internal/config"
)

// ValidationError lists required settings that are empty.
type ValidationError struct {
	Empty []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("empty values for required environment variables: %s", strings.Join(e.Empty, ", "))
}

// ValidateRequired returns a ValidationError naming every empty entry of
// required, sorted by name.
func ValidateRequired(required map[string]string) error {
	var empty []string
	for key, value := range required {
		if strings.TrimSpace(value) == "" {
			empty = append(empty, key)
		}
	}
	if len(empty) == 0 {
		return nil
	}
	sort.Strings(empty)
	return &ValidationError{Empty: empty}
}

// Required returns the settings the configured store backend cannot run without.
func Required(cfg *config.Config) map[string]string {
	switch cfg.StoreBackend {
	case "postgres":
		return map[string]string{"DATABASE_URL": cfg.DatabaseURL}
	case "sqlite":
		return map[string]string{"STORE_SQLITE_PATH": cfg.SQLitePath}
	default:
		return nil
	}
}
