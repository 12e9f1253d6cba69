package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/anstrom/netprobe/internal/config"
	"github.com/anstrom/netprobe/internal/logging"
	"github.com/anstrom/netprobe/internal/store"
)

// StoreOperation represents a function that operates on the result store.
type StoreOperation func(*store.Store) error

// withStore opens the configured database, makes sure the schema exists
// and runs operation. The connection is closed afterwards.
func withStore(ctx context.Context, cfg *config.Config, operation StoreOperation) error {
	if !cfg.IsDatabaseEnabled() {
		return fmt.Errorf("database persistence is disabled; set database.enabled in %s", getConfigFilePath())
	}

	st, err := store.Connect(ctx, &cfg.Database, logging.Default())
	if err != nil {
		return fmt.Errorf("error connecting to database: %w", err)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to close database connection: %v\n", closeErr)
		}
	}()

	if err := st.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("error preparing database schema: %w", err)
	}

	return operation(st)
}
