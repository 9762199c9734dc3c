package badger

import (
	"fmt"
	"os"

	"github.com/dgraph-io/badger/v4"
	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/ternarybob/quill/internal/common"
)

// DB is the embedded database behind the job and session stores.
// Session checkpoints go through badgerhold, jobs use raw entries for per-record TTL.
type DB struct {
	hold *badgerhold.Store
	path string
}

// Open opens (or creates) the database at config.Path
func Open(logger arbor.ILogger, config *common.BadgerConfig) (*DB, error) {
	if config.ResetOnStartup {
		if err := os.RemoveAll(config.Path); err != nil {
			return nil, fmt.Errorf("failed to reset badger directory %s: %w", config.Path, err)
		}
		logger.Warn().Str("path", config.Path).Msg("Badger data discarded (reset_on_startup)")
	}
	if err := os.MkdirAll(config.Path, 0755); err != nil {
		return nil, fmt.Errorf("failed to create badger directory %s: %w", config.Path, err)
	}

	opts := badgerhold.DefaultOptions
	opts.Dir = config.Path
	opts.ValueDir = config.Path
	opts.Logger = nil

	hold, err := badgerhold.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger at %s: %w", config.Path, err)
	}

	logger.Debug().Str("path", config.Path).Msg("Badger opened")
	return &DB{hold: hold, path: config.Path}, nil
}

// Hold returns the badgerhold store used for typed records
func (d *DB) Hold() *badgerhold.Store {
	return d.hold
}

// Raw returns the underlying Badger handle
func (d *DB) Raw() *badger.DB {
	return d.hold.Badger()
}

func (d *DB) Close() error {
	if d.hold == nil {
		return nil
	}
	if err := d.hold.Close(); err != nil {
		return fmt.Errorf("failed to close badger at %s: %w", d.path, err)
	}
	return nil
}
