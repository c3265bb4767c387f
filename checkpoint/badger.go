package checkpoint

import (
	"context"
	"fmt"
	"os"

	"github.com/dgraph-io/badger/v4"
	"gopkg.in/yaml.v3"
)

// BadgerStore keeps checkpoints in BadgerDB under run/<id>/<iteration>, with the iteration
// zero padded so that key order is iteration order.
type BadgerStore struct {
	db *badger.DB
}

// OpenBadgerStore opens a store at path. An empty path opens an in-memory store.
func OpenBadgerStore(path string) (*BadgerStore, error) {
	var opts badger.Options
	if path == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(path, 0o750); err != nil {
			return nil, fmt.Errorf("create database directory %s: %w", path, err)
		}
		opts = badger.DefaultOptions(path).WithSyncWrites(true)
	}
	db, err := badger.Open(opts.WithLogger(nil))
	if err != nil {
		return nil, fmt.Errorf("open badger database: %w", err)
	}
	return &BadgerStore{db: db}, nil
}

func runPrefix(runID string) []byte {
	return []byte("run/" + runID + "/")
}

func key(runID string, iteration int) []byte {
	return fmt.Appendf(runPrefix(runID), "%010d", iteration)
}

func (s *BadgerStore) Save(ctx context.Context, c Checkpoint) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if c.RunID == "" {
		return fmt.Errorf("checkpoint must have a run id")
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key(c.RunID, c.Iteration), data)
	})
}

func (s *BadgerStore) List(ctx context.Context, runID string) ([]Checkpoint, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var checkpoints []Checkpoint
	prefix := runPrefix(runID)
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var c Checkpoint
			err := it.Item().Value(func(val []byte) error {
				return yaml.Unmarshal(val, &c)
			})
			if err != nil {
				return fmt.Errorf("%s: %w", it.Item().Key(), err)
			}
			checkpoints = append(checkpoints, c)
		}
		return nil
	})
	return checkpoints, err
}

func (s *BadgerStore) Latest(ctx context.Context, runID string) (Checkpoint, error) {
	if err := ctx.Err(); err != nil {
		return Checkpoint{}, err
	}
	var c Checkpoint
	found := false
	prefix := runPrefix(runID)
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		opts.Reverse = true
		it := txn.NewIterator(opts)
		defer it.Close()

		it.Seek(append(runPrefix(runID), 0xff))
		if !it.ValidForPrefix(prefix) {
			return nil
		}
		found = true
		return it.Item().Value(func(val []byte) error {
			return yaml.Unmarshal(val, &c)
		})
	})
	if err != nil {
		return Checkpoint{}, err
	}
	if !found {
		return Checkpoint{}, fmt.Errorf("%w: run %s", ErrNotFound, runID)
	}
	return c, nil
}

func (s *BadgerStore) Close() error {
	return s.db.Close()
}
