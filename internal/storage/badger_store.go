package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/devghori1264/aerophoenix/vmfacade/internal/models"
)

// InMemoryPath selects a non-persistent store.
const InMemoryPath = ":memory:"

var (
	ErrNotFound = errors.New("not found")
)

// Store holds VM records for the service layer. Callers serialize
// read-modify-write cycles on one record themselves.
type Store interface {
	SaveVM(ctx context.Context, vm *models.VM) error
	GetVM(ctx context.Context, id string) (*models.VM, error)
	ListVMs(ctx context.Context) ([]*models.VM, error)
	Close() error
}

// BadgerStore implements Store with Badger DB.
type BadgerStore struct {
	db *badger.DB
}

func NewBadgerStore(path string) (*BadgerStore, error) {
	var opts badger.Options
	if path == InMemoryPath {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		opts = badger.DefaultOptions(filepath.Clean(path))
		opts = opts.WithValueLogFileSize(1 << 20) // smaller value log for local dev
	}
	opts.Logger = nil
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger at %q: %w", path, err)
	}
	return &BadgerStore{db: db}, nil
}

// NewInMemoryStore opens a Badger store that lives only in memory.
func NewInMemoryStore() (*BadgerStore, error) {
	return NewBadgerStore(InMemoryPath)
}

func (s *BadgerStore) Close() error {
	return s.db.Close()
}

const vmPrefix = "vm:"

func vmKey(id string) []byte {
	return []byte(vmPrefix + id)
}

func (s *BadgerStore) SaveVM(ctx context.Context, vm *models.VM) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(vm)
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(vmKey(vm.ID), data)
	})
}

func (s *BadgerStore) GetVM(ctx context.Context, id string) (*models.VM, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out models.VM
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(vmKey(id))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return ErrNotFound
			}
			return err
		}
		return item.Value(func(v []byte) error {
			return json.Unmarshal(v, &out)
		})
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// ListVMs returns every record in key order.
func (s *BadgerStore) ListVMs(ctx context.Context) ([]*models.VM, error) {
	out := []*models.VM{}
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(vmPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			var vm models.VM
			if err := it.Item().Value(func(v []byte) error {
				return json.Unmarshal(v, &vm)
			}); err != nil {
				return fmt.Errorf("decode %s: %w", it.Item().Key(), err)
			}
			out = append(out, &vm)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
