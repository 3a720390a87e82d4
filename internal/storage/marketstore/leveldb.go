package marketstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/iterator"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// LevelDB is the goleveldb-backed marketstore backend.
type LevelDB struct {
	db *leveldb.DB
}

// OpenLevelDB opens (or creates) a leveldb database at path.
func OpenLevelDB(path string) (*LevelDB, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("marketstore: open leveldb at %s: %w", path, err)
	}
	return &LevelDB{db: db}, nil
}

func (l *LevelDB) Read(ctx context.Context, key []byte) ([]byte, error) {
	if l.db == nil {
		return nil, ErrClosed
	}
	val, err := l.db.Get(key, nil)
	if err != nil {
		if errors.Is(err, leveldb.ErrNotFound) {
			return nil, ErrKeyNotFound
		}
		return nil, err
	}
	return val, nil
}

func (l *LevelDB) Write(ctx context.Context, key, value []byte) error {
	if l.db == nil {
		return ErrClosed
	}
	return l.db.Put(key, value, nil)
}

func (l *LevelDB) Delete(ctx context.Context, key []byte) error {
	if l.db == nil {
		return ErrClosed
	}
	return l.db.Delete(key, nil)
}

func (l *LevelDB) Batch(ctx context.Context, ops []BatchOperation) error {
	if l.db == nil {
		return ErrClosed
	}

	batch := new(leveldb.Batch)
	for _, op := range ops {
		switch op.Type {
		case BatchPut:
			batch.Put(op.Key, op.Value)
		case BatchDelete:
			batch.Delete(op.Key)
		default:
			return fmt.Errorf("marketstore: unknown batch operation type: %d", op.Type)
		}
	}
	return l.db.Write(batch, nil)
}

func (l *LevelDB) Iterator(ctx context.Context, start, end []byte) (Iterator, error) {
	if l.db == nil {
		return nil, ErrClosed
	}
	iter := l.db.NewIterator(&util.Range{Start: start, Limit: end}, nil)
	return &levelIterator{iter: iter}, nil
}

func (l *LevelDB) Close() error {
	if l.db == nil {
		return nil
	}
	err := l.db.Close()
	l.db = nil
	return err
}

type levelIterator struct {
	iter iterator.Iterator
}

func (it *levelIterator) Next() bool {
	return it.iter.Next()
}

func (it *levelIterator) Key() []byte {
	key := it.iter.Key()
	out := make([]byte, len(key))
	copy(out, key)
	return out
}

func (it *levelIterator) Value() []byte {
	val := it.iter.Value()
	out := make([]byte, len(val))
	copy(out, val)
	return out
}

func (it *levelIterator) Error() error {
	return it.iter.Error()
}

func (it *levelIterator) Close() error {
	it.iter.Release()
	return it.iter.Error()
}
