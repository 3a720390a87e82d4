// Package marketstore persists marketplace book state (listings, auctions)
// behind a pluggable key-value backend, so an engine restart can restore its
// books. Values are CBOR-encoded and LZ4-compressed above a size threshold.
package marketstore

import (
	"context"
	"errors"
)

var (
	ErrClosed      = errors.New("marketstore: backend is closed")
	ErrKeyNotFound = errors.New("marketstore: key not found")
)

// DB defines the operations any marketstore backend must support.
type DB interface {
	Read(ctx context.Context, key []byte) ([]byte, error)
	Write(ctx context.Context, key []byte, value []byte) error
	Delete(ctx context.Context, key []byte) error

	// Batch applies a set of operations atomically.
	Batch(ctx context.Context, ops []BatchOperation) error

	// Iterator traverses entries in [start, end).
	Iterator(ctx context.Context, start, end []byte) (Iterator, error)

	Close() error
}

// Iterator allows traversing backend entries in key order.
type Iterator interface {
	Next() bool
	Key() []byte
	Value() []byte
	Error() error
	Close() error
}

// BatchOperation represents a single operation in a batch.
type BatchOperation struct {
	Type  BatchOpType
	Key   []byte
	Value []byte
}

type BatchOpType int

const (
	BatchPut BatchOpType = iota
	BatchDelete
)
