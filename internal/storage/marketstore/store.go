package marketstore

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/ugorji/go/codec"

	"github.com/openmrkt/marketd/internal/core/market"
	"github.com/openmrkt/marketd/internal/storage/marketstore/compression"
)

// Record layout: a one-byte flag, then the CBOR payload. Compressed records
// carry the uncompressed size between flag and payload so decompression can
// allocate exactly.
const (
	flagRaw byte = 0x00
	flagLZ4 byte = 0x01

	// Values smaller than this are stored raw; the LZ4 header would cost
	// more than it saves.
	compressThreshold = 128
)

var (
	listingPrefix = []byte("listing/")
	auctionPrefix = []byte("auction/")
)

// Store persists marketplace books on a key-value backend. It implements
// market.StateWriter for the engine's write path and exposes Load functions
// for startup restore.
type Store struct {
	db       DB
	cbor     *codec.CborHandle
	lz4      compression.Compressor
	compress bool
}

// StoreOptions configures a Store.
type StoreOptions struct {
	// Compress enables LZ4 for values above the size threshold.
	Compress bool
}

func NewStore(db DB, opts StoreOptions) (*Store, error) {
	lz4c, err := compression.Get("lz4")
	if err != nil {
		return nil, err
	}
	handle := new(codec.CborHandle)
	handle.Canonical = true
	return &Store{
		db:       db,
		cbor:     handle,
		lz4:      lz4c,
		compress: opts.Compress,
	}, nil
}

// PutListing persists a listing, keyed by its asset reference.
func (s *Store) PutListing(l market.Listing) error {
	return s.put(listingKey(l.Asset), &l)
}

// PutAuction persists an auction, keyed by its asset reference.
func (s *Store) PutAuction(a market.Auction) error {
	return s.put(auctionKey(a.Asset), &a)
}

// LoadListings returns every persisted listing.
func (s *Store) LoadListings(ctx context.Context) ([]market.Listing, error) {
	var out []market.Listing
	err := s.scan(ctx, listingPrefix, func(value []byte) error {
		var l market.Listing
		if err := s.decode(value, &l); err != nil {
			return err
		}
		out = append(out, l)
		return nil
	})
	return out, err
}

// LoadAuctions returns every persisted auction.
func (s *Store) LoadAuctions(ctx context.Context) ([]market.Auction, error) {
	var out []market.Auction
	err := s.scan(ctx, auctionPrefix, func(value []byte) error {
		var a market.Auction
		if err := s.decode(value, &a); err != nil {
			return err
		}
		out = append(out, a)
		return nil
	})
	return out, err
}

// DeleteListing removes a persisted listing.
func (s *Store) DeleteListing(ctx context.Context, ref market.AssetRef) error {
	return s.db.Delete(ctx, listingKey(ref))
}

// DeleteAuction removes a persisted auction.
func (s *Store) DeleteAuction(ctx context.Context, ref market.AssetRef) error {
	return s.db.Delete(ctx, auctionKey(ref))
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) put(key []byte, v interface{}) error {
	var payload []byte
	if err := codec.NewEncoderBytes(&payload, s.cbor).Encode(v); err != nil {
		return fmt.Errorf("marketstore: encode %s: %w", key, err)
	}
	return s.db.Write(context.Background(), key, s.frame(payload))
}

// frame wraps a CBOR payload in the record layout, compressing when enabled
// and worthwhile.
func (s *Store) frame(payload []byte) []byte {
	if s.compress && len(payload) >= compressThreshold {
		compressed, err := s.lz4.Compress(payload)
		if err == nil && len(compressed) < len(payload) {
			record := make([]byte, 1+4+len(compressed))
			record[0] = flagLZ4
			binary.BigEndian.PutUint32(record[1:5], uint32(len(payload)))
			copy(record[5:], compressed)
			return record
		}
	}
	record := make([]byte, 1+len(payload))
	record[0] = flagRaw
	copy(record[1:], payload)
	return record
}

func (s *Store) decode(record []byte, v interface{}) error {
	if len(record) == 0 {
		return fmt.Errorf("marketstore: empty record")
	}

	var payload []byte
	switch record[0] {
	case flagRaw:
		payload = record[1:]
	case flagLZ4:
		if len(record) < 5 {
			return fmt.Errorf("marketstore: truncated compressed record")
		}
		size := int(binary.BigEndian.Uint32(record[1:5]))
		decompressed, err := s.lz4.Decompress(record[5:], size)
		if err != nil {
			return err
		}
		payload = decompressed
	default:
		return fmt.Errorf("marketstore: unknown record flag 0x%02x", record[0])
	}

	return codec.NewDecoderBytes(payload, s.cbor).Decode(v)
}

func (s *Store) scan(ctx context.Context, prefix []byte, fn func(value []byte) error) error {
	iter, err := s.db.Iterator(ctx, prefix, prefixUpperBound(prefix))
	if err != nil {
		return err
	}
	defer iter.Close()

	for iter.Next() {
		if err := fn(iter.Value()); err != nil {
			return err
		}
	}
	return iter.Error()
}

// prefixUpperBound returns the smallest key greater than every key with the
// given prefix.
func prefixUpperBound(prefix []byte) []byte {
	end := make([]byte, len(prefix))
	copy(end, prefix)
	for i := len(end) - 1; i >= 0; i-- {
		if end[i] < 0xff {
			end[i]++
			return end[:i+1]
		}
	}
	return nil
}

func listingKey(ref market.AssetRef) []byte {
	return append(append([]byte{}, listingPrefix...), ref.Key()...)
}

func auctionKey(ref market.AssetRef) []byte {
	return append(append([]byte{}, auctionPrefix...), ref.Key()...)
}
