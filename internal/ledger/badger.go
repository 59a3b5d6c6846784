package ledger

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/gob"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger"
	"github.com/jmerrifield20/chainledger/internal/chain"
	"go.uber.org/zap"
)

var (
	recordPrefix = []byte("r/")
	lastKey      = []byte("lh")
)

// BadgerStore mirrors the chain into an embedded Badger database.
// Records live under "r/" + big-endian index so iteration is in index order;
// "lh" holds the key of the last record.
type BadgerStore struct {
	db     *badger.DB
	logger *zap.Logger
}

// OpenBadgerStore opens or creates a Badger database in dir.
func OpenBadgerStore(dir string, logger *zap.Logger) (*BadgerStore, error) {
	opts := badger.DefaultOptions(dir)
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger %s: %w", dir, err)
	}
	return &BadgerStore{db: db, logger: logger}, nil
}

func recordKey(index int) []byte {
	k := make([]byte, len(recordPrefix)+8)
	copy(k, recordPrefix)
	binary.BigEndian.PutUint64(k[len(recordPrefix):], uint64(index))
	return k
}

func encodeRecord(r chain.Record) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(r); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeRecord(data []byte) (chain.Record, error) {
	var r chain.Record
	err := gob.NewDecoder(bytes.NewReader(data)).Decode(&r)
	return r, err
}

// Save implements Store.
func (s *BadgerStore) Save(_ context.Context, r chain.Record) error {
	value, err := encodeRecord(r)
	if err != nil {
		return fmt.Errorf("encode record %d: %w", r.Index, err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(lastKey)
		switch {
		case errors.Is(err, badger.ErrKeyNotFound):
			if r.Index != 0 {
				return fmt.Errorf("record %d on empty store: %w", r.Index, ErrStoreDiverged)
			}
		case err != nil:
			return fmt.Errorf("read last key: %w", err)
		default:
			lastRecordKey, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			tailItem, err := txn.Get(lastRecordKey)
			if err != nil {
				return fmt.Errorf("read ledger tail: %w", err)
			}
			tailData, err := tailItem.ValueCopy(nil)
			if err != nil {
				return err
			}
			tail, err := decodeRecord(tailData)
			if err != nil {
				return fmt.Errorf("decode ledger tail: %w", err)
			}
			if r.Index != tail.Index+1 || r.PrevDigest != tail.Digest {
				return fmt.Errorf("record %d after stored %d: %w", r.Index, tail.Index, ErrStoreDiverged)
			}
		}

		key := recordKey(r.Index)
		if err := txn.Set(key, value); err != nil {
			return err
		}
		return txn.Set(lastKey, key)
	})
	if err != nil {
		return err
	}

	s.logger.Debug("ledger record stored",
		zap.Int("idx", r.Index),
		zap.String("store", "badger"),
	)
	return nil
}

// Load implements Store.
func (s *BadgerStore) Load(_ context.Context) ([]chain.Record, error) {
	var out []chain.Record
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(recordPrefix); it.ValidForPrefix(recordPrefix); it.Next() {
			data, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			r, err := decodeRecord(data)
			if err != nil {
				return fmt.Errorf("decode record %x: %w", it.Item().Key(), err)
			}
			out = append(out, r)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("load ledger: %w", err)
	}
	return out, nil
}

// Close implements Store.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}
