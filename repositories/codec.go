package repositories

import (
	apperrors "chat-relay/errors"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/fxamacker/cbor/v2"
)

// maxConflictRetries bounds how many times an optimistic transaction is replayed
// after badger reports a conflicting concurrent write.
const maxConflictRetries = 32

// update runs fn in a read-write transaction. fn must only depend on what it reads
// inside txn because it is replayed on conflict.
func update(db *badger.DB, fn func(txn *badger.Txn) error) error {
	var err error
	for attempt := 0; attempt < maxConflictRetries; attempt++ {
		if err = db.Update(fn); !errors.Is(err, badger.ErrConflict) {
			return err
		}
	}
	return fmt.Errorf("transaction kept conflicting after %d attempts: %w", maxConflictRetries, err)
}

func getRecord[T any](txn *badger.Txn, key string) (T, error) {
	var record T
	item, err := txn.Get([]byte(key))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return record, apperrors.ErrNotFound
	}
	if err != nil {
		return record, err
	}
	err = item.Value(func(val []byte) error {
		return cbor.Unmarshal(val, &record)
	})
	return record, err
}

func setRecord(txn *badger.Txn, key string, record any) error {
	data, err := cbor.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal failed: %w", err)
	}
	return txn.Set([]byte(key), data)
}

func exists(txn *badger.Txn, key string) (bool, error) {
	_, err := txn.Get([]byte(key))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	return err == nil, err
}

// scanRecords decodes, in key order, every record stored under prefix.
func scanRecords[T any](txn *badger.Txn, prefix string) ([]T, error) {
	it := txn.NewIterator(badger.DefaultIteratorOptions)
	defer it.Close()

	records := []T{}
	p := []byte(prefix)
	for it.Seek(p); it.ValidForPrefix(p); it.Next() {
		var record T
		if err := it.Item().Value(func(val []byte) error {
			return cbor.Unmarshal(val, &record)
		}); err != nil {
			return nil, fmt.Errorf("unable to decode %s: %w", it.Item().Key(), err)
		}
		records = append(records, record)
	}
	return records, nil
}

// scanSuffixes returns, in key order, what follows prefix in every matching key.
func scanSuffixes(txn *badger.Txn, prefix string) []string {
	options := badger.DefaultIteratorOptions
	options.PrefetchValues = false
	it := txn.NewIterator(options)
	defer it.Close()

	var suffixes []string
	p := []byte(prefix)
	for it.Seek(p); it.ValidForPrefix(p); it.Next() {
		suffixes = append(suffixes, string(it.Item().Key()[len(p):]))
	}
	return suffixes
}
