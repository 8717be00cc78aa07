// Copyright 2025 The email-checker authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package store

import (
	"fmt"
	"strings"

	"github.com/dgraph-io/badger/v4"
)

// single-byte key prefix so iteration stays cheap
const modelPrefix byte = 0x01

const keySeparator = "\x1f"

// DB is a wrapper around badger.DB holding durable model
// definitions keyed by name and version.
type DB struct {
	bdb *badger.DB
}

func Open(path string) (*DB, error) {
	opts := badger.DefaultOptions(path).
		WithValueLogFileSize(64 << 20).
		WithNumMemtables(4)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open model store: %w", err)
	}
	return &DB{bdb: db}, nil
}

// Close closes the internal Badger database. It is safe to call on
// a nil or uninitialized DB, in which case it is a NOP.
func (db *DB) Close() error {
	if db != nil && db.bdb != nil {
		return db.bdb.Close()
	}
	return nil
}

func (db *DB) Flush() error {
	return db.bdb.DropAll()
}

func (db *DB) Size() (int64, int64) {
	return db.bdb.Size()
}

func modelKey(name, version string) []byte {
	key := make([]byte, 0, 1+len(name)+1+len(version))
	key = append(key, modelPrefix)
	key = append(key, name...)
	key = append(key, keySeparator...)
	key = append(key, version...)
	return key
}

// SaveModel writes one serialized model definition. An existing
// record for the same name and version is overwritten.
func (db *DB) SaveModel(name, version string, payload []byte) error {
	if name == "" || version == "" {
		return fmt.Errorf("failed to save model: empty name or version")
	}
	err := db.bdb.Update(func(txn *badger.Txn) error {
		return txn.Set(modelKey(name, version), payload)
	})
	if err != nil {
		return fmt.Errorf("failed to save model %s@%s: %w", name, version, err)
	}
	return nil
}

// LoadModel reads one serialized model definition.
func (db *DB) LoadModel(name, version string) ([]byte, error) {
	var payload []byte
	err := db.bdb.View(func(txn *badger.Txn) error {
		item, err := txn.Get(modelKey(name, version))
		if err != nil {
			return err
		}
		payload, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load model %s@%s: %w", name, version, err)
	}
	return payload, nil
}

// ListModels returns every stored model name with its versions.
func (db *DB) ListModels() (map[string][]string, error) {
	ans := make(map[string][]string)
	err := db.bdb.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte{modelPrefix}
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			key := string(it.Item().Key()[1:])
			name, version, found := strings.Cut(key, keySeparator)
			if !found {
				continue
			}
			ans[name] = append(ans[name], version)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list models: %w", err)
	}
	return ans, nil
}

// DeleteModel removes one stored definition. Deleting a missing
// record is not an error.
func (db *DB) DeleteModel(name, version string) error {
	err := db.bdb.Update(func(txn *badger.Txn) error {
		return txn.Delete(modelKey(name, version))
	})
	if err != nil {
		return fmt.Errorf("failed to delete model %s@%s: %w", name, version, err)
	}
	return nil
}
