package memorydb

import (
	"sync"

	"github.com/octopus-network/relay-client/keyvaluedb"
)

/*
MemoryDB is map backed key-value store for sessions which do not outlive the
process. Values are encoded with the codec so the stored value is a copy, the
same way as with the file backed store.
*/
type MemoryDB struct {
	codec keyvaluedb.Codec

	mu      sync.RWMutex
	entries map[string][]byte
	closed  bool
}

// New creates empty store, "codec" defaults to keyvaluedb.CBOR.
func New(codec ...keyvaluedb.Codec) *MemoryDB {
	c := keyvaluedb.CBOR
	if len(codec) > 0 {
		c = codec[0]
	}
	return &MemoryDB{codec: c, entries: map[string][]byte{}}
}

func (db *MemoryDB) Len() int {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return len(db.entries)
}

func (db *MemoryDB) Read(key []byte, value any) (bool, error) {
	if err := keyvaluedb.ValidateEntry(key, value); err != nil {
		return false, err
	}
	db.mu.RLock()
	data, ok := db.entries[string(key)]
	closed := db.closed
	db.mu.RUnlock()
	if closed {
		return false, keyvaluedb.ErrClosed
	}
	if !ok {
		return false, nil
	}
	return true, db.codec.Unmarshal(data, value)
}

func (db *MemoryDB) Write(key []byte, value any) error {
	if err := keyvaluedb.ValidateEntry(key, value); err != nil {
		return err
	}
	data, err := db.codec.Marshal(value)
	if err != nil {
		return err
	}
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.closed {
		return keyvaluedb.ErrClosed
	}
	db.entries[string(key)] = data
	return nil
}

func (db *MemoryDB) Delete(key []byte) error {
	if err := keyvaluedb.ValidateKey(key); err != nil {
		return err
	}
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.closed {
		return keyvaluedb.ErrClosed
	}
	delete(db.entries, string(key))
	return nil
}

// Close drops the entries, the store can't be used afterwards.
func (db *MemoryDB) Close() error {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.closed = true
	db.entries = nil
	return nil
}
