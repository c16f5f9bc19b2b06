package boltdb

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/octopus-network/relay-client/keyvaluedb"
)

type (
	/*
		BoltDB is single bucket key-value store in a bbolt file. The file is
		locked while the store is open, other processes opening the same file
		fail after the lock timeout.
	*/
	BoltDB struct {
		db     *bolt.DB
		bucket []byte
		codec  keyvaluedb.Codec
	}

	Option func(*options)

	options struct {
		bucket      string
		lockTimeout time.Duration
		codec       keyvaluedb.Codec
	}
)

func WithBucket(name string) Option {
	return func(o *options) {
		o.bucket = name
	}
}

func WithLockTimeout(d time.Duration) Option {
	return func(o *options) {
		o.lockTimeout = d
	}
}

func WithCodec(c keyvaluedb.Codec) Option {
	return func(o *options) {
		o.codec = c
	}
}

/*
New opens (creates when it doesn't exist) the store in the file "dbFile".
By default values are CBOR encoded into the bucket "default".
*/
func New(dbFile string, opts ...Option) (*BoltDB, error) {
	o := &options{bucket: "default", lockTimeout: 3 * time.Second, codec: keyvaluedb.CBOR}
	for _, opt := range opts {
		opt(o)
	}
	if o.bucket == "" {
		return nil, errors.New("bucket name is empty")
	}

	db, err := bolt.Open(dbFile, 0600, &bolt.Options{Timeout: o.lockTimeout})
	if err != nil {
		return nil, fmt.Errorf("opening bolt db %q: %w", dbFile, err)
	}
	bucket := []byte(o.bucket)
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucket)
		return err
	}); err != nil {
		return nil, errors.Join(fmt.Errorf("creating bucket %q: %w", o.bucket, err), db.Close())
	}
	return &BoltDB{db: db, bucket: bucket, codec: o.codec}, nil
}

func (s *BoltDB) Path() string {
	return s.db.Path()
}

func (s *BoltDB) Read(key []byte, v any) (bool, error) {
	if err := keyvaluedb.ValidateEntry(key, v); err != nil {
		return false, err
	}
	var data []byte
	if err := s.db.View(func(tx *bolt.Tx) error {
		// the slice is valid only during the transaction
		data = bytes.Clone(tx.Bucket(s.bucket).Get(key))
		return nil
	}); err != nil {
		return false, s.wrapErr("read", err)
	}
	if data == nil {
		return false, nil
	}
	if err := s.codec.Unmarshal(data, v); err != nil {
		return true, fmt.Errorf("decoding value of key %x: %w", key, err)
	}
	return true, nil
}

func (s *BoltDB) Write(key []byte, v any) error {
	if err := keyvaluedb.ValidateEntry(key, v); err != nil {
		return err
	}
	data, err := s.codec.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding value of key %x: %w", key, err)
	}
	return s.wrapErr("write", s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(s.bucket).Put(key, data)
	}))
}

func (s *BoltDB) Delete(key []byte) error {
	if err := keyvaluedb.ValidateKey(key); err != nil {
		return err
	}
	return s.wrapErr("delete", s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(s.bucket).Delete(key)
	}))
}

// Close releases the file lock, closing closed store is no-op.
func (s *BoltDB) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("closing bolt db: %w", err)
	}
	return nil
}

func (s *BoltDB) wrapErr(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, bolt.ErrDatabaseNotOpen):
		return fmt.Errorf("bolt db %s: %w", op, keyvaluedb.ErrClosed)
	default:
		return fmt.Errorf("bolt db %s: %w", op, err)
	}
}
