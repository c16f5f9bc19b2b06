package boltdb

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/octopus-network/relay-client/keyvaluedb"
)

type testRecord struct {
	Account string
	Since   int64
}

func initBoltDB(t *testing.T, opts ...Option) *BoltDB {
	t.Helper()
	db, err := New(filepath.Join(t.TempDir(), "test.db"), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, db.Close()) })
	return db
}

func TestBoltDB_ReadWriteDelete(t *testing.T) {
	for name, opts := range map[string][]Option{
		"default":      nil,
		"json codec":   {WithCodec(keyvaluedb.JSON)},
		"named bucket": {WithBucket("session")},
	} {
		t.Run(name, func(t *testing.T) {
			db := initBoltDB(t, opts...)

			var rec testRecord
			found, err := db.Read([]byte("session"), &rec)
			require.NoError(t, err)
			require.False(t, found)

			require.NoError(t, db.Write([]byte("session"), testRecord{Account: "bob.testnet", Since: 42}))
			found, err = db.Read([]byte("session"), &rec)
			require.NoError(t, err)
			require.True(t, found)
			require.Equal(t, testRecord{Account: "bob.testnet", Since: 42}, rec)

			require.NoError(t, db.Delete([]byte("session")))
			found, err = db.Read([]byte("session"), &rec)
			require.NoError(t, err)
			require.False(t, found)

			// deleting missing key is not an error
			require.NoError(t, db.Delete([]byte("session")))
		})
	}
}

func TestBoltDB_InvalidInput(t *testing.T) {
	db := initBoltDB(t)

	require.ErrorIs(t, db.Write(nil, "x"), keyvaluedb.ErrInvalidKey)
	require.ErrorIs(t, db.Write([]byte("k"), nil), keyvaluedb.ErrValueIsNil)
	require.ErrorIs(t, db.Delete([]byte{}), keyvaluedb.ErrInvalidKey)

	var p *testRecord
	_, err := db.Read([]byte("k"), p)
	require.ErrorIs(t, err, keyvaluedb.ErrValueIsNil)

	// type mismatch is reported as decoding error of found entry
	require.NoError(t, db.Write([]byte("k"), "value"))
	var n int
	found, err := db.Read([]byte("k"), &n)
	require.True(t, found)
	require.ErrorContains(t, err, "decoding value of key 6b")

	_, err = New(filepath.Join(t.TempDir(), "x.db"), WithBucket(""))
	require.EqualError(t, err, "bucket name is empty")
}

func TestBoltDB_Persisted(t *testing.T) {
	file := filepath.Join(t.TempDir(), "test.db")
	db, err := New(file)
	require.NoError(t, err)
	require.Equal(t, file, db.Path())
	require.NoError(t, db.Write([]byte("k"), "value"))
	require.NoError(t, db.Close())
	// closing twice is no-op, closed store can't be used
	require.NoError(t, db.Close())
	require.ErrorIs(t, db.Write([]byte("k"), "value"), keyvaluedb.ErrClosed)

	db, err = New(file)
	require.NoError(t, err)
	defer db.Close()
	var s string
	found, err := db.Read([]byte("k"), &s)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "value", s)
}

func TestBoltDB_Locked(t *testing.T) {
	file := filepath.Join(t.TempDir(), "test.db")
	db, err := New(file)
	require.NoError(t, err)
	defer db.Close()

	_, err = New(file, WithLockTimeout(50*time.Millisecond))
	require.ErrorContains(t, err, "timeout")
}
