package keyvaluedb

import (
	"encoding/json"
	"errors"
	"reflect"

	"github.com/fxamacker/cbor/v2"
)

type (
	// Reader reads values of the store. Read returns false when the key is
	// not present, "value" must be non-nil pointer.
	Reader interface {
		Read(key []byte, value any) (bool, error)
	}

	// Writer stores values. Deleting missing key is not an error.
	Writer interface {
		Write(key []byte, value any) error
		Delete(key []byte) error
	}

	KeyValueDB interface {
		Reader
		Writer
		Close() error
	}

	// Codec serializes the values of the store.
	Codec struct {
		Marshal   func(v any) ([]byte, error)
		Unmarshal func(data []byte, v any) error
	}
)

var (
	// CBOR is the default codec of the stores.
	CBOR = Codec{Marshal: cbor.Marshal, Unmarshal: cbor.Unmarshal}
	JSON = Codec{Marshal: json.Marshal, Unmarshal: json.Unmarshal}
)

var (
	ErrInvalidKey = errors.New("invalid key")
	ErrValueIsNil = errors.New("value is nil")
	ErrClosed     = errors.New("database is closed")
)

// ValidateKey returns ErrInvalidKey for empty key.
func ValidateKey(key []byte) error {
	if len(key) == 0 {
		return ErrInvalidKey
	}
	return nil
}

// ValidateValue returns ErrValueIsNil for nil interface or nil pointer.
func ValidateValue(val any) error {
	if val == nil {
		return ErrValueIsNil
	}
	if rv := reflect.ValueOf(val); rv.Kind() == reflect.Pointer && rv.IsNil() {
		return ErrValueIsNil
	}
	return nil
}

func ValidateEntry(key []byte, val any) error {
	return errors.Join(ValidateKey(key), ValidateValue(val))
}
