package logger

import (
	"log/slog"
)

/*
Log attribute keys. Use the attribute constructor functions below instead of
the keys directly, the ECS formatter relies on the value types.

Only keys common to several packages belong here.
*/
const (
	ErrorKey      = "err"
	DataKey       = "data"
	AccountKey    = "account_id"
	AppchainIDKey = "appchain_id"
	MethodKey     = "method"
	EpochKey      = "epoch"
)

/*
Error adds error to the log

	if err := reader.Refresh(ctx); err != nil {
		log.Warn("refreshing registry", logger.Error(err))
	}
*/
func Error(err error) slog.Attr {
	return slog.Any(ErrorKey, err)
}

/*
Data adds additional data field to the message. Don't use slog.GroupValue or
anonymous types as the data, in the ECS output the value is namespaced by its
type name.
*/
func Data(d any) slog.Attr {
	return slog.Any(DataKey, d)
}

/*
Account records the ledger account the logging call is about, usually the
signed-in account.
*/
func Account(id string) slog.Attr {
	return slog.String(AccountKey, id)
}

/*
AppchainID records the client side (positional) appchain id. The id is only
valid within one registry snapshot.
*/
func AppchainID(id int) slog.Attr {
	return slog.Int(AppchainIDKey, id)
}

// Method is the name of the contract method called.
func Method(name string) slog.Attr {
	return slog.String(MethodKey, name)
}

func Epoch(idx uint64) slog.Attr {
	return slog.Uint64(EpochKey, idx)
}
