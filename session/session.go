package session

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/octopus-network/relay-client/keyvaluedb"
	"github.com/octopus-network/relay-client/types"
)

var sessionKey = []byte("session")

var ErrNotSignedIn = errors.New("not signed in")

type record struct {
	AccountID  types.AccountID `json:"account_id"`
	SignedInAt int64           `json:"signed_in_at"`
}

/*
Context holds the identity of the signed-in account. It is created at startup
(restoring the previous session from the store) and injected into every
component which needs to know the acting account.
*/
type Context struct {
	store keyvaluedb.KeyValueDB

	mu         sync.RWMutex
	account    types.AccountID
	signedInAt time.Time
	onChange   []func(types.AccountID)
}

// New restores the session persisted in "store", nil store means the session
// lives only in memory.
func New(store keyvaluedb.KeyValueDB) (*Context, error) {
	c := &Context{store: store}
	if store == nil {
		return c, nil
	}
	var rec record
	found, err := store.Read(sessionKey, &rec)
	if err != nil {
		return nil, fmt.Errorf("reading session: %w", err)
	}
	if found {
		c.account = rec.AccountID
		c.signedInAt = time.Unix(rec.SignedInAt, 0)
	}
	return c, nil
}

// AccountID returns the signed-in account or empty string when signed out.
func (c *Context) AccountID() types.AccountID {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.account
}

func (c *Context) IsSignedIn() bool {
	return c.AccountID() != ""
}

func (c *Context) SignedInAt() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.signedInAt
}

func (c *Context) SignIn(account types.AccountID) error {
	account = types.AccountID(strings.TrimSpace(string(account)))
	if err := ValidateAccountID(account); err != nil {
		return err
	}
	now := time.Now()
	if c.store != nil {
		if err := c.store.Write(sessionKey, record{AccountID: account, SignedInAt: now.Unix()}); err != nil {
			return fmt.Errorf("storing session: %w", err)
		}
	}
	c.set(account, now)
	return nil
}

// SignOut tears down the session, signing out when not signed in is no-op.
func (c *Context) SignOut() error {
	if c.store != nil {
		if err := c.store.Delete(sessionKey); err != nil {
			return fmt.Errorf("deleting session: %w", err)
		}
	}
	c.set("", time.Time{})
	return nil
}

// OnChange registers callback which is called after every sign-in and sign-out.
func (c *Context) OnChange(f func(types.AccountID)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onChange = append(c.onChange, f)
}

func (c *Context) set(account types.AccountID, at time.Time) {
	c.mu.Lock()
	changed := c.account != account
	c.account = account
	c.signedInAt = at
	subs := c.onChange
	c.mu.Unlock()

	if changed {
		for _, f := range subs {
			f(account)
		}
	}
}

/*
ValidateAccountID checks that "id" looks like ledger account id: 2..64
characters, lowercase alphanumerics separated by single '.', '-' or '_'.
*/
func ValidateAccountID(id types.AccountID) error {
	s := string(id)
	if len(s) < 2 || len(s) > 64 {
		return fmt.Errorf("invalid account id %q: length must be between 2 and 64", s)
	}
	prevSep := true
	for i, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			prevSep = false
		case r == '.' || r == '-' || r == '_':
			if prevSep {
				return fmt.Errorf("invalid account id %q: unexpected %q at position %d", s, r, i)
			}
			prevSep = true
		default:
			return fmt.Errorf("invalid account id %q: invalid character %q at position %d", s, r, i)
		}
	}
	if prevSep {
		return fmt.Errorf("invalid account id %q: must not end with separator", s)
	}
	return nil
}
