// Package accounts provides the account lookup used by the logon server.
package accounts

import (
	"context"
	"encoding/hex"
	"strings"

	"github.com/pkg/errors"

	"badc0de.net/pkg/go-logon/srp6"
)

// ErrNotFound is returned by a Store when no account has the requested name.
var ErrNotFound = errors.New("accounts: no such account")

// Account is a read-only snapshot of a stored account.
type Account struct {
	Username string
	// PasswordHash is the hex encoding of H(UPPER(user) ":" UPPER(pass)).
	PasswordHash string
	// Salt is the persisted SRP6 salt. Accounts without one get a fresh
	// salt at every challenge.
	Salt   []byte
	Banned bool
}

// CredentialsHash decodes PasswordHash.
func (a *Account) CredentialsHash() ([]byte, error) {
	b, err := hex.DecodeString(a.PasswordHash)
	if err != nil {
		return nil, errors.Wrapf(err, "account %s: password hash", a.Username)
	}
	if len(b) != srp6.ProofSize {
		return nil, errors.Errorf("account %s: password hash is %d bytes", a.Username, len(b))
	}
	return b, nil
}

// Store looks accounts up by name. Implementations must be safe for
// concurrent use.
type Store interface {
	FindByName(ctx context.Context, name string) (*Account, error)
}

// HashPassword returns the PasswordHash for a username and password.
func HashPassword(username, password string) string {
	return strings.ToUpper(hex.EncodeToString(srp6.CredentialsHash(username, password)))
}

func normalize(name string) string {
	return strings.ToUpper(strings.TrimSpace(name))
}
