package accounts

import (
	"encoding/hex"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
)

type accountsFile struct {
	Account []struct {
		Username string `toml:"username"`
		// Either password or password_hash is given.
		Password     string `toml:"password"`
		PasswordHash string `toml:"password_hash"`
		Salt         string `toml:"salt"`
		Banned       bool   `toml:"banned"`
	} `toml:"account"`
}

// LoadFile reads a TOML file of [[account]] tables into a MemoryStore.
func LoadFile(path string) (*MemoryStore, error) {
	var f accountsFile
	if _, err := toml.DecodeFile(path, &f); err != nil {
		return nil, errors.Wrapf(err, "reading accounts from %s", path)
	}

	s := NewMemoryStore()
	for i, e := range f.Account {
		if e.Username == "" {
			return nil, errors.Errorf("%s: account #%d has no username", path, i)
		}
		a := Account{
			Username:     e.Username,
			PasswordHash: e.PasswordHash,
			Banned:       e.Banned,
		}
		if a.PasswordHash == "" {
			a.PasswordHash = HashPassword(e.Username, e.Password)
		}
		if e.Salt != "" {
			salt, err := hex.DecodeString(e.Salt)
			if err != nil {
				return nil, errors.Wrapf(err, "%s: account %s: salt", path, e.Username)
			}
			a.Salt = salt
		}
		s.Add(a)
	}
	return s, nil
}
