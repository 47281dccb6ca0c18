package accounts

import (
	"context"
	"encoding/hex"

	"github.com/golang/glog"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

const defaultKeyPrefix = "logon:account:"

// RedisStore reads accounts from Redis hashes keyed by upper-cased name,
// with fields password_hash, salt (hex) and banned ("1" when banned).
type RedisStore struct {
	client    redis.UniversalClient
	keyPrefix string
}

func NewRedisStore(client redis.UniversalClient, keyPrefix string) *RedisStore {
	if keyPrefix == "" {
		keyPrefix = defaultKeyPrefix
	}
	return &RedisStore{client: client, keyPrefix: keyPrefix}
}

func (s *RedisStore) key(name string) string {
	return s.keyPrefix + normalize(name)
}

func (s *RedisStore) FindByName(ctx context.Context, name string) (*Account, error) {
	fields, err := s.client.HGetAll(ctx, s.key(name)).Result()
	if err != nil {
		return nil, errors.Wrapf(err, "redis lookup of account %q", name)
	}
	if len(fields) == 0 {
		return nil, ErrNotFound
	}

	a := &Account{
		Username:     normalize(name),
		PasswordHash: fields["password_hash"],
		Banned:       fields["banned"] == "1",
	}
	if salt := fields["salt"]; salt != "" {
		if a.Salt, err = hex.DecodeString(salt); err != nil {
			return nil, errors.Wrapf(err, "account %q: salt", name)
		}
	}
	glog.V(2).Infof("redis account %s: banned=%v salted=%v", a.Username, a.Banned, len(a.Salt) > 0)
	return a, nil
}

// Put writes an account, replacing any previous one with the same name.
func (s *RedisStore) Put(ctx context.Context, a Account) error {
	banned := "0"
	if a.Banned {
		banned = "1"
	}
	key := s.key(a.Username)
	_, err := s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Del(ctx, key)
		p.HSet(ctx, key,
			"password_hash", a.PasswordHash,
			"salt", hex.EncodeToString(a.Salt),
			"banned", banned)
		return nil
	})
	return errors.Wrapf(err, "redis store of account %q", a.Username)
}
