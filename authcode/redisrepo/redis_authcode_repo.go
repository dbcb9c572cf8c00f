package redisauthcoderepo

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/mkaldis/go-token-service/authcode"
)

const keyPrefix = "authcode:"

var _ authcode.Repo = (*RedisAuthCodeRepo)(nil)

// RedisAuthCodeRepo stores authorization codes in Redis. Consume relies
// on GETDEL, which is a single atomic command, so a code can only ever
// be read out of the store once.
type RedisAuthCodeRepo struct {
	client redis.UniversalClient
}

func NewRedisAuthCodeRepo(client redis.UniversalClient) authcode.Repo {
	return &RedisAuthCodeRepo{client: client}
}

func (r *RedisAuthCodeRepo) Save(ctx context.Context, code *authcode.AuthorizationCode) error {
	payload, err := json.Marshal(code)
	if err != nil {
		return errors.Wrap(err, "[RedisAuthCodeRepo.Save] marshal")
	}

	// Key TTL is a safety net against leaked codes; the validator still
	// checks ExpiresAt on the record itself.
	ttl := time.Until(code.ExpiresAt)
	if ttl <= 0 {
		ttl = time.Second
	}

	if err := r.client.Set(ctx, keyPrefix+code.Code, payload, ttl).Err(); err != nil {
		return errors.Wrap(err, "[RedisAuthCodeRepo.Save] set")
	}
	return nil
}

func (r *RedisAuthCodeRepo) Consume(ctx context.Context, code string) (*authcode.AuthorizationCode, error) {
	payload, err := r.client.GetDel(ctx, keyPrefix+code).Bytes()
	if err == redis.Nil {
		return nil, authcode.ErrCodeNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "[RedisAuthCodeRepo.Consume] getdel")
	}

	var record authcode.AuthorizationCode
	if err := json.Unmarshal(payload, &record); err != nil {
		return nil, errors.Wrap(err, "[RedisAuthCodeRepo.Consume] unmarshal")
	}
	return &record, nil
}
