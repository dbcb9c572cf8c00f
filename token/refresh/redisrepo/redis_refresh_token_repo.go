package redisrefreshrepo

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/mkaldis/go-token-service/token/refresh"
)

const keyPrefix = "refreshtoken:"

// replaceScript deletes the old token and stores its successor in one
// server-side step. Returns 0 without writing anything when the old
// token is already gone, so a lost rotation race never mints a second
// live token.
var replaceScript = redis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 0 then
	return 0
end
redis.call("DEL", KEYS[1])
redis.call("SET", KEYS[2], ARGV[1], "PX", ARGV[2])
return 1
`)

var _ refresh.Repo = (*RedisRefreshTokenRepo)(nil)

// RedisRefreshTokenRepo stores refresh tokens in Redis with a TTL
// matching their expiry.
type RedisRefreshTokenRepo struct {
	client redis.UniversalClient
}

func NewRedisRefreshTokenRepo(client redis.UniversalClient) refresh.Repo {
	return &RedisRefreshTokenRepo{client: client}
}

func (r *RedisRefreshTokenRepo) Upsert(ctx context.Context, refreshToken *refresh.StoredRefreshToken) error {
	payload, err := json.Marshal(refreshToken)
	if err != nil {
		return errors.Wrap(err, "[RedisRefreshTokenRepo.Upsert] marshal")
	}
	if err := r.client.Set(ctx, keyPrefix+refreshToken.Token, payload, ttlFor(refreshToken)).Err(); err != nil {
		return errors.Wrap(err, "[RedisRefreshTokenRepo.Upsert] set")
	}
	return nil
}

func (r *RedisRefreshTokenRepo) Get(ctx context.Context, token string) (*refresh.StoredRefreshToken, error) {
	payload, err := r.client.Get(ctx, keyPrefix+token).Bytes()
	if err == redis.Nil {
		return nil, refresh.ErrTokenNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "[RedisRefreshTokenRepo.Get] get")
	}

	var rt refresh.StoredRefreshToken
	if err := json.Unmarshal(payload, &rt); err != nil {
		return nil, errors.Wrap(err, "[RedisRefreshTokenRepo.Get] unmarshal")
	}
	return &rt, nil
}

func (r *RedisRefreshTokenRepo) Delete(ctx context.Context, token string) error {
	deleted, err := r.client.Del(ctx, keyPrefix+token).Result()
	if err != nil {
		return errors.Wrap(err, "[RedisRefreshTokenRepo.Delete] del")
	}
	if deleted == 0 {
		return refresh.ErrTokenNotFound
	}
	return nil
}

func (r *RedisRefreshTokenRepo) Replace(ctx context.Context, oldToken string, successor *refresh.StoredRefreshToken) error {
	payload, err := json.Marshal(successor)
	if err != nil {
		return errors.Wrap(err, "[RedisRefreshTokenRepo.Replace] marshal")
	}

	replaced, err := replaceScript.Run(ctx, r.client,
		[]string{keyPrefix + oldToken, keyPrefix + successor.Token},
		payload, ttlFor(successor).Milliseconds(),
	).Int()
	if err != nil {
		return errors.Wrap(err, "[RedisRefreshTokenRepo.Replace] script")
	}
	if replaced == 0 {
		return refresh.ErrTokenNotFound
	}
	return nil
}

func ttlFor(rt *refresh.StoredRefreshToken) time.Duration {
	ttl := time.Until(rt.ExpiresAt)
	if ttl <= 0 {
		ttl = time.Second
	}
	return ttl
}
