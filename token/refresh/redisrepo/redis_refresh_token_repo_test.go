package redisrefreshrepo_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/mkaldis/go-token-service/token/refresh"
	redisrefreshrepo "github.com/mkaldis/go-token-service/token/refresh/redisrepo"
)

func setupTestRepo(t *testing.T) (refresh.Repo, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return redisrefreshrepo.NewRedisRefreshTokenRepo(client), mr
}

func testToken(token string) *refresh.StoredRefreshToken {
	now := time.Now()
	return &refresh.StoredRefreshToken{
		Token:     token,
		ClientID:  "client-1",
		Subject:   "user-1",
		Scope:     "openid profile",
		IssuedAt:  now,
		ExpiresAt: now.Add(24 * time.Hour),
	}
}

func TestUpsertAndGet(t *testing.T) {
	repo, _ := setupTestRepo(t)

	require.NoError(t, repo.Upsert(context.Background(), testToken("rt-1")))

	rt, err := repo.Get(context.Background(), "rt-1")
	require.NoError(t, err)
	require.Equal(t, "client-1", rt.ClientID)
	require.Equal(t, "openid profile", rt.Scope)
}

func TestGet_Unknown(t *testing.T) {
	repo, _ := setupTestRepo(t)

	_, err := repo.Get(context.Background(), "never-stored")
	require.ErrorIs(t, err, refresh.ErrTokenNotFound)
}

func TestDelete(t *testing.T) {
	repo, _ := setupTestRepo(t)

	require.NoError(t, repo.Upsert(context.Background(), testToken("rt-1")))
	require.NoError(t, repo.Delete(context.Background(), "rt-1"))

	_, err := repo.Get(context.Background(), "rt-1")
	require.ErrorIs(t, err, refresh.ErrTokenNotFound)

	require.ErrorIs(t, repo.Delete(context.Background(), "rt-1"), refresh.ErrTokenNotFound)
}

func TestReplace(t *testing.T) {
	repo, _ := setupTestRepo(t)

	require.NoError(t, repo.Upsert(context.Background(), testToken("rt-old")))

	require.NoError(t, repo.Replace(context.Background(), "rt-old", testToken("rt-new")))

	_, err := repo.Get(context.Background(), "rt-old")
	require.ErrorIs(t, err, refresh.ErrTokenNotFound)

	rt, err := repo.Get(context.Background(), "rt-new")
	require.NoError(t, err)
	require.Equal(t, "user-1", rt.Subject)
}

// TestReplace_OldAlreadyGone pins the rotation race behavior: when the
// old token has already been replaced, the script writes nothing, so a
// losing rotation can never mint a second live token.
func TestReplace_OldAlreadyGone(t *testing.T) {
	repo, _ := setupTestRepo(t)

	require.NoError(t, repo.Upsert(context.Background(), testToken("rt-old")))
	require.NoError(t, repo.Replace(context.Background(), "rt-old", testToken("rt-winner")))

	err := repo.Replace(context.Background(), "rt-old", testToken("rt-loser"))
	require.ErrorIs(t, err, refresh.ErrTokenNotFound)

	_, err = repo.Get(context.Background(), "rt-loser")
	require.ErrorIs(t, err, refresh.ErrTokenNotFound)

	_, err = repo.Get(context.Background(), "rt-winner")
	require.NoError(t, err)
}

func TestUpsert_KeyExpires(t *testing.T) {
	repo, mr := setupTestRepo(t)

	rt := testToken("rt-1")
	rt.ExpiresAt = time.Now().Add(time.Minute)
	require.NoError(t, repo.Upsert(context.Background(), rt))

	mr.FastForward(2 * time.Minute)

	_, err := repo.Get(context.Background(), "rt-1")
	require.ErrorIs(t, err, refresh.ErrTokenNotFound)
}
