package services

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cupgame-wallet/internal/models"
)

func TestRedisResultCache(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	c := NewRedisResultCache(client, zerolog.Nop())
	ctx := context.Background()

	_, ok := c.Get(ctx, "ext-1")
	assert.False(t, ok)

	tentative := dec("50")
	c.Set(ctx, "ext-1", &TransactionResult{
		TransactionId:    "t1",
		Status:           models.StatusPending,
		Balance:          dec("20"),
		TentativeBalance: &tentative,
	}, time.Minute)

	res, ok := c.Get(ctx, "ext-1")
	require.True(t, ok)
	assert.Equal(t, "t1", res.TransactionId)
	assert.Equal(t, models.StatusPending, res.Status)
	assert.True(t, dec("20").Equal(res.Balance))
	require.NotNil(t, res.TentativeBalance)
	assert.True(t, tentative.Equal(*res.TentativeBalance))

	mr.FastForward(2 * time.Minute)
	_, ok = c.Get(ctx, "ext-1")
	assert.False(t, ok)
}

func TestRedisResultCacheTreatsOutageAsMiss(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	c := NewRedisResultCache(client, zerolog.Nop())

	mr.Close()
	c.Set(context.Background(), "k", &TransactionResult{TransactionId: "t"}, time.Minute)
	_, ok := c.Get(context.Background(), "k")
	assert.False(t, ok)
}
