package repository

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWSTicket_SingleUse(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	repo := NewWSTicketRepository(client, time.Minute)
	ctx := context.Background()

	ticket, err := repo.Issue(ctx, "alice")
	require.NoError(t, err)

	username, err := repo.Redeem(ctx, ticket)
	require.NoError(t, err)
	assert.Equal(t, "alice", username)

	_, err = repo.Redeem(ctx, ticket)
	assert.ErrorIs(t, err, ErrTicketNotFound)
}

func TestWSTicket_Expires(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	repo := NewWSTicketRepository(client, 30*time.Second)
	ctx := context.Background()

	ticket, err := repo.Issue(ctx, "bob")
	require.NoError(t, err)
	mr.FastForward(time.Minute)

	_, err = repo.Redeem(ctx, ticket)
	assert.ErrorIs(t, err, ErrTicketNotFound)
}
