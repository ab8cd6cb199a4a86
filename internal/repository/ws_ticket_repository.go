package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// ErrTicketNotFound 表示 WebSocket 票据不存在、已过期或已被使用。
var ErrTicketNotFound = errors.New("websocket ticket not found")

const wsTicketKey = "ws:ticket:%s"

// WSTicketRepository 发放一次性的 WebSocket 连接票据，避免把 JWT 放进 URL。
type WSTicketRepository interface {
	Issue(ctx context.Context, username string) (string, error)
	Redeem(ctx context.Context, ticket string) (string, error)
}

type redisTicketRepository struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewWSTicketRepository 创建基于 Redis 的票据仓库。
func NewWSTicketRepository(rdb *redis.Client, ttl time.Duration) WSTicketRepository {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &redisTicketRepository{rdb: rdb, ttl: ttl}
}

func (r *redisTicketRepository) Issue(ctx context.Context, username string) (string, error) {
	ticket := uuid.NewString()
	if err := r.rdb.Set(ctx, fmt.Sprintf(wsTicketKey, ticket), username, r.ttl).Err(); err != nil {
		return "", err
	}
	return ticket, nil
}

// Redeem 取出并删除票据，同一票据只能使用一次。
func (r *redisTicketRepository) Redeem(ctx context.Context, ticket string) (string, error) {
	username, err := r.rdb.GetDel(ctx, fmt.Sprintf(wsTicketKey, ticket)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrTicketNotFound
	}
	if err != nil {
		return "", err
	}
	return username, nil
}
