package repository

import (
	"context"
	"fmt"
	"time"

	"careercoach-go/pkg/log"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// 只有持有者本人的 token 才能删除锁。
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisTurnLock 在 Redis 中为每个会话维护一把带过期时间的互斥锁，多个实例共享。
type RedisTurnLock struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisTurnLock 创建一把轮次锁。ttl 需大于一轮对话的最长耗时。
func NewRedisTurnLock(client *redis.Client, ttl time.Duration) *RedisTurnLock {
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	return &RedisTurnLock{client: client, ttl: ttl}
}

func turnLockKey(sessionID string) string {
	return fmt.Sprintf("interview:%s:turn_lock", sessionID)
}

// TryAcquire 尝试获取会话锁，已被占用时返回 ok=false。
func (l *RedisTurnLock) TryAcquire(ctx context.Context, sessionID string) (func(), bool, error) {
	key := turnLockKey(sessionID)
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("failed to acquire turn lock: %w", err)
	}
	if !ok {
		return nil, false, nil
	}

	release := func() {
		// 请求上下文可能已取消，释放使用独立的超时
		releaseCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := releaseScript.Run(releaseCtx, l.client, []string{key}, token).Err(); err != nil && err != redis.Nil {
			log.Warnw("释放轮次锁失败", "sessionId", sessionID, "error", err)
		}
	}
	return release, true, nil
}
