package service

import (
	"context"
	"sync"
)

// TurnGuard 保证同一会话同一时间只有一个轮次在处理。
// TryAcquire 在已被占用时返回 ok=false，release 必须在轮次结束后调用。
type TurnGuard interface {
	TryAcquire(ctx context.Context, sessionID string) (release func(), ok bool, err error)
}

type localTurnGuard struct {
	mu     sync.Mutex
	active map[string]struct{}
}

// NewLocalTurnGuard 返回一个进程内的 TurnGuard，只适用于单实例部署。
func NewLocalTurnGuard() TurnGuard {
	return &localTurnGuard{active: make(map[string]struct{})}
}

func (g *localTurnGuard) TryAcquire(_ context.Context, sessionID string) (func(), bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, busy := g.active[sessionID]; busy {
		return nil, false, nil
	}
	g.active[sessionID] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			g.mu.Lock()
			delete(g.active, sessionID)
			g.mu.Unlock()
		})
	}, true, nil
}
