package signal

import (
	"sync"
	"time"

	"github.com/dkeye/Cine/internal/domain"
)

type ChatRateLimiter struct {
	mu       sync.Mutex
	history  map[domain.ConnectionID][]time.Time
	limit    int
	interval time.Duration
}

func NewChatRateLimiter(limit int, interval time.Duration) *ChatRateLimiter {
	return &ChatRateLimiter{
		history:  make(map[domain.ConnectionID][]time.Time),
		limit:    limit,
		interval: interval,
	}
}

func (rl *ChatRateLimiter) Allow(id domain.ConnectionID) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	windowStart := now.Add(-rl.interval)

	// 1. Берем историю соединения
	attempts := rl.history[id]

	// 2. Убираем старые попытки
	fresh := make([]time.Time, 0, len(attempts))
	for _, t := range attempts {
		if t.After(windowStart) {
			fresh = append(fresh, t)
		}
	}

	// 3. Если свежих попыток >= лимита → блок
	if len(fresh) >= rl.limit {
		return false
	}

	// 4. Иначе добавить текущую попытку
	fresh = append(fresh, now)
	rl.history[id] = fresh

	return true
}
