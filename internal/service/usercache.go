package service

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus-метрики кэша имён пользователей.
var (
	userCacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cs_user_cache_hits_total",
		Help: "Общее количество попаданий в кэш имён пользователей.",
	})
	userCacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cs_user_cache_misses_total",
		Help: "Общее количество промахов кэша имён пользователей.",
	})
)

// CachedUserStore: UserStore с LRU-кэшем соответствия ID → имя.
// Пользователи не переименовываются и не удаляются, поэтому
// инвалидация не нужна; TTL ограничивает время жизни записей.
type CachedUserStore struct {
	UserStore
	names *expirable.LRU[int64, string]
}

// NewCachedUserStore оборачивает store кэшем на maxSize записей с TTL.
func NewCachedUserStore(store UserStore, maxSize int, ttl time.Duration) *CachedUserStore {
	return &CachedUserStore{
		UserStore: store,
		names:     expirable.NewLRU[int64, string](maxSize, nil, ttl),
	}
}

// GetUserName возвращает имя из кэша или из хранилища.
// Ошибки (в том числе ErrUserNotFound) не кэшируются.
func (c *CachedUserStore) GetUserName(ctx context.Context, userID int64) (string, error) {
	if name, ok := c.names.Get(userID); ok {
		userCacheHitsTotal.Inc()
		return name, nil
	}
	userCacheMissesTotal.Inc()

	name, err := c.UserStore.GetUserName(ctx, userID)
	if err != nil {
		return "", err
	}
	c.names.Add(userID, name)
	return name, nil
}

// Len возвращает количество записей в кэше.
func (c *CachedUserStore) Len() int {
	return c.names.Len()
}
