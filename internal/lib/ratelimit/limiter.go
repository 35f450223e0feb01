// Package ratelimit реализует лимитер запросов с отдельным ведром
// на каждый ключ (например, адрес клиента) и вытеснением простаивающих
// записей по TTL. Лимитер создаётся явно и передаётся через зависимости,
// глобального состояния пакет не содержит.
package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter хранит по одному rate.Limiter на ключ.
type Limiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	rps     rate.Limit
	burst   int
	ttl     time.Duration
	now     func() time.Time
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// New создаёт лимитер: rps — скорость пополнения, burst — размер ведра,
// ttl — срок, после которого простаивающая запись удаляется.
func New(rps float64, burst int, ttl time.Duration) *Limiter {
	return &Limiter{
		buckets: make(map[string]*bucket),
		rps:     rate.Limit(rps),
		burst:   burst,
		ttl:     ttl,
		now:     time.Now,
	}
}

// Allow сообщает, допустим ли сейчас запрос для данного ключа.
// Попутно вытесняет записи, не использовавшиеся дольше TTL.
func (l *Limiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	for k, b := range l.buckets {
		if now.Sub(b.lastSeen) > l.ttl {
			delete(l.buckets, k)
		}
	}

	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(l.rps, l.burst)}
		l.buckets[key] = b
	}
	b.lastSeen = now
	return b.limiter.Allow()
}

// Len возвращает количество отслеживаемых ключей.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}
