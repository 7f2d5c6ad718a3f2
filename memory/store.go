package memory

import (
	"time"

	cache "github.com/patrickmn/go-cache"
)

// Store é o contrato mínimo do armazenamento efêmero de conversas.
// A interface devolve erro em todas as operações para que uma implementação
// remota (Redis) possa ser plugada sem mexer nos callers; o CacheStore
// in-process nunca falha.
type Store interface {
	Get(key string) (string, bool, error)
	Set(key string, value string, ttl time.Duration) error
	Delete(key string) error
}

// CacheStore implementa Store sobre go-cache (TTL por chave, in-process).
type CacheStore struct {
	c *cache.Cache
}

func NewCacheStore() *CacheStore {
	return &CacheStore{c: cache.New(cache.NoExpiration, 10*time.Minute)}
}

func (s *CacheStore) Get(key string) (string, bool, error) {
	v, ok := s.c.Get(key)
	if !ok {
		return "", false, nil
	}
	str, _ := v.(string)
	return str, true, nil
}

func (s *CacheStore) Set(key string, value string, ttl time.Duration) error {
	s.c.Set(key, value, ttl)
	return nil
}

func (s *CacheStore) Delete(key string) error {
	s.c.Delete(key)
	return nil
}
