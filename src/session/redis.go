package session

import (
	"context"
	"time"

	"github.com/garyburd/redigo/redis"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

const (
	redisKeyPrefix      = "playground:session:"
	redisUpdateAttempts = 10
)

var ErrConflict = errors.New("page state kept changing concurrently")

func NewRedisPool(address string, maxConnections int) *redis.Pool {
	return &redis.Pool{
		MaxIdle:     maxConnections,
		MaxActive:   maxConnections,
		IdleTimeout: 240 * time.Second,
		Wait:        true,
		Dial: func() (redis.Conn, error) {
			c, err := redis.Dial("tcp", address)
			if err != nil {
				return nil, err
			}
			return c, err
		},
		TestOnBorrow: func(c redis.Conn, t time.Time) error {
			if time.Since(t) < time.Minute {
				return nil
			}
			_, err := c.Do("PING")
			return err
		},
	}
}

// RedisStore keeps page states in Redis. Every write refreshes the key's TTL,
// abandoned sessions simply expire.
type RedisStore struct {
	pool *redis.Pool
	ttl  time.Duration
}

func NewRedisStore(pool *redis.Pool, ttl time.Duration) *RedisStore {
	return &RedisStore{pool: pool, ttl: ttl}
}

// Ping verifies that Redis can be reached.
func (s *RedisStore) Ping() error {
	redisConn := s.pool.Get()
	defer redisConn.Close()

	_, err := redisConn.Do("PING")
	return err
}

func (s *RedisStore) Load(ctx context.Context, id string) (*PageState, error) {
	redisConn := s.pool.Get()
	defer redisConn.Close()

	return s.get(redisConn, id)
}

func (s *RedisStore) Update(ctx context.Context, id string, fn func(*PageState) error) (*PageState, error) {
	redisConn := s.pool.Get()
	defer redisConn.Close()

	key := redisKeyPrefix + id
	for attempt := 0; attempt < redisUpdateAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if _, err := redisConn.Do("WATCH", key); err != nil {
			return nil, errors.Wrap(err, "couldn't watch page state")
		}

		st, err := s.get(redisConn, id)
		if err != nil {
			redisConn.Do("UNWATCH")
			return nil, err
		}

		if err := fn(st); err != nil {
			redisConn.Do("UNWATCH")
			return nil, err
		}
		st.UpdatedAt = time.Now()

		serialized, err := encode(st)
		if err != nil {
			redisConn.Do("UNWATCH")
			return nil, errors.Wrap(err, "couldn't serialize page state")
		}

		redisConn.Send("MULTI")
		redisConn.Send("SETEX", key, s.ttlSeconds(), serialized)
		_, err = redis.Values(redisConn.Do("EXEC"))
		if err == redis.ErrNil {
			log.Debug("[Session] Concurrent update of session ", id, ", retrying")
			continue
		}
		if err != nil {
			return nil, errors.Wrap(err, "couldn't store page state")
		}
		return st, nil
	}

	return nil, ErrConflict
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	redisConn := s.pool.Get()
	defer redisConn.Close()

	_, err := redisConn.Do("DEL", redisKeyPrefix+id)
	return err
}

func (s *RedisStore) Close() error {
	return s.pool.Close()
}

func (s *RedisStore) get(redisConn redis.Conn, id string) (*PageState, error) {
	data, err := redis.Bytes(redisConn.Do("GET", redisKeyPrefix+id))
	if err == redis.ErrNil {
		return newPageState(id), nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "couldn't get page state")
	}

	st, err := decode(id, data)
	if err != nil {
		return nil, errors.Wrap(err, "couldn't unmarshal page state")
	}
	return st, nil
}

func (s *RedisStore) ttlSeconds() int {
	seconds := int(s.ttl / time.Second)
	if seconds < 1 {
		return 1
	}
	return seconds
}
