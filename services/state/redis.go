package state

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli"
)

const (
	redisHostFlag      = "redis-host"
	redisPortFlag      = "redis-port"
	redisPasswordFlag  = "redis-password"
	redisDBFlag        = "redis-db"
	redisKeyPrefixFlag = "redis-key-prefix"
)

func RegisterRedisFlags(f []cli.Flag) []cli.Flag {
	return append(f,
		cli.StringFlag{
			Name:   redisHostFlag,
			Usage:  "redis host",
			Value:  "localhost",
			EnvVar: "REDIS_MASTER_SERVICE_HOST, REDIS_SERVICE_HOST",
		},
		cli.IntFlag{
			Name:   redisPortFlag,
			Usage:  "redis port",
			Value:  6379,
			EnvVar: "REDIS_MASTER_SERVICE_PORT, REDIS_SERVICE_PORT",
		},
		cli.StringFlag{
			Name:   redisPasswordFlag,
			Usage:  "redis password",
			EnvVar: "REDIS_PASSWORD",
		},
		cli.IntFlag{
			Name:   redisDBFlag,
			Usage:  "redis db",
			Value:  0,
			EnvVar: "REDIS_DB",
		},
		cli.StringFlag{
			Name:   redisKeyPrefixFlag,
			Usage:  "redis key prefix",
			Value:  "recs",
			EnvVar: "REDIS_KEY_PREFIX",
		},
	)
}

// RedisStore keeps local blobs in redis, namespaced per user so that
// several users can share one instance.
type RedisStore struct {
	cl     *redis.Client
	prefix string
}

func NewRedisStore(c *cli.Context, userID string) (*RedisStore, error) {
	addr := fmt.Sprintf("%v:%v", c.String(redisHostFlag), c.Int(redisPortFlag))
	cl := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: c.String(redisPasswordFlag),
		DB:       c.Int(redisDBFlag),
	})
	if err := cl.Ping(context.Background()).Err(); err != nil {
		_ = cl.Close()
		return nil, errors.Wrapf(err, "failed to connect to redis at %v", addr)
	}
	log.Infof("redis local store at %v", addr)
	return NewRedisStoreWithClient(cl, fmt.Sprintf("%v:%v:", c.String(redisKeyPrefixFlag), userID)), nil
}

func NewRedisStoreWithClient(cl *redis.Client, prefix string) *RedisStore {
	return &RedisStore{
		cl:     cl,
		prefix: prefix,
	}
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	v, err := s.cl.Get(ctx, s.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, errors.Wrapf(err, "failed to get %v", key)
	}
	return v, nil
}

func (s *RedisStore) Set(ctx context.Context, key string, value []byte) error {
	if err := s.cl.Set(ctx, s.prefix+key, value, 0).Err(); err != nil {
		return errors.Wrapf(err, "failed to set %v", key)
	}
	return nil
}

func (s *RedisStore) Close() {
	_ = s.cl.Close()
}
