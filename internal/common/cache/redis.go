// Package cache 提供 Redis 连接、JSON 缓存与分布式锁
package cache

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/lavendermoon/villa-pms/internal/common/config"
)

// ErrCacheMiss 缓存未命中
var ErrCacheMiss = errors.New("cache miss")

// ErrLockHeld 锁已被其他持有者占用
var ErrLockHeld = errors.New("lock already held")

// KeyPrefix 所有键的统一前缀
const KeyPrefix = "pms:"

// NamespaceAvailability 可用房查询缓存
const NamespaceAvailability = "availability"

var rdb *redis.Client

// Init 初始化 Redis 连接
func Init(cfg *config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr(),
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  time.Duration(cfg.DialTimeout) * time.Second,
		ReadTimeout:  time.Duration(cfg.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.WriteTimeout) * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect redis: %w", err)
	}

	rdb = client
	return rdb, nil
}

// GetClient 获取全局客户端
func GetClient() *redis.Client {
	return rdb
}

// Close 关闭连接
func Close() error {
	if rdb != nil {
		return rdb.Close()
	}
	return nil
}

// BuildKey 拼接带前缀的键，如 BuildKey("lock", "payment", "ORDER1") -> pms:lock:payment:ORDER1
func BuildKey(parts ...string) string {
	return KeyPrefix + strings.Join(parts, ":")
}

// Store 基于 Redis 的 JSON 缓存
type Store struct {
	client redis.Cmdable
}

// NewStore 创建缓存
func NewStore(client redis.Cmdable) *Store {
	return &Store{client: client}
}

// SetJSON 序列化并写入
func (s *Store) SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value: %w", err)
	}
	return s.client.Set(ctx, key, data, ttl).Err()
}

// GetJSON 读取并反序列化，未命中返回 ErrCacheMiss
func (s *Store) GetJSON(ctx context.Context, key string, dest interface{}) error {
	data, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrCacheMiss
	}
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dest)
}

// Generation 缓存命名空间的代际号
// 键中带代际号，Bump 之后旧代际的键不再被读取，随 TTL 过期
// 先读代际号再读数据源的写入方，结果只会落在已失效的代际下
type Generation struct {
	client redis.Cmdable
	key    string
}

// Generation 返回命名空间 name 的代际号
func (s *Store) Generation(name string) *Generation {
	return &Generation{client: s.client, key: BuildKey(name, "gen")}
}

// Current 当前代际号，未初始化时为 0
func (g *Generation) Current(ctx context.Context) (int64, error) {
	n, err := g.client.Get(ctx, g.key).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return n, err
}

// Bump 递增代际号，使当前命名空间下的缓存全部失效
func (g *Generation) Bump(ctx context.Context) error {
	return g.client.Incr(ctx, g.key).Err()
}

// releaseScript 仅当值匹配时删除，避免误删他人的锁
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Locker 基于 SET NX 的分布式锁
type Locker struct {
	client redis.Scripter
	setter redis.Cmdable
}

// NewLocker 创建分布式锁
func NewLocker(client redis.UniversalClient) *Locker {
	return &Locker{client: client, setter: client}
}

// Lock 已获取的锁
type Lock struct {
	locker *Locker
	key    string
	token  string
}

// Acquire 获取锁，已被占用时返回 ErrLockHeld
func (l *Locker) Acquire(ctx context.Context, key string, ttl time.Duration) (*Lock, error) {
	token, err := newToken()
	if err != nil {
		return nil, err
	}
	ok, err := l.setter.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrLockHeld
	}
	return &Lock{locker: l, key: key, token: token}, nil
}

// Release 释放锁
func (lk *Lock) Release(ctx context.Context) error {
	return releaseScript.Run(ctx, lk.locker.client, []string{lk.key}, lk.token).Err()
}

func newToken() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
