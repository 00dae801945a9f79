package cache

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"time"

	"lingocredit/internal/config"

	"github.com/go-redis/redis/v8"
)

var RedisClient *redis.Client

func InitRedis(cfg *config.RedisConfig) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		log.Fatalf("连接 Redis 失败: %v", err)
	}

	RedisClient = client
	log.Println("Redis 连接成功")
	return client
}

// ============================================================================
// 余额缓存
// ============================================================================
//
// 【契约】余额读取允许走短 TTL 缓存，但任何一次余额变动提交后
// 必须立刻删除缓存，让下一次读取回源到数据库，不容忍长期脏读。
// 缓存只是读加速，资金正确性永远以数据库为准。
// ============================================================================

func balanceKey(userID int64) string {
	return fmt.Sprintf("credit:balance:%d", userID)
}

// GetBalance 读余额缓存，未命中返回 (0, false)
func GetBalance(ctx context.Context, client *redis.Client, userID int64) (int64, bool) {
	val, err := client.Get(ctx, balanceKey(userID)).Result()
	if err != nil {
		return 0, false
	}
	balance, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, false
	}
	return balance, true
}

// SetBalance 写余额缓存
func SetBalance(ctx context.Context, client *redis.Client, userID int64, balance int64, ttl time.Duration) {
	if err := client.Set(ctx, balanceKey(userID), balance, ttl).Err(); err != nil {
		log.Printf("[Cache] 写余额缓存失败: userID=%d, err=%v", userID, err)
	}
}

// InvalidateBalance 删除余额缓存，余额变动事务提交后调用
func InvalidateBalance(ctx context.Context, client *redis.Client, userID int64) {
	if err := client.Del(ctx, balanceKey(userID)).Err(); err != nil {
		log.Printf("[Cache] 删除余额缓存失败: userID=%d, err=%v", userID, err)
	}
}
