package server

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Throttle limita a taxa de resgates por cliente
type Throttle interface {
	Allow(ctx context.Context, key string) (allowed bool, retryAfter time.Duration, err error)
}

// slidingWindowScript remove as entradas fora da janela, conta as restantes
// e registra a requisição atual se houver espaço
var slidingWindowScript = redis.NewScript(`
	local key = KEYS[1]
	local counter_key = KEYS[2]
	local now = tonumber(ARGV[1])
	local window_start = tonumber(ARGV[2])
	local limit = tonumber(ARGV[3])
	local window_ms = tonumber(ARGV[4])

	redis.call('ZREMRANGEBYSCORE', key, '-inf', window_start)
	local count = redis.call('ZCARD', key)

	if count < limit then
		local counter = redis.call('INCR', counter_key)
		redis.call('ZADD', key, now, now .. ':' .. counter)
		redis.call('PEXPIRE', key, window_ms)
		redis.call('PEXPIRE', counter_key, window_ms)
		return {1, 0}
	end

	local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
	local retry_after = 0
	if #oldest >= 2 then
		retry_after = oldest[2] + window_ms - now
	end
	return {0, retry_after}
`)

// RedisThrottle implementa Throttle com janela deslizante no Redis
type RedisThrottle struct {
	client *redis.Client
	limit  int
	window time.Duration
	prefix string
}

func NewRedisThrottle(client *redis.Client, limit int, window time.Duration) *RedisThrottle {
	return &RedisThrottle{
		client: client,
		limit:  limit,
		window: window,
		prefix: "sendmyfiles:throttle:",
	}
}

func (t *RedisThrottle) Allow(ctx context.Context, key string) (bool, time.Duration, error) {
	now := time.Now()
	redisKey := t.prefix + key

	result, err := slidingWindowScript.Run(ctx, t.client, []string{redisKey, redisKey + ":counter"},
		now.UnixMilli(),
		now.Add(-t.window).UnixMilli(),
		t.limit,
		t.window.Milliseconds(),
	).Int64Slice()
	if err != nil {
		return false, 0, fmt.Errorf("falha ao executar script de limite: %w", err)
	}
	if len(result) < 2 {
		return false, 0, fmt.Errorf("resposta inesperada do script de limite: %v", result)
	}

	if result[0] == 1 {
		return true, 0, nil
	}
	return false, time.Duration(result[1]) * time.Millisecond, nil
}

// throttleMiddleware responde 429 quando o cliente excede o limite.
// Se o Redis falhar a requisição segue.
func throttleMiddleware(throttle Throttle, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		allowed, retryAfter, err := throttle.Allow(c.Request.Context(), c.ClientIP())
		if err != nil {
			logger.Warn("limite de downloads indisponível", zap.Error(err))
			c.Next()
			return
		}
		if !allowed {
			seconds := int(math.Ceil(retryAfter.Seconds()))
			if seconds < 1 {
				seconds = 1
			}
			c.Header("Retry-After", strconv.Itoa(seconds))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"success": false,
				"message": "Too many download requests. Try again later.",
			})
			return
		}
		c.Next()
	}
}
