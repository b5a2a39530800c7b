package middleware

import (
	"fmt"
	"net/http"
	"time"

	"wholesale_catalog/pkg/logger"
	rediskey "wholesale_catalog/pkg/redis"

	"github.com/gin-gonic/gin"
	rd "github.com/redis/go-redis/v9"
)

// luaRateLimit is an atomic sliding-window limiter.
// KEYS[1]=window key, ARGV[1]=now, ARGV[2]=window start, ARGV[3]=window seconds,
// ARGV[4]=member, ARGV[5]=limit. Returns the count in the window, or -1 when
// the request is over the limit.
const luaRateLimit = `
local key = KEYS[1]
local now = tonumber(ARGV[1])
local windowStart = tonumber(ARGV[2])
local windowSec = tonumber(ARGV[3])
local member = ARGV[4]

redis.call('ZREMRANGEBYSCORE', key, '0', windowStart)

local count = redis.call('ZCARD', key)

if count < tonumber(ARGV[5]) then
  redis.call('ZADD', key, now, member)
  redis.call('EXPIRE', key, windowSec)
  return count + 1
else
  return -1
end
`

// RedisRateLimit limits each client IP to limit requests per window within
// scope (e.g. "login", "checkout"). Redis failures let the request through.
func RedisRateLimit(rdb *rd.Client, scope string, limit int, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := rediskey.RateLimitKey(scope, c.ClientIP())

		now := time.Now()
		windowSec := int64(window.Seconds())
		if windowSec <= 0 {
			windowSec = 1
		}
		nowMs := now.UnixMilli()
		windowStart := nowMs - windowSec*1000
		member := fmt.Sprintf("%d-%d", nowMs, now.UnixNano())

		res, err := rdb.Eval(c.Request.Context(), luaRateLimit, []string{key},
			nowMs, windowStart, windowSec, member, limit).Int()
		if err != nil {
			logger.Warn(c.Request.Context(), "rate limit check failed, allowing request", "scope", scope, "error", err)
			c.Next()
			return
		}

		if res < 0 {
			c.Header("Retry-After", fmt.Sprint(windowSec))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"code": 429,
				"msg":  "Demasiadas solicitudes, intente nuevamente en unos minutos",
			})
			return
		}
		c.Next()
	}
}
