package redis

import (
	"context"
	"time"

	rd "github.com/redis/go-redis/v9"
)

// luaClaimOnce sets the claim only if nobody holds it, with a TTL, and
// reports whether this caller won.
const luaClaimOnce = `
local key = KEYS[1]
local owner = ARGV[1]
local ttlSec = tonumber(ARGV[2])

if redis.call('SETNX', key, owner) == 1 then
  redis.call('EXPIRE', key, ttlSec)
  return 1
end
return 0
`

// luaReleaseIfOwner deletes the claim only when it still holds owner, so a
// late release never drops someone else's claim.
const luaReleaseIfOwner = `
local key = KEYS[1]
local owner = ARGV[1]
if redis.call('GET', key) == owner then
  return redis.call('DEL', key)
end
return 0
`

// ClaimCheckout reserves idemKey for owner. false means the key was already
// used and the submission is a replay.
func ClaimCheckout(ctx context.Context, rdb *rd.Client, idemKey, owner string, ttl time.Duration) (bool, error) {
	ttlSec := int64(ttl / time.Second)
	if ttlSec <= 0 {
		ttlSec = 1
	}
	n, err := rdb.Eval(ctx, luaClaimOnce, []string{CheckoutClaimKey(idemKey)}, owner, ttlSec).Int()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// ReleaseCheckout frees a claim after a failed insert so the client can retry.
func ReleaseCheckout(ctx context.Context, rdb *rd.Client, idemKey, owner string) error {
	_, err := rdb.Eval(ctx, luaReleaseIfOwner, []string{CheckoutClaimKey(idemKey)}, owner).Int()
	return err
}
