package redis

import "github.com/redis/go-redis/v9"

// KEYS[1] state hash
// ARGV[1] now ms, ARGV[2] cooldown until ms, ARGV[3] ttl ms
var observeScript = redis.NewScript(`
local now = tonumber(ARGV[1])
local cooldown_until = tonumber(redis.call('HGET', KEYS[1], 'cooldown_until') or '0')
if now < cooldown_until then
  local n = redis.call('HINCRBY', KEYS[1], 'count', 1)
  redis.call('PEXPIRE', KEYS[1], ARGV[3])
  return {0, n}
end
local suppressed = tonumber(redis.call('HGET', KEYS[1], 'count') or '0')
redis.call('HSET', KEYS[1], 'last_alerted_at', ARGV[1], 'cooldown_until', ARGV[2], 'count', 0)
redis.call('PEXPIRE', KEYS[1], ARGV[3])
return {1, suppressed}
`)

// KEYS[1] bucket hash, KEYS[2] bucket index
// ARGV[1] fingerprint, ARGV[2] now ms, ARGV[3] sample json
var addDigestScript = redis.NewScript(`
redis.call('HSETNX', KEYS[1], 'window_start', ARGV[2])
redis.call('HSETNX', KEYS[1], 'sample', ARGV[3])
local n = redis.call('HINCRBY', KEYS[1], 'count', 1)
redis.call('SADD', KEYS[2], ARGV[1])
return n
`)

// KEYS[1] bucket hash, KEYS[2] bucket index
// ARGV[1] fingerprint
var drainDigestScript = redis.NewScript(`
local fields = redis.call('HGETALL', KEYS[1])
redis.call('DEL', KEYS[1])
redis.call('SREM', KEYS[2], ARGV[1])
return fields
`)

// KEYS[1] bucket hash, KEYS[2] bucket index
// ARGV[1] fingerprint, ARGV[2] count, ARGV[3] window start ms, ARGV[4] sample json
var requeueDigestScript = redis.NewScript(`
redis.call('HINCRBY', KEYS[1], 'count', ARGV[2])
local ws = tonumber(redis.call('HGET', KEYS[1], 'window_start') or '0')
if ws == 0 or tonumber(ARGV[3]) < ws then
  redis.call('HSET', KEYS[1], 'window_start', ARGV[3])
end
if ARGV[4] ~= '' then
  redis.call('HSETNX', KEYS[1], 'sample', ARGV[4])
end
redis.call('SADD', KEYS[2], ARGV[1])
return 1
`)

// KEYS[1] last flush key
// ARGV[1] now ms, ARGV[2] min gap ms
var claimFlushScript = redis.NewScript(`
local last = redis.call('GET', KEYS[1])
if last and tonumber(ARGV[1]) - tonumber(last) < tonumber(ARGV[2]) then
  return 0
end
redis.call('SET', KEYS[1], ARGV[1])
return 1
`)

// KEYS[1] leader key; ARGV[1] owner, ARGV[2] ttl ms
var refreshLeaderScript = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
  redis.call('PEXPIRE', KEYS[1], ARGV[2])
  return 1
end
return 0
`)

// KEYS[1] leader key; ARGV[1] owner
var releaseLeaderScript = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
  return redis.call('DEL', KEYS[1])
end
return 0
`)
