package queue

import "github.com/redis/go-redis/v9"

// addScript stores a job unless its id exists and schedules it.
//
// KEYS: job, wait, delayed
// ARGV: json, id, processAt (ms, 0 for now), priority ("1"/"0")
var addScript = redis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 1 then
  return 0
end
redis.call("SET", KEYS[1], ARGV[1])
if tonumber(ARGV[3]) > 0 then
  redis.call("ZADD", KEYS[3], ARGV[3], ARGV[2])
elseif ARGV[4] == "1" then
  redis.call("RPUSH", KEYS[2], ARGV[2])
else
  redis.call("LPUSH", KEYS[2], ARGV[2])
end
return 1
`)

// promoteScript moves due delayed jobs to the wait list.
//
// KEYS: delayed, wait
// ARGV: now (ms), limit, priority
var promoteScript = redis.NewScript(`
local ids = redis.call("ZRANGEBYSCORE", KEYS[1], "-inf", ARGV[1], "LIMIT", 0, tonumber(ARGV[2]))
for _, id in ipairs(ids) do
  redis.call("ZREM", KEYS[1], id)
  if ARGV[3] == "1" then
    redis.call("RPUSH", KEYS[2], id)
  else
    redis.call("LPUSH", KEYS[2], id)
  end
end
return #ids
`)

// finishScript moves a job from active into a finished set and trims the
// set to the retention bound.
//
// KEYS: active, job, finished
// ARGV: id, json, finishedAt (ms), keep, job key prefix
var finishScript = redis.NewScript(`
redis.call("LREM", KEYS[1], 1, ARGV[1])
redis.call("SET", KEYS[2], ARGV[2])
redis.call("ZADD", KEYS[3], ARGV[3], ARGV[1])
local keep = tonumber(ARGV[4])
if keep < 0 then
  return 0
end
local excess = redis.call("ZCARD", KEYS[3]) - keep
if excess <= 0 then
  return 0
end
local old = redis.call("ZRANGE", KEYS[3], 0, excess - 1)
for _, id in ipairs(old) do
  redis.call("DEL", ARGV[5] .. id)
end
redis.call("ZREMRANGEBYRANK", KEYS[3], 0, excess - 1)
return #old
`)

// cleanScript removes finished jobs older than a cutoff.
//
// KEYS: finished
// ARGV: cutoff (ms), job key prefix
var cleanScript = redis.NewScript(`
local ids = redis.call("ZRANGEBYSCORE", KEYS[1], "-inf", ARGV[1])
for _, id in ipairs(ids) do
  redis.call("DEL", ARGV[2] .. id)
  redis.call("ZREM", KEYS[1], id)
end
return #ids
`)
