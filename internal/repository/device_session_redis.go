package repository

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/room-rental/internal/devicegate"
	"github.com/iliyamo/room-rental/internal/model"
)

// Key layout (prefix defaults to "dev"; the braces are a literal hash tag):
//
//	{dev}:hash:<token_hash> HASH user_id device_id created_at last_seen_at [revoked_at]
//	{dev}:user:<user_id>    ZSET live token hashes scored by created_at (unix micros)
//
// Token hashes are unique across users, so registration has to see every
// record; the shared tag keeps the whole store in one cluster slot.  Keys
// known before a script runs are passed in KEYS; the records of a user's
// live devices are derived inside the script from the same tag.
//
// Hash records outlive revocation until their TTL so a replayed token
// still conflicts.
var registerScript = redis.NewScript(`
    local user_key = KEYS[1]
    local hash_key = KEYS[2]
    local prefix   = ARGV[1]
    local uid      = ARGV[2]
    local dev      = ARGV[3]
    local hash     = ARGV[4]
    local max      = tonumber(ARGV[5])
    local evict    = ARGV[6] == '1'
    local now      = ARGV[7]
    local ttl_ms   = ARGV[8]

    local live = {}
    for _, h in ipairs(redis.call('ZRANGE', user_key, 0, -1)) do
        if redis.call('EXISTS', prefix .. ':hash:' .. h) == 1 then
            table.insert(live, h)
        else
            redis.call('ZREM', user_key, h)
        end
    end

    for _, h in ipairs(live) do
        local rec = prefix .. ':hash:' .. h
        if redis.call('HGET', rec, 'device_id') == dev then
            if h == hash then
                redis.call('HSET', rec, 'last_seen_at', now)
                return 'ok'
            end
            if redis.call('EXISTS', hash_key) == 1 then return 'conflict' end
            local created = redis.call('HGET', rec, 'created_at')
            redis.call('HSET', rec, 'revoked_at', now)
            redis.call('ZREM', user_key, h)
            redis.call('HSET', hash_key, 'user_id', uid, 'device_id', dev, 'created_at', created, 'last_seen_at', now)
            redis.call('PEXPIRE', hash_key, ttl_ms)
            redis.call('ZADD', user_key, created, hash)
            redis.call('PEXPIRE', user_key, ttl_ms)
            return 'ok'
        end
    end

    if redis.call('EXISTS', hash_key) == 1 then return 'conflict' end

    if #live >= max then
        if not evict then return 'limit_reached' end
        for i = 1, #live - max + 1 do
            redis.call('HSET', prefix .. ':hash:' .. live[i], 'revoked_at', now)
            redis.call('ZREM', user_key, live[i])
        end
    end

    redis.call('HSET', hash_key, 'user_id', uid, 'device_id', dev, 'created_at', now, 'last_seen_at', now)
    redis.call('PEXPIRE', hash_key, ttl_ms)
    redis.call('ZADD', user_key, now, hash)
    redis.call('PEXPIRE', user_key, ttl_ms)
    return 'ok'
`)

var validateScript = redis.NewScript(`
    local rec = KEYS[1]
    if redis.call('HGET', rec, 'user_id') ~= ARGV[1] then return 0 end
    if redis.call('HEXISTS', rec, 'revoked_at') == 1 then return 0 end
    redis.call('HSET', rec, 'last_seen_at', ARGV[2])
    redis.call('PEXPIRE', rec, ARGV[3])
    redis.call('PEXPIRE', KEYS[2], ARGV[3])
    return 1
`)

var revokeScript = redis.NewScript(`
    local rec = KEYS[1]
    local uid = redis.call('HGET', rec, 'user_id')
    if not uid then return 0 end
    if redis.call('HEXISTS', rec, 'revoked_at') == 1 then return 0 end
    redis.call('HSET', rec, 'revoked_at', ARGV[2])
    redis.call('ZREM', ARGV[1] .. ':user:' .. uid, ARGV[3])
    return 1
`)

// RedisDeviceStore keeps device sessions in Redis.  Each operation is a
// single Lua script, so register-under-limit is atomic per user.
type RedisDeviceStore struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
	now    func() time.Time
}

// NewRedisDeviceStore returns a store whose records expire after ttl
// without activity.  prefix becomes the hash tag of every key.
func NewRedisDeviceStore(rdb *redis.Client, prefix string, ttl time.Duration) *RedisDeviceStore {
	prefix = strings.Trim(strings.TrimSpace(prefix), "{}")
	if prefix == "" {
		prefix = "dev"
	}
	prefix = "{" + prefix + "}"
	if ttl <= 0 {
		ttl = 30 * 24 * time.Hour
	}
	return &RedisDeviceStore{rdb: rdb, prefix: prefix, ttl: ttl, now: time.Now}
}

func (s *RedisDeviceStore) hashKey(h string) string   { return s.prefix + ":hash:" + h }
func (s *RedisDeviceStore) userKey(uid string) string { return s.prefix + ":user:" + uid }

func (s *RedisDeviceStore) micros() string {
	return strconv.FormatInt(s.now().UnixMicro(), 10)
}

func (s *RedisDeviceStore) Validate(ctx context.Context, userID, tokenHash string) (bool, error) {
	n, err := validateScript.Run(ctx, s.rdb, []string{s.hashKey(tokenHash), s.userKey(userID)},
		userID, s.micros(), s.ttl.Milliseconds()).Int64()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (s *RedisDeviceStore) Register(ctx context.Context, req devicegate.RegisterRequest) (devicegate.RegisterStatus, error) {
	evict := "0"
	if req.EvictOldest {
		evict = "1"
	}
	res, err := registerScript.Run(ctx, s.rdb, []string{s.userKey(req.UserID), s.hashKey(req.TokenHash)},
		s.prefix, req.UserID, req.DeviceID, req.TokenHash, req.MaxDevices, evict, s.micros(), s.ttl.Milliseconds(),
	).Text()
	if err != nil {
		return "", err
	}
	switch res {
	case "ok":
		return devicegate.StatusOK, nil
	case "limit_reached":
		return devicegate.StatusLimitReached, nil
	case "conflict":
		return "", ErrTokenHashConflict
	}
	return "", fmt.Errorf("device store: unexpected register result %q", res)
}

func (s *RedisDeviceStore) Revoke(ctx context.Context, tokenHash string) error {
	return revokeScript.Run(ctx, s.rdb, []string{s.hashKey(tokenHash)}, s.prefix, s.micros(), tokenHash).Err()
}

func (s *RedisDeviceStore) ListLive(ctx context.Context, userID string) ([]model.DeviceSession, error) {
	hashes, err := s.rdb.ZRange(ctx, s.userKey(userID), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	pipe := s.rdb.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(hashes))
	for i, h := range hashes {
		cmds[i] = pipe.HGetAll(ctx, s.hashKey(h))
	}
	if len(hashes) > 0 {
		if _, err := pipe.Exec(ctx); err != nil {
			return nil, err
		}
	}

	out := []model.DeviceSession{}
	for i, cmd := range cmds {
		rec := cmd.Val()
		if len(rec) == 0 {
			continue
		}
		out = append(out, model.DeviceSession{
			UserID:     rec["user_id"],
			DeviceID:   rec["device_id"],
			TokenHash:  hashes[i],
			CreatedAt:  fromMicros(rec["created_at"]),
			LastSeenAt: fromMicros(rec["last_seen_at"]),
		})
	}
	return out, nil
}

func fromMicros(s string) time.Time {
	n, _ := strconv.ParseInt(s, 10, 64)
	return time.UnixMicro(n).UTC()
}
