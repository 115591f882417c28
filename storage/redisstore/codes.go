package redisstore

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dmitrymomot/taskflow/svc/otp"
)

// verifyScript compares the stored hash and deletes the record on success.
// Failed attempts are counted and the record is dropped at the limit.
// Returns {status, purpose}: 1 match, 0 mismatch, -1 missing.
var verifyScript = redis.NewScript(`
local rec = redis.call("HMGET", KEYS[1], "hash", "purpose")
if not rec[1] then
  return {-1, ""}
end
if rec[1] == ARGV[1] then
  redis.call("DEL", KEYS[1])
  return {1, rec[2]}
end
local attempts = redis.call("HINCRBY", KEYS[1], "attempts", 1)
if attempts >= tonumber(ARGV[2]) then
  redis.call("DEL", KEYS[1])
end
return {0, ""}
`)

// Codes implements otp.Store.
type Codes struct {
	client redis.UniversalClient
	prefix string
}

func NewCodes(client redis.UniversalClient, prefix string) *Codes {
	return &Codes{client: client, prefix: prefix + "otp:"}
}

// Put overwrites any previous code of address and resets its attempts.
func (s *Codes) Put(ctx context.Context, address string, rec otp.Record, ttl time.Duration) error {
	key := s.prefix + address
	_, err := s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Del(ctx, key)
		p.HSet(ctx, key,
			"hash", rec.CodeHash,
			"purpose", string(rec.Purpose),
			"issued_at", strconv.FormatInt(rec.IssuedAt.Unix(), 10),
			"attempts", 0,
		)
		p.PExpire(ctx, key, ttl)
		return nil
	})
	return err
}

func (s *Codes) Verify(ctx context.Context, address, codeHash string, maxAttempts int) (otp.Purpose, error) {
	res, err := verifyScript.Run(ctx, s.client, []string{s.prefix + address}, codeHash, maxAttempts).Slice()
	if err != nil {
		return "", err
	}
	if len(res) != 2 {
		return "", errors.New("unexpected verify script reply")
	}
	status, _ := res[0].(int64)
	purpose, _ := res[1].(string)
	switch status {
	case 1:
		return otp.Purpose(purpose), nil
	case 0:
		return "", otp.ErrCodeMismatch
	default:
		return "", otp.ErrCodeNotFound
	}
}
