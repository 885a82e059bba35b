package jobs

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// Cursor stream names. One monotonic cursor per exported stream.
const (
	CursorTransactions  = "transactions"
	CursorWalletEntries = "wallet_entries"
)

const cursorKeyPrefix = "sheetsync:cursor:"

// advanceScript keeps the cursor monotonic under concurrent handlers:
// the stored value only ever moves forward.
var advanceScript = redis.NewScript(`
local cur = tonumber(redis.call('GET', KEYS[1]) or '-1')
local next = tonumber(ARGV[1])
if next > cur then
  redis.call('SET', KEYS[1], ARGV[1])
  return next
end
return cur
`)

// CursorStore tracks the highest entity id applied to the sheet
// staging area per stream.
type CursorStore struct {
	rdb *redis.Client
}

// NewCursorStore constructs a CursorStore instance.
func NewCursorStore(rdb *redis.Client) *CursorStore {
	return &CursorStore{rdb: rdb}
}

// Advance moves the stream cursor forward to id if id is ahead of the
// stored position, and returns the resulting position.
func (s *CursorStore) Advance(ctx context.Context, stream string, id int64) (int64, error) {
	pos, err := advanceScript.Run(ctx, s.rdb, []string{cursorKeyPrefix + stream}, id).Int64()
	if err != nil {
		return 0, err
	}
	return pos, nil
}

// Last returns the stream cursor, or -1 when nothing has synced yet.
func (s *CursorStore) Last(ctx context.Context, stream string) (int64, error) {
	pos, err := s.rdb.Get(ctx, cursorKeyPrefix+stream).Int64()
	if err == redis.Nil {
		return -1, nil
	}
	if err != nil {
		return 0, err
	}
	return pos, nil
}
