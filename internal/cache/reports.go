package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"kassandra/internal/domain"
)

const reportTTL = 26 * time.Hour

// Snapshot is the cached outcome of the most recent pipeline run for a
// ticker: the evaluation report plus the next-session call.
type Snapshot struct {
	Ticker        string                     `json:"ticker"`
	ModelVersion  int                        `json:"model_version"`
	RanAt         time.Time                  `json:"ran_at"`
	Report        domain.EvalReport          `json:"report"`
	NextDate      time.Time                  `json:"next_date"`
	NextClose     float64                    `json:"next_close"`
	NextDirection domain.PredictionDirection `json:"next_direction"`
}

func snapshotKey(ticker string) string {
	return fmt.Sprintf("kassandra:snapshot:%s", ticker)
}

// PutSnapshot stores the run outcome with a TTL slightly past one session,
// so a skipped run surfaces as a cache miss instead of stale numbers.
func PutSnapshot(ctx context.Context, snap Snapshot) error {
	if Client == nil {
		return errors.New("redis client is not initialized")
	}
	blob, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	return Client.Set(ctx, snapshotKey(snap.Ticker), blob, reportTTL).Err()
}

// GetSnapshot returns the cached run outcome, or nil on a miss.
func GetSnapshot(ctx context.Context, ticker string) (*Snapshot, error) {
	if Client == nil {
		return nil, errors.New("redis client is not initialized")
	}
	blob, err := Client.Get(ctx, snapshotKey(ticker)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	var snap Snapshot
	if err := json.Unmarshal(blob, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}
