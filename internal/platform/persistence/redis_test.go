package persistence

import (
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/academy-ledger/internal/config"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
)

func TestNewRedisScopeLocker(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	client := redis.NewClient(&redis.Options{Addr: "localhost:0"})
	defer client.Close()

	cfg := &config.AllocatorConfig{LockTTL: 5 * time.Second, LockRetries: 3, LockRetryPeriod: 50 * time.Millisecond}
	locker := NewRedisScopeLocker(client, cfg, logger)

	assert.NotNil(t, locker.locker)
	assert.Equal(t, 5*time.Second, locker.ttl)
	assert.Equal(t, 3, locker.retries)
	var _ ScopeLocker = locker
}

// Obtain/Release need a live Redis; covered by the contract service tests through the ScopeLocker interface
