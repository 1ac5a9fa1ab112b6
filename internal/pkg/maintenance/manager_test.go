package maintenance

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuelReschke/BoostBoard/app/models"
	"github.com/ManuelReschke/BoostBoard/app/repository"
	"github.com/ManuelReschke/BoostBoard/internal/pkg/testutil"
	"github.com/ManuelReschke/BoostBoard/internal/pkg/tiers"
	"github.com/ManuelReschke/BoostBoard/internal/pkg/tierstate"
)

type countingNormalizer struct {
	calls atomic.Int32
	err   error
}

func (c *countingNormalizer) NormalizeExpired(context.Context) (int64, error) {
	c.calls.Add(1)
	return 0, c.err
}

func TestManagerStartStop(t *testing.T) {
	n := &countingNormalizer{}
	m := NewManager(n, 10*time.Millisecond)

	assert.False(t, m.IsRunning())
	m.Start()
	m.Start() // second start is a no-op
	assert.True(t, m.IsRunning())

	assert.Eventually(t, func() bool { return n.calls.Load() >= 2 }, time.Second, 5*time.Millisecond)

	m.Stop()
	assert.False(t, m.IsRunning())
	after := n.calls.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, after, n.calls.Load(), "no sweeps after Stop")

	m.Stop() // stopping twice is safe

	// restart after stop
	m.Start()
	assert.True(t, m.IsRunning())
	m.Stop()
}

func TestManagerDisabled(t *testing.T) {
	n := &countingNormalizer{}
	m := NewManager(n, 0)
	m.Start()
	assert.False(t, m.IsRunning())
	assert.Zero(t, n.calls.Load())
}

func TestSweepSurvivesErrors(t *testing.T) {
	n := &countingNormalizer{err: errors.New("db down")}
	m := NewManager(n, time.Hour)
	assert.Zero(t, m.Sweep())
	assert.Equal(t, int32(1), n.calls.Load())
}

func TestSweepResetsLapsedTiers(t *testing.T) {
	db := testutil.NewTestDB(t)
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Minute)
	future := now.Add(time.Hour)
	expired := testutil.SeedCommunity(t, db, &models.Community{Name: "expired", Tier: tiers.Gold, TierExpiresAt: &past})
	active := testutil.SeedCommunity(t, db, &models.Community{Name: "active", Tier: tiers.Silver, TierExpiresAt: &future})

	store := tierstate.NewStore(repository.NewCommunityRepository(db), func() time.Time { return now })
	m := NewManager(store, time.Hour)
	assert.Equal(t, int64(1), m.Sweep())

	var got models.Community
	require.NoError(t, db.First(&got, expired.ID).Error)
	assert.Equal(t, tiers.Normal, got.Tier)
	assert.Nil(t, got.TierExpiresAt)

	var kept models.Community
	require.NoError(t, db.First(&kept, active.ID).Error)
	assert.Equal(t, tiers.Silver, kept.Tier)
}
