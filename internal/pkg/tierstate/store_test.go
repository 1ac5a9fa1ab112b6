package tierstate

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuelReschke/BoostBoard/app/models"
	"github.com/ManuelReschke/BoostBoard/app/repository"
	"github.com/ManuelReschke/BoostBoard/internal/pkg/testutil"
	"github.com/ManuelReschke/BoostBoard/internal/pkg/tiers"
)

var now = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func newStore(t *testing.T) (*Store, func(*models.Community) *models.Community) {
	db := testutil.NewTestDB(t)
	store := NewStore(repository.NewCommunityRepository(db), func() time.Time { return now })
	seed := func(c *models.Community) *models.Community {
		return testutil.SeedCommunity(t, db, c)
	}
	return store, seed
}

func TestNormalizeResetsExpiredGold(t *testing.T) {
	store, seed := newStore(t)
	ctx := context.Background()
	past := now.Add(-time.Second)
	c := seed(&models.Community{Name: "expired", Tier: tiers.Gold, TierExpiresAt: &past})

	changed, err := store.Normalize(ctx, c.ID)
	require.NoError(t, err)
	assert.True(t, changed)

	got, err := store.repo.GetByID(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, tiers.Normal, got.Tier)
	assert.Nil(t, got.TierExpiresAt)
}

func TestNormalizeKeepsActiveTier(t *testing.T) {
	store, seed := newStore(t)
	future := now.Add(time.Hour)
	c := seed(&models.Community{Name: "active", Tier: tiers.Silver, TierExpiresAt: &future})

	changed, err := store.Normalize(context.Background(), c.ID)
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestNormalizeIsNoopForNormal(t *testing.T) {
	store, seed := newStore(t)
	c := seed(&models.Community{Name: "plain"})

	changed, err := store.Normalize(context.Background(), c.ID)
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestGetNormalizesLazily(t *testing.T) {
	store, seed := newStore(t)
	past := now.Add(-48 * time.Hour)
	c := seed(&models.Community{Name: "stale", Tier: tiers.Gold, TierExpiresAt: &past})

	got, err := store.Get(context.Background(), c.ID)
	require.NoError(t, err)
	assert.Equal(t, tiers.Normal, got.Tier)
	assert.Nil(t, got.TierExpiresAt)
}

func TestGetUnknownCommunity(t *testing.T) {
	store, _ := newStore(t)

	_, err := store.Get(context.Background(), 42)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestExtendIsMonotonic(t *testing.T) {
	store, seed := newStore(t)
	ctx := context.Background()
	tenDays := now.Add(10 * 24 * time.Hour)
	c := seed(&models.Community{Name: "c", Tier: tiers.Gold, TierExpiresAt: &tenDays})

	require.NoError(t, store.Extend(ctx, c.ID, tiers.Gold, now.Add(5*24*time.Hour)))

	got, err := store.Get(ctx, c.ID)
	require.NoError(t, err)
	require.NotNil(t, got.TierExpiresAt)
	assert.True(t, got.TierExpiresAt.Equal(tenDays))
}

func TestExtendRejectsNormal(t *testing.T) {
	store, seed := newStore(t)
	c := seed(&models.Community{Name: "c"})

	err := store.Extend(context.Background(), c.ID, tiers.Normal, now.Add(time.Hour))
	assert.ErrorIs(t, err, ErrInvalidTier)
}

func TestUpgradeOrdering(t *testing.T) {
	store, seed := newStore(t)
	ctx := context.Background()
	c := seed(&models.Community{Name: "c"})

	got, err := store.Upgrade(ctx, c.ID, tiers.Silver, tiers.GrantDuration)
	require.NoError(t, err)
	assert.Equal(t, tiers.Silver, got.Tier)
	require.NotNil(t, got.TierExpiresAt)
	assert.True(t, got.TierExpiresAt.Equal(now.Add(tiers.GrantDuration)))

	_, err = store.Upgrade(ctx, c.ID, tiers.Silver, tiers.GrantDuration)
	assert.ErrorIs(t, err, ErrNotAnUpgrade)

	got, err = store.Upgrade(ctx, c.ID, tiers.Gold, tiers.GrantDuration)
	require.NoError(t, err)
	assert.Equal(t, tiers.Gold, got.Tier)

	_, err = store.Upgrade(ctx, c.ID, tiers.Silver, tiers.GrantDuration)
	assert.ErrorIs(t, err, ErrNotAnUpgrade)
}

func TestUpgradeKeepsLongerPaidTime(t *testing.T) {
	store, seed := newStore(t)
	sixtyDays := now.Add(60 * 24 * time.Hour)
	c := seed(&models.Community{Name: "c", Tier: tiers.Silver, TierExpiresAt: &sixtyDays})

	got, err := store.Upgrade(context.Background(), c.ID, tiers.Gold, tiers.GrantDuration)
	require.NoError(t, err)
	assert.Equal(t, tiers.Gold, got.Tier)
	require.NotNil(t, got.TierExpiresAt)
	assert.True(t, got.TierExpiresAt.Equal(sixtyDays), "expected %s, got %s", sixtyDays, got.TierExpiresAt)
}

func TestUpgradeAfterLapseIsAllowed(t *testing.T) {
	store, seed := newStore(t)
	past := now.Add(-time.Hour)
	c := seed(&models.Community{Name: "c", Tier: tiers.Gold, TierExpiresAt: &past})

	got, err := store.Upgrade(context.Background(), c.ID, tiers.Silver, tiers.GrantDuration)
	require.NoError(t, err)
	assert.Equal(t, tiers.Silver, got.Tier)
}

func TestDowngradeAndSetExpiry(t *testing.T) {
	store, seed := newStore(t)
	ctx := context.Background()
	future := now.Add(time.Hour)
	c := seed(&models.Community{Name: "c", Tier: tiers.Gold, TierExpiresAt: &future})

	later := now.Add(3 * time.Hour)
	require.NoError(t, store.SetExpiry(ctx, c.ID, later))
	got, err := store.Get(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, tiers.Gold, got.Tier)
	assert.True(t, got.TierExpiresAt.Equal(later))

	require.NoError(t, store.Downgrade(ctx, c.ID))
	got, err = store.Get(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, tiers.Normal, got.Tier)
	assert.Nil(t, got.TierExpiresAt)
}

func TestNormalizeExpiredBulk(t *testing.T) {
	store, seed := newStore(t)
	past := now.Add(-time.Hour)
	seed(&models.Community{Name: "a", Tier: tiers.Gold, TierExpiresAt: &past})
	seed(&models.Community{Name: "b", Tier: tiers.Silver, TierExpiresAt: &past})

	n, err := store.NormalizeExpired(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}
