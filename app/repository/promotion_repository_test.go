package repository

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuelReschke/BoostBoard/app/models"
	"github.com/ManuelReschke/BoostBoard/internal/pkg/testutil"
)

func recordInput(userID string, communityID uint, at time.Time) RecordPromotion {
	return RecordPromotion{
		UserID:            userID,
		CommunityID:       communityID,
		At:                at,
		UserCooldown:      time.Hour,
		CommunityCooldown: 24 * time.Hour,
	}
}

func TestPromotionRepository_RecordAppendsAndCounts(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewPromotionRepository(db)
	ctx := context.Background()
	c := testutil.SeedCommunity(t, db, &models.Community{Name: "gophers"})

	ev, err := repo.Record(ctx, recordInput("abc", c.ID, baseTime))
	require.NoError(t, err)
	assert.NotZero(t, ev.ID)

	var stored models.Community
	require.NoError(t, db.First(&stored, c.ID).Error)
	assert.Equal(t, int64(1), stored.PromoteCount)

	last, err := repo.LastByUser(ctx, "abc")
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, c.ID, last.CommunityID)
	assert.True(t, last.PromotedAt.Equal(baseTime))
}

func TestPromotionRepository_LastByUserEmpty(t *testing.T) {
	repo := NewPromotionRepository(testutil.NewTestDB(t))

	last, err := repo.LastByUser(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Nil(t, last)

	last, err = repo.LastByCommunity(context.Background(), 7)
	require.NoError(t, err)
	assert.Nil(t, last)
}

func TestPromotionRepository_RecordRejectsClaimedUserWindow(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewPromotionRepository(db)
	ctx := context.Background()
	a := testutil.SeedCommunity(t, db, &models.Community{Name: "a"})
	b := testutil.SeedCommunity(t, db, &models.Community{Name: "b"})

	_, err := repo.Record(ctx, recordInput("abc", a.ID, baseTime))
	require.NoError(t, err)

	_, err = repo.Record(ctx, recordInput("abc", b.ID, baseTime.Add(30*time.Minute)))
	var conflict *CooldownConflictError
	require.True(t, errors.As(err, &conflict), "expected conflict, got %v", err)
	assert.Equal(t, ScopeUser, conflict.Scope)
	assert.True(t, conflict.LastPromotedAt.Equal(baseTime))

	// the failed attempt must not leave a ledger row or counter bump behind
	var count int64
	require.NoError(t, db.Model(&models.PromotionEvent{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
	var stored models.Community
	require.NoError(t, db.First(&stored, b.ID).Error)
	assert.Equal(t, int64(0), stored.PromoteCount)

	_, err = repo.Record(ctx, recordInput("abc", b.ID, baseTime.Add(time.Hour)))
	assert.NoError(t, err)
}

func TestPromotionRepository_RecordRejectsClaimedCommunityWindow(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewPromotionRepository(db)
	ctx := context.Background()
	c := testutil.SeedCommunity(t, db, &models.Community{Name: "c"})

	_, err := repo.Record(ctx, recordInput("u1", c.ID, baseTime))
	require.NoError(t, err)

	_, err = repo.Record(ctx, recordInput("u2", c.ID, baseTime.Add(2*time.Hour)))
	var conflict *CooldownConflictError
	require.True(t, errors.As(err, &conflict))
	assert.Equal(t, ScopeCommunity, conflict.Scope)

	// u2's personal window must have been rolled back with the failed attempt
	other := testutil.SeedCommunity(t, db, &models.Community{Name: "other"})
	_, err = repo.Record(ctx, recordInput("u2", other.ID, baseTime.Add(2*time.Hour)))
	assert.NoError(t, err)
}

func TestPromotionRepository_RecordMissingCommunityRollsBack(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewPromotionRepository(db)

	_, err := repo.Record(context.Background(), recordInput("abc", 404, baseTime))
	assert.ErrorIs(t, err, ErrNotFound)

	var events, claims int64
	require.NoError(t, db.Model(&models.PromotionEvent{}).Count(&events).Error)
	require.NoError(t, db.Model(&models.PromotionCooldown{}).Count(&claims).Error)
	assert.Zero(t, events)
	assert.Zero(t, claims)
}

func TestPromotionRepository_ConcurrentRecordSingleWinner(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewPromotionRepository(db)
	c := testutil.SeedCommunity(t, db, &models.Community{Name: "hot"})

	const workers = 8
	var wg sync.WaitGroup
	results := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			userID := string(rune('a' + i))
			_, err := repo.Record(context.Background(), recordInput(userID, c.ID, baseTime))
			results <- err
		}(i)
	}
	wg.Wait()
	close(results)

	succeeded := 0
	for err := range results {
		if err == nil {
			succeeded++
			continue
		}
		var conflict *CooldownConflictError
		assert.True(t, errors.As(err, &conflict), "unexpected error: %v", err)
	}
	assert.Equal(t, 1, succeeded)

	var stored models.Community
	require.NoError(t, db.First(&stored, c.ID).Error)
	assert.Equal(t, int64(1), stored.PromoteCount)
}

func TestPromotionRepository_CountAndLatestPerCommunity(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewPromotionRepository(db)
	ctx := context.Background()
	a := testutil.SeedCommunity(t, db, &models.Community{Name: "a"})
	b := testutil.SeedCommunity(t, db, &models.Community{Name: "b"})

	events := []models.PromotionEvent{
		{UserID: "u1", CommunityID: a.ID, PromotedAt: baseTime.Add(-30 * time.Hour)},
		{UserID: "u1", CommunityID: a.ID, PromotedAt: baseTime.Add(-3 * time.Hour)},
		{UserID: "u1", CommunityID: b.ID, PromotedAt: baseTime.Add(-1 * time.Hour)},
		{UserID: "u2", CommunityID: b.ID, PromotedAt: baseTime.Add(-26 * time.Hour)},
	}
	require.NoError(t, db.Create(&events).Error)

	n, err := repo.CountByUserSince(ctx, "u1", baseTime.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	latest, err := repo.LatestPerCommunity(ctx)
	require.NoError(t, err)
	require.Len(t, latest, 2)
	assert.Equal(t, b.ID, latest[0].CommunityID)
	assert.True(t, latest[0].PromotedAt.Equal(baseTime.Add(-1*time.Hour)))
	assert.Equal(t, a.ID, latest[1].CommunityID)
	assert.True(t, latest[1].PromotedAt.Equal(baseTime.Add(-3*time.Hour)))
}
