package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-gate-api/internal/models"
)

func TestLostFoundRepositoryLifecycle(t *testing.T) {
	db := setupTestDB(t)
	repo := NewLostFoundRepository(db)
	ctx := context.Background()
	now := time.Date(2024, 5, 10, 9, 0, 0, 0, time.UTC)

	item := models.LostFoundItem{Unit: "north", Description: "Blue backpack", LocationFound: "Gym", CreatedBy: "Marta", Status: models.LostItemStatusActive, Timestamp: now}
	require.NoError(t, repo.Create(ctx, &item))
	require.NotEmpty(t, item.ID)

	claimant := models.Claimant{StudentID: "s-1", StudentName: "Ana", Grade: "7", Class: "B", Shift: "morning"}
	require.NoError(t, repo.Claim(ctx, "north", item.ID, claimant, now.Add(time.Hour)))

	stored, err := repo.GetByID(ctx, "north", item.ID)
	require.NoError(t, err)
	require.Equal(t, models.LostItemStatusClaimed, stored.Status)
	require.Equal(t, claimant, stored.ClaimedBy)
	require.NotNil(t, stored.ClaimedAt)
	require.Nil(t, stored.DeliveredAt)

	require.NoError(t, repo.Deliver(ctx, "north", item.ID, now.Add(2*time.Hour)))
	stored, err = repo.GetByID(ctx, "north", item.ID)
	require.NoError(t, err)
	require.Equal(t, models.LostItemStatusDelivered, stored.Status)
	require.NotNil(t, stored.DeliveredAt)
	require.Equal(t, claimant, stored.ClaimedBy, "claim fields persist after delivery")

	require.NoError(t, repo.Delete(ctx, "north", item.ID))
	err = repo.Delete(ctx, "north", item.ID)
	require.True(t, errors.Is(err, gorm.ErrRecordNotFound))
}

func TestLostFoundRepositoryListFiltersByUnitAndStatus(t *testing.T) {
	db := setupTestDB(t)
	repo := NewLostFoundRepository(db)
	ctx := context.Background()
	now := time.Date(2024, 5, 10, 9, 0, 0, 0, time.UTC)

	require.NoError(t, repo.Create(ctx, &models.LostFoundItem{ID: "i-1", Unit: "north", Description: "Cap", LocationFound: "Hall", CreatedBy: "Marta", Status: models.LostItemStatusActive, Timestamp: now}))
	require.NoError(t, repo.Create(ctx, &models.LostFoundItem{ID: "i-2", Unit: "north", Description: "Pen", LocationFound: "Lab", CreatedBy: "Marta", Status: models.LostItemStatusDelivered, Timestamp: now.Add(time.Minute)}))
	require.NoError(t, repo.Create(ctx, &models.LostFoundItem{ID: "i-3", Unit: "south", Description: "Coat", LocationFound: "Hall", CreatedBy: "Rui", Status: models.LostItemStatusActive, Timestamp: now}))

	all, err := repo.List(ctx, LostFoundFilter{Unit: "north"})
	require.NoError(t, err)
	require.Len(t, all, 2)
	require.Equal(t, "i-2", all[0].ID)

	active, err := repo.List(ctx, LostFoundFilter{Unit: "north", Status: models.LostItemStatusActive})
	require.NoError(t, err)
	require.Len(t, active, 1)
	require.Equal(t, "i-1", active[0].ID)

	err = repo.Claim(ctx, "south", "i-1", models.Claimant{StudentID: "s-9"}, now)
	require.True(t, errors.Is(err, gorm.ErrRecordNotFound))
}
