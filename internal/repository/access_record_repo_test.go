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

func TestAccessRecordRepositoryPatchExit(t *testing.T) {
	db := setupTestDB(t)
	repo := NewAccessRecordRepository(db)
	ctx := context.Background()
	exit := time.Date(2024, 5, 10, 15, 0, 0, 0, time.UTC)

	require.NoError(t, repo.Create(ctx, &models.AccessRecord{ID: "a-1", StudentID: "s-1", Unit: "north", EntryTime: exit.Add(-6 * time.Hour)}))
	require.NoError(t, repo.PatchExit(ctx, "north", "a-1", exit, "Marta"))

	record, err := repo.GetByID(ctx, "north", "a-1")
	require.NoError(t, err)
	require.NotNil(t, record.ExitTime)
	require.True(t, exit.Equal(*record.ExitTime))
	require.Equal(t, "Marta", record.GatekeeperName)

	err = repo.PatchExit(ctx, "north", "missing", exit, "Marta")
	require.True(t, errors.Is(err, gorm.ErrRecordNotFound))

	err = repo.PatchExit(ctx, "south", "a-1", exit, "João")
	require.True(t, errors.Is(err, gorm.ErrRecordNotFound))
}
