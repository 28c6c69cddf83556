package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-gate-api/internal/models"
)

func TestStudentRepositoryFindByUnitAndCode(t *testing.T) {
	db := setupTestDB(t)
	repo := NewStudentRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, &models.Student{ID: "s-1", Unit: "north", Code: "1001", Name: "Ana"}))
	require.NoError(t, repo.Create(ctx, &models.Student{ID: "s-2", Unit: "south", Code: "1001", Name: "Bia"}))

	student, err := repo.FindByUnitAndCode(ctx, "south", "1001")
	require.NoError(t, err)
	require.Equal(t, "s-2", student.ID)

	_, err = repo.FindByUnitAndCode(ctx, "east", "1001")
	require.True(t, errors.Is(err, gorm.ErrRecordNotFound))

	student, err = repo.GetByID(ctx, "s-1")
	require.NoError(t, err)
	require.Equal(t, "north", student.Unit)
}
