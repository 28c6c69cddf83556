package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/gema-gate-api/internal/models"
)

// StudentRepository provides read access to enrolled students.
type StudentRepository interface {
	GetByID(ctx context.Context, id string) (models.Student, error)
	FindByUnitAndCode(ctx context.Context, unit, code string) (models.Student, error)
	Create(ctx context.Context, student *models.Student) error
}

type studentRepository struct {
	db *gorm.DB
}

// NewStudentRepository constructs a student repository.
func NewStudentRepository(db *gorm.DB) StudentRepository {
	return &studentRepository{db: db}
}

// GetByID looks a student up by primary key regardless of unit; callers check the unit.
func (r *studentRepository) GetByID(ctx context.Context, id string) (models.Student, error) {
	var student models.Student
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&student).Error; err != nil {
		return models.Student{}, err
	}

	return student, nil
}

func (r *studentRepository) FindByUnitAndCode(ctx context.Context, unit, code string) (models.Student, error) {
	var student models.Student
	if err := r.db.WithContext(ctx).
		Where("unit = ? AND code = ?", unit, code).
		First(&student).Error; err != nil {
		return models.Student{}, err
	}

	return student, nil
}

func (r *studentRepository) Create(ctx context.Context, student *models.Student) error {
	return r.db.WithContext(ctx).Create(student).Error
}
