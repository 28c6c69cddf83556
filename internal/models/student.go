package models

import "time"

// Student is a learner enrolled in a unit. Enrolment owns the record; the gate only reads it.
type Student struct {
	ID          string    `gorm:"primaryKey;size:64" json:"id"`
	Unit        string    `gorm:"column:unit;size:64;not null;index:idx_students_unit_code,priority:1" json:"unit"`
	Code        string    `gorm:"size:64;index:idx_students_unit_code,priority:2" json:"code"`
	Name        string    `gorm:"size:255;not null" json:"name"`
	PhotoURL    string    `gorm:"size:512" json:"photo_url"`
	GradeLevel  string    `gorm:"size:64" json:"grade_level"`
	SchoolClass string    `gorm:"size:64" json:"school_class"`
	Shift       string    `gorm:"size:32" json:"shift"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// BelongsTo reports whether the student is enrolled in the given unit.
func (s Student) BelongsTo(unit string) bool {
	return unit != "" && s.Unit == unit
}
