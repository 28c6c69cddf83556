package service

import "strings"

// Role is the operator role carried by the session token.
type Role string

// Operator roles.
const (
	RoleGatekeeper  Role = "gatekeeper"
	RoleStaff       Role = "staff"
	RoleCoordinator Role = "coordinator"
	RoleStudent     Role = "student"
)

// Session is the operator context every gate and registry write runs under.
type Session struct {
	OperatorName string
	Unit         string
	Role         Role
	UserID       string
}

// NewSession validates and normalises an operator session. Operator name and unit are mandatory.
func NewSession(operatorName, unit, role, userID string) (Session, error) {
	session := Session{
		OperatorName: strings.TrimSpace(operatorName),
		Unit:         strings.TrimSpace(unit),
		Role:         Role(strings.ToLower(strings.TrimSpace(role))),
		UserID:       strings.TrimSpace(userID),
	}
	if err := session.Validate(); err != nil {
		return Session{}, err
	}
	return session, nil
}

// Validate reports ErrSessionRequired when the session cannot scope a write.
func (s Session) Validate() error {
	if s.OperatorName == "" || s.Unit == "" {
		return ErrSessionRequired
	}
	return nil
}

// IsStaff reports whether the session may hand items over and manage the registry.
func (s Session) IsStaff() bool {
	return s.Role == RoleStaff || s.Role == RoleCoordinator
}
