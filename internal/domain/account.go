package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Role is an account's authorization level.
type Role string

const (
	RoleAdmin Role = "ADMIN"
	RoleUser  Role = "USER"
)

// Account is a login identity. GuideID links it to at most one guide profile.
type Account struct {
	ID        uuid.UUID  `json:"id"`
	Email     string     `json:"email"`
	Name      string     `json:"name"`
	Role      Role       `json:"role"`
	Active    bool       `json:"active"`
	GuideID   *uuid.UUID `json:"guide_id,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// LinkedTo reports whether the account references the given guide.
func (a Account) LinkedTo(guideID uuid.UUID) bool {
	return a.GuideID != nil && *a.GuideID == guideID
}

// AccountHistory counts the rows that reference an account.
// An account with any history is anonymized instead of deleted.
type AccountHistory struct {
	Trips     int
	Invites   int
	AuditLogs int
}

// Empty reports whether nothing references the account.
func (h AccountHistory) Empty() bool {
	return h.Trips == 0 && h.Invites == 0 && h.AuditLogs == 0
}

// PlaceholderEmail returns the deterministic address used to free an email
// held by an account that must be kept for referential integrity.
func PlaceholderEmail(accountID uuid.UUID) string {
	return fmt.Sprintf("placeholder_%s@removed.local", accountID)
}

// Actor is the authenticated caller of a service operation.
type Actor struct {
	AccountID uuid.UUID
	Role      Role
	GuideID   *uuid.UUID
}

// IsAdmin reports whether the actor holds the ADMIN role.
func (a Actor) IsAdmin() bool { return a.Role == RoleAdmin }
