package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Rank is a guide's pay tier. Ranks are ordered TRAINEE < JUNIOR < INTERMEDIATE < SENIOR.
type Rank string

const (
	RankTrainee      Rank = "TRAINEE"
	RankJunior       Rank = "JUNIOR"
	RankIntermediate Rank = "INTERMEDIATE"
	RankSenior       Rank = "SENIOR"
)

// Ranks lists every rank from lowest to highest.
var Ranks = []Rank{RankTrainee, RankJunior, RankIntermediate, RankSenior}

// ParseRank accepts a rank name in any case.
func ParseRank(s string) (Rank, error) {
	r := Rank(strings.ToUpper(strings.TrimSpace(s)))
	if r.Level() == 0 {
		return "", Validationf("unknown rank %q", s)
	}
	return r, nil
}

// Level returns the 1-based position of the rank, or 0 for an unknown rank.
func (r Rank) Level() int {
	for i, known := range Ranks {
		if r == known {
			return i + 1
		}
	}
	return 0
}

// CanLeadTrips reports whether the rank is eligible for the trip-leader fee.
func (r Rank) CanLeadTrips() bool {
	return r == RankSenior || r == RankIntermediate
}

// Guide is a person who leads or assists trips.
// Email is nil when the guide has no login address; among active guides it is unique.
type Guide struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Rank      Rank      `json:"rank"`
	Active    bool      `json:"active"`
	Email     *string   `json:"email,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HasEmail reports whether the guide currently holds an email address.
func (g Guide) HasEmail() bool {
	return g.Email != nil && *g.Email != ""
}

// NormalizeEmail trims and lower-cases an address. Blank input yields "".
func NormalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// GuideInput carries the admin-editable fields of a guide.
// An empty Email means the guide has no address.
type GuideInput struct {
	Name   string
	Rank   Rank
	Email  string
	Active bool
}
