// File: internal/common/model.go
package common

import (
	"math"
	"strings"
	"time"
)

// Role is the coarse permission level of a user.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Actor is the caller-supplied identity an operation runs on behalf of.
// The zero value is an anonymous viewer.
type Actor struct {
	Email string
	Role  Role
}

// IsAnonymous reports whether no identity was supplied.
func (a Actor) IsAnonymous() bool { return a.Email == "" }

// IsAdmin reports whether the actor holds the admin role.
func (a Actor) IsAdmin() bool { return a.Role == RoleAdmin }

// Owns reports whether the actor is the owner identified by email.
func (a Actor) Owns(email string) bool {
	return !a.IsAnonymous() && strings.EqualFold(a.Email, email)
}

// NormalizeEmail trims and lower-cases an email so it can serve as a key.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// RoundRating rounds an average to one decimal place.
func RoundRating(avg float64) float64 {
	if math.IsNaN(avg) {
		return 0
	}
	return math.Round(avg*10) / 10
}

// Clock supplies the current time. Services take one so expiry can be tested.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock in UTC.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC().Truncate(time.Microsecond) }

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }
