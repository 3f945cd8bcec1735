package entity

import "github.com/google/uuid"

// User is the credit and capability boundary the eligibility evaluator
// checks against. A zero credit balance makes a user ineligible regardless
// of capability flags.
type User struct {
	ID       uuid.UUID
	Credits  int64
	Settings UserSettings
	// Preferences is a free-form bag; the scheduler never reads it.
	Preferences map[string]any
}

// UserSettings carries the two capability flags. Both default true so a
// freshly created user can claim either service- or user-mode tasks.
type UserSettings struct {
	AllowsCloud bool
	AllowsLocal bool
}

// HasCredits reports whether the user's balance permits a new claim.
func (u *User) HasCredits() bool {
	return u.Credits > 0
}

// CapabilityFlag returns the flag relevant to the given claim mode.
func (u *User) CapabilityFlag(serviceMode bool) bool {
	if serviceMode {
		return u.Settings.AllowsCloud
	}
	return u.Settings.AllowsLocal
}

// DefaultUserSettings returns the defaults for a new user.
func DefaultUserSettings() UserSettings {
	return UserSettings{AllowsCloud: true, AllowsLocal: true}
}
