// Package model defines domain entities for the application.
package model

import (
	"strings"
	"time"
)

// LockState is the derived visibility state of a capsule.
// It is never stored; see ResolveLockState.
type LockState string

const (
	LockStateLocked   LockState = "locked"
	LockStateUnlocked LockState = "unlocked"
)

// Wire status strings used by the mobile client.
const (
	StatusOpen   = "aberta"
	StatusClosed = "fechada"
)

// ResolveLockState computes a capsule's lock state from its open date.
// A capsule is unlocked once now reaches openDate (inclusive).
func ResolveLockState(openDate, now time.Time) LockState {
	if now.Before(openDate) {
		return LockStateLocked
	}
	return LockStateUnlocked
}

// IsLocked reports whether the state hides capsule content.
func (s LockState) IsLocked() bool {
	return s == LockStateLocked
}

// Status returns the wire status string for the lock state.
func (s LockState) Status() string {
	if s == LockStateUnlocked {
		return StatusOpen
	}
	return StatusClosed
}

// Category classifies a capsule.
type Category string

const (
	CategoryPersonal Category = "pessoal"
	CategoryFamily   Category = "familia"
	CategoryWork     Category = "trabalho"
	CategoryGoal     Category = "meta"
	CategoryTravel   Category = "viagem"
)

// Categories lists every valid category in display order.
var Categories = []Category{
	CategoryPersonal,
	CategoryFamily,
	CategoryWork,
	CategoryGoal,
	CategoryTravel,
}

// categoryAliases maps English names onto the stored values.
var categoryAliases = map[string]Category{
	"personal": CategoryPersonal,
	"family":   CategoryFamily,
	"work":     CategoryWork,
	"goal":     CategoryGoal,
	"travel":   CategoryTravel,
}

// IsValid checks if the category is one of the fixed enumeration.
func (c Category) IsValid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// ParseCategory normalizes a category name.
// Empty input yields CategoryPersonal; unknown input returns ok=false.
func ParseCategory(raw string) (Category, bool) {
	name := strings.ToLower(strings.TrimSpace(raw))
	if name == "" {
		return CategoryPersonal, true
	}
	if alias, found := categoryAliases[name]; found {
		return alias, true
	}
	c := Category(name)
	return c, c.IsValid()
}

// Capsule is a user-owned note that stays hidden until its open date.
type Capsule struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"owner_id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	OpenDate  time.Time `json:"open_date"`
	Category  Category  `json:"category"`
	Image     *string   `json:"image,omitempty"`
	Audio     *string   `json:"audio,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// LockState resolves the capsule's state at the given instant.
func (c *Capsule) LockState(now time.Time) LockState {
	return ResolveLockState(c.OpenDate, now)
}

// MediaRefs returns the non-empty media references of the capsule.
func (c *Capsule) MediaRefs() []string {
	refs := make([]string, 0, 2)
	if c.Image != nil && *c.Image != "" {
		refs = append(refs, *c.Image)
	}
	if c.Audio != nil && *c.Audio != "" {
		refs = append(refs, *c.Audio)
	}
	return refs
}

// HasMedia reports whether ref is one of the capsule's media references.
func (c *Capsule) HasMedia(ref string) bool {
	for _, r := range c.MediaRefs() {
		if r == ref {
			return true
		}
	}
	return false
}
