// Package domain defines the types and interfaces for the board service
package domain

import "time"

// Defaults for the board invariants, overridable via config
const (
	DefaultTTL             = 10 * time.Minute
	DefaultMaxActive       = 20
	DefaultMaxPayloadBytes = 5 << 20

	// ColorCount is the size of the client palette, colorIndex is 1..ColorCount
	ColorCount = 8
)

// Config carries the board invariants
type Config struct {
	// TTL is how long a note stays visible after creation
	TTL time.Duration

	// MaxActive bounds the number of live top-level notes
	MaxActive int

	// MaxPayloadBytes bounds a single audio payload
	MaxPayloadBytes int64
}

// Defaulted fills zero fields with the standard limits
func (c Config) Defaulted() Config {
	if c.TTL <= 0 {
		c.TTL = DefaultTTL
	}
	if c.MaxActive <= 0 {
		c.MaxActive = DefaultMaxActive
	}
	if c.MaxPayloadBytes <= 0 {
		c.MaxPayloadBytes = DefaultMaxPayloadBytes
	}
	return c
}

// Note is a live top-level audio note
// payload bytes live in the store and are fetched separately by id
type Note struct {
	ID         string
	ColorIndex int
	Format     string
	SizeBytes  int64
	OriginTag  string
	CreatedAt  time.Time
	ExpiresAt  time.Time
	Responses  []Response
}

// Response is an audio reply attached to a parent note
// responses share the parent's lifetime and carry no color
type Response struct {
	ID        string
	ParentID  string
	Format    string
	SizeBytes int64
	CreatedAt time.Time
}

// SubmitInput is a validated-at-the-edge upload
type SubmitInput struct {
	Payload   []byte
	Format    string
	OriginTag string
}
