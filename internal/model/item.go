// Package model defines the core data structures shared by the moderation packages.
package model

import (
	"fmt"
	"math"
	"time"
)

// ItemID identifies a submission. It is the filename stem of the blob.
type ItemID string

type Coordinate struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Truncate6 cuts v down to 6 decimal places by flooring after scaling,
// so negative values move away from zero (-0.0000009 becomes -0.000001).
func Truncate6(v float64) float64 {
	return math.Floor(v*1e6) / 1e6
}

// Truncate returns c with both fields passed through Truncate6.
// Truncation is not idempotent under float64 arithmetic, so apply it once.
func (c Coordinate) Truncate() Coordinate {
	return Coordinate{Lat: Truncate6(c.Lat), Lng: Truncate6(c.Lng)}
}

func (c Coordinate) Validate() error {
	if err := checkRange("lat", c.Lat, 90); err != nil {
		return err
	}
	return checkRange("lng", c.Lng, 180)
}

func (c Coordinate) String() string {
	return fmt.Sprintf("%g, %g", c.Lat, c.Lng)
}

func checkRange(field string, v, limit float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return &ValidationError{Field: field, Value: v, Reason: "not a finite number"}
	}
	if v < -limit || v > limit {
		return &ValidationError{Field: field, Value: v, Reason: fmt.Sprintf("outside [-%g, %g]", limit, limit)}
	}
	return nil
}

// ValidationError reports a coordinate that was rejected before any side effect.
type ValidationError struct {
	Field  string
	Value  float64
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s %v: %s", e.Field, e.Value, e.Reason)
}

type PendingItem struct {
	ID ItemID `json:"id"`
	Coordinate
}

type PublishedItem struct {
	ID ItemID `json:"id"`
	Coordinate
	PublishedAt time.Time `json:"published_at"`
}
