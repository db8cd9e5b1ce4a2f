// Package copyhash matches candidate images against a catalog of known
// copyrighted images using composite perceptual hashes.
package copyhash

import (
	"context"
	"time"
)

// Default categorization thresholds, in mean differing bits per hash element.
const (
	DefaultIdentityThreshold   = 0
	DefaultSimilarityThreshold = 10
)

// Category is the three-way bucketing of a hash distance.
type Category string

const (
	CategoryIdentical Category = "identical"
	CategorySimilar   Category = "similar"
	CategoryDifferent Category = "different"
)

// Categories lists every category from closest to farthest.
var Categories = []Category{CategoryIdentical, CategorySimilar, CategoryDifferent}

// ParseCategory maps a category name to its Category.
func ParseCategory(s string) (Category, error) {
	for _, c := range Categories {
		if string(c) == s {
			return c, nil
		}
	}
	return "", newError(ErrValidation, "unknown category %q", s)
}

// ComparePolicy decides what a COMPARE request does with a record that has
// no hash yet.
type ComparePolicy int

const (
	CompareRequireHash    ComparePolicy = iota // fail the record with status "error"
	CompareComputeMissing                      // compute the hash first, then compare
)

// HashCache abstracts persistent storage of computed composite hashes
// (SQLite, sync.Map, etc.). Implementations must be safe for concurrent use.
type HashCache interface {
	Get(ctx context.Context, key string) (string, bool)
	Set(ctx context.Context, key, value string)
}

// RecordEvent describes one record leaving the workflow.
type RecordEvent struct {
	ID       string
	Request  Request
	Status   Status
	Duration time.Duration
	Err      error // nil on success and for pass-through records
}

// Config holds the matching parameters and the dependencies injected by the consumer.
type Config struct {
	// Algorithms are the perceptual hashes making up a composite hash, in order.
	// Default: DefaultAlgorithms().
	Algorithms []Algorithm

	// IdentityThreshold and SimilarityThreshold bound the mean distance of the
	// identical and similar buckets (inclusive). IdentityThreshold must not exceed
	// SimilarityThreshold; that is the caller's responsibility.
	IdentityThreshold   int
	SimilarityThreshold int

	ComparePolicy ComparePolicy

	// Keep restricts the serialized comparison result to these categories.
	// Empty keeps every catalog entry.
	Keep []Category

	HashCache HashCache // optional
	Workers   int       // records processed concurrently (default: 1)

	// Optional callbacks for metrics/logging.
	OnRecord func(RecordEvent)
	OnPanic  func(tag string, r any)
}

// DefaultConfig returns a Config with the default thresholds and algorithms.
func DefaultConfig() Config {
	return Config{
		Algorithms:          DefaultAlgorithms(),
		IdentityThreshold:   DefaultIdentityThreshold,
		SimilarityThreshold: DefaultSimilarityThreshold,
	}
}

// defaults fills zero-value fields. Thresholds are left alone because zero is
// a meaningful threshold.
func (c *Config) defaults() {
	if len(c.Algorithms) == 0 {
		c.Algorithms = DefaultAlgorithms()
	}
	if c.Workers <= 0 {
		c.Workers = 1
	}
}
