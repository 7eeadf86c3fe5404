package domain

import (
	"fmt"
	"time"
)

// Grant represents a single convocatoria as published by the ingestion
// pipeline. The core reads grants; it never creates or mutates them.
type Grant struct {
	ID               int64
	BDNSCode         string // official grant number, unique and stable
	Organization     string
	IsOpen           bool
	Regions          []string // stored as "ES213 - Bizkaia" style strings
	BeneficiaryTypes []string
	ApplicationStart *time.Time
	ApplicationEnd   *time.Time
	Budget           *float64
	Sector           string
	Title            string
	Summary          string
	PublishedAt      time.Time
}

// GrantEmbedding pairs a grant with the vector computed from its summary.
// Not every grant has one; the ingestion pipeline fills them in over time.
type GrantEmbedding struct {
	GrantID   int64
	Embedding []float32
	ModelName string
}

// ValidateGrantEmbedding checks an embedding row against the configured
// dimension. Rows that fail are skipped by the search path, never fatal.
func ValidateGrantEmbedding(e *GrantEmbedding, dimensions int) error {
	if e == nil {
		return fmt.Errorf("grant embedding cannot be nil")
	}
	if e.GrantID == 0 {
		return fmt.Errorf("grant embedding requires a grant ID")
	}
	if len(e.Embedding) != dimensions {
		return fmt.Errorf("grant %d: embedding has %d dimensions, expected %d", e.GrantID, len(e.Embedding), dimensions)
	}
	return nil
}

// ApplicationWindowIntersects reports whether the grant's application window
// overlaps [from, to]. Nil bounds on either side are treated as open-ended.
func (g *Grant) ApplicationWindowIntersects(from, to *time.Time) bool {
	if from != nil && g.ApplicationEnd != nil && g.ApplicationEnd.Before(*from) {
		return false
	}
	if to != nil && g.ApplicationStart != nil && g.ApplicationStart.After(*to) {
		return false
	}
	return true
}
