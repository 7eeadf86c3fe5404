// Package search implements the hybrid retrieval core: filter compilation,
// semantic ranking with an in-memory fallback, and reciprocal rank fusion.
package search

import (
	"strings"

	"github.com/tramitalabs/convoca/internal/domain"
)

// Predicate evaluates one grant against a compiled filter set.
type Predicate func(*domain.Grant) bool

// Compile translates a FilterSpec into a predicate. An empty spec compiles
// to the identity predicate, so filter-only search with no filters
// degenerates to "list all" rather than an error.
func Compile(spec domain.FilterSpec) Predicate {
	if spec.IsEmpty() {
		return func(*domain.Grant) bool { return true }
	}

	var checks []Predicate

	if spec.Organization != "" {
		needle := strings.ToLower(spec.Organization)
		checks = append(checks, func(g *domain.Grant) bool {
			return strings.Contains(strings.ToLower(g.Organization), needle)
		})
	}

	if len(spec.Regions) > 0 {
		codes := make([]string, len(spec.Regions))
		for i, r := range spec.Regions {
			codes[i] = strings.ToLower(r)
		}
		// substring match tolerates the "ES213 - Bizkaia" stored form
		checks = append(checks, func(g *domain.Grant) bool {
			for _, stored := range g.Regions {
				lowered := strings.ToLower(stored)
				for _, code := range codes {
					if strings.Contains(lowered, code) {
						return true
					}
				}
			}
			return false
		})
	}

	if spec.Open != nil {
		want := *spec.Open
		checks = append(checks, func(g *domain.Grant) bool {
			return g.IsOpen == want
		})
	}

	if spec.DateFrom != nil || spec.DateTo != nil {
		from, to := spec.DateFrom, spec.DateTo
		checks = append(checks, func(g *domain.Grant) bool {
			return g.ApplicationWindowIntersects(from, to)
		})
	}

	if spec.Sector != "" {
		sector := strings.TrimSpace(spec.Sector)
		checks = append(checks, func(g *domain.Grant) bool {
			return strings.EqualFold(g.Sector, sector)
		})
	}

	return func(g *domain.Grant) bool {
		for _, check := range checks {
			if !check(g) {
				return false
			}
		}
		return true
	}
}
