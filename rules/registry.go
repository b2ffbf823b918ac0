package rules

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/warp/payroll-engine/generic"
)

// =============================================================================
// REGISTRY - Country code -> rule table
// =============================================================================

// Registry resolves rule tables by country code. Tables are validated on
// Register, so every table a caller can obtain satisfies the bracket
// invariants and the tax resolver never has to guess.
//
// Safe for concurrent use: lookups happen per request, registrations happen
// at startup and when an administrator updates a table.
type Registry struct {
	mu     sync.RWMutex
	tables map[string]CountryRuleTable
}

// NewRegistry creates a registry pre-loaded with tables.
func NewRegistry(tables ...CountryRuleTable) (*Registry, error) {
	r := &Registry{tables: make(map[string]CountryRuleTable)}
	for _, t := range tables {
		if err := r.Register(t); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// DefaultRegistry returns a registry holding every built-in table.
func DefaultRegistry() *Registry {
	r, err := NewRegistry(Chile())
	if err != nil {
		panic(fmt.Sprintf("built-in rule table is invalid: %v", err))
	}
	return r
}

// Register validates and stores (or replaces) a table.
func (r *Registry) Register(t CountryRuleTable) error {
	t.Code = NormalizeCode(t.Code)
	if err := t.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.tables[t.Code] = t.Clone()
	return nil
}

// Lookup returns a copy of the table for code.
func (r *Registry) Lookup(code string) (CountryRuleTable, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.tables[NormalizeCode(code)]
	if !ok {
		return CountryRuleTable{}, fmt.Errorf("%w: %q", generic.ErrCountryNotFound, code)
	}
	return t.Clone(), nil
}

// Codes returns the registered country codes, sorted.
func (r *Registry) Codes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	codes := make([]string, 0, len(r.tables))
	for code := range r.tables {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// NormalizeCode upper-cases and trims a country code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Tables returns copies of every registered table ordered by code.
func (r *Registry) Tables() []CountryRuleTable {
	codes := r.Codes()

	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]CountryRuleTable, 0, len(codes))
	for _, code := range codes {
		if t, ok := r.tables[code]; ok {
			out = append(out, t.Clone())
		}
	}
	return out
}

// =============================================================================
// PERSISTENCE
// =============================================================================

// Store persists rule tables, one row per country.
type Store interface {
	ListRuleTables(ctx context.Context) ([]CountryRuleTable, error)
	SaveRuleTable(ctx context.Context, t CountryRuleTable) error
}

// LoadRegistry builds a registry from the stored tables. Each seed table
// whose country is not stored yet is saved first, so a fresh database
// starts with the built-in countries and an edited row is never
// overwritten.
func LoadRegistry(ctx context.Context, store Store, seeds ...CountryRuleTable) (*Registry, error) {
	stored, err := store.ListRuleTables(ctx)
	if err != nil {
		return nil, fmt.Errorf("load rule tables: %w", err)
	}
	have := make(map[string]bool, len(stored))
	for _, t := range stored {
		have[NormalizeCode(t.Code)] = true
	}
	for _, seed := range seeds {
		seed.Code = NormalizeCode(seed.Code)
		if have[seed.Code] {
			continue
		}
		if err := seed.Validate(); err != nil {
			return nil, err
		}
		if err := store.SaveRuleTable(ctx, seed); err != nil {
			return nil, fmt.Errorf("seed rule table %s: %w", seed.Code, err)
		}
		stored = append(stored, seed)
	}
	return NewRegistry(stored...)
}

// Save validates t, persists it and makes it visible to lookups.
func (r *Registry) Save(ctx context.Context, store Store, t CountryRuleTable) (CountryRuleTable, error) {
	t.Code = NormalizeCode(t.Code)
	if err := t.Validate(); err != nil {
		return CountryRuleTable{}, err
	}
	if err := store.SaveRuleTable(ctx, t); err != nil {
		return CountryRuleTable{}, err
	}
	if err := r.Register(t); err != nil {
		return CountryRuleTable{}, err
	}
	return t.Clone(), nil
}
