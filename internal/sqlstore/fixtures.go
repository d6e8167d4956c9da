package sqlstore

import (
	"context"
	_ "embed"
	"fmt"
	"slices"

	"gopkg.in/yaml.v3"
)

//go:embed demo.yaml
var demoYAML []byte

// seedOrder lists the CRM tables parents first so foreign keys resolve.
var seedOrder = []string{"accounts", "contacts", "visits", "products"}

// Fixtures maps table names to the rows to insert.
type Fixtures map[string][]map[string]any

// ParseFixtures decodes a YAML document of the form
//
//	accounts:
//	  - {id: a1, user_id: u1, name: Rossi}
func ParseFixtures(data []byte) (Fixtures, error) {
	var f Fixtures
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse fixtures: %w", err)
	}
	return f, nil
}

// DemoFixtures returns the embedded demonstration data set: two sales
// representatives (u1, u2) with accounts, contacts and visits, plus a shared
// product catalog.
func DemoFixtures() Fixtures {
	f, err := ParseFixtures(demoYAML)
	if err != nil {
		panic(fmt.Sprintf("sqlstore: embedded demo fixtures: %v", err))
	}
	return f
}

// SeedFixtures inserts every table of f. Known CRM tables go first in
// dependency order, others follow alphabetically.
func (s *SQLite) SeedFixtures(ctx context.Context, f Fixtures) error {
	var rest []string
	for table := range f {
		if !slices.Contains(seedOrder, table) {
			rest = append(rest, table)
		}
	}
	slices.Sort(rest)

	for _, table := range append(slices.Clone(seedOrder), rest...) {
		rows, ok := f[table]
		if !ok {
			continue
		}
		if err := s.Seed(ctx, table, rows); err != nil {
			return err
		}
	}
	return nil
}
