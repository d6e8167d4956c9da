package schema

import (
	"fmt"
	"slices"
	"strings"
)

// Table describes one queryable table.
type Table struct {
	Name         string
	Fields       []string // declaration order, encrypted fields included
	TenantScoped bool

	fieldSet map[string]struct{}
}

// Registry is the immutable set of tables, operators and aggregation
// functions the engine accepts.
type Registry struct {
	tables            map[string]*Table
	tableOrder        []string
	operators         []string
	aggregations      []string
	ownerField        string
	encryptedSuffixes []string
	caseInsensitive   []string
}

// IsValidTable reports whether table is registered.
func (r *Registry) IsValidTable(table string) bool {
	_, ok := r.tables[table]
	return ok
}

// Table returns the table definition, or nil if it is not registered.
func (r *Registry) Table(table string) *Table {
	return r.tables[table]
}

// Tables returns the registered table names in declaration order.
func (r *Registry) Tables() []string {
	return slices.Clone(r.tableOrder)
}

// FieldsOf returns the queryable fields of table in declaration order.
// Encrypted fields are never returned. Unknown tables yield nil.
func (r *Registry) FieldsOf(table string) []string {
	t, ok := r.tables[table]
	if !ok {
		return nil
	}
	fields := make([]string, 0, len(t.Fields))
	for _, f := range t.Fields {
		if !r.IsEncryptedField(f) {
			fields = append(fields, f)
		}
	}
	return fields
}

// IsValidField reports whether field is a queryable column of table.
// Fields carrying an encrypted-data suffix are rejected unconditionally.
func (r *Registry) IsValidField(table, field string) bool {
	t, ok := r.tables[table]
	if !ok {
		return false
	}
	if r.IsEncryptedField(field) {
		return false
	}
	_, ok = t.fieldSet[field]
	return ok
}

// IsEncryptedField reports whether the field name carries an encrypted-data suffix.
func (r *Registry) IsEncryptedField(field string) bool {
	for _, suffix := range r.encryptedSuffixes {
		if strings.HasSuffix(field, suffix) {
			return true
		}
	}
	return false
}

// IsValidOperator reports whether op is a registered filter operator.
func (r *Registry) IsValidOperator(op string) bool {
	return slices.Contains(r.operators, op)
}

// Operators returns the registered filter operators.
func (r *Registry) Operators() []string {
	return slices.Clone(r.operators)
}

// IsValidAggregation reports whether fn is a registered aggregation function.
func (r *Registry) IsValidAggregation(fn string) bool {
	return slices.Contains(r.aggregations, fn)
}

// Aggregations returns the registered aggregation functions.
func (r *Registry) Aggregations() []string {
	return slices.Clone(r.aggregations)
}

// IsTenantScoped reports whether rows of table belong to a single principal.
func (r *Registry) IsTenantScoped(table string) bool {
	t, ok := r.tables[table]
	return ok && t.TenantScoped
}

// OwnerField is the column binding tenant-scoped rows to their principal.
func (r *Registry) OwnerField() string {
	return r.ownerField
}

// CaseInsensitiveFields returns the default set of textual fields compared
// case-insensitively by eq and like.
func (r *Registry) CaseInsensitiveFields() []string {
	return slices.Clone(r.caseInsensitive)
}

// SplitField splits a qualified "table.field" reference.
// ok is false unless the reference has exactly two non-empty parts.
func SplitField(ref string) (table, field string, ok bool) {
	table, field, found := strings.Cut(ref, ".")
	if !found || table == "" || field == "" || strings.Contains(field, ".") {
		return "", "", false
	}
	return table, field, true
}

// QualifiedField joins table and field into a "table.field" reference.
func QualifiedField(table, field string) string {
	return table + "." + field
}

func newTable(name string, fields []string, tenantScoped bool) (*Table, error) {
	t := &Table{
		Name:         name,
		Fields:       fields,
		TenantScoped: tenantScoped,
		fieldSet:     make(map[string]struct{}, len(fields)),
	}
	for _, f := range fields {
		if _, dup := t.fieldSet[f]; dup {
			return nil, fmt.Errorf("table %s: duplicate field %q", name, f)
		}
		t.fieldSet[f] = struct{}{}
	}
	return t, nil
}
