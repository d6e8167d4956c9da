package schema

// Description is the caller-facing view of a registry. Encrypted fields are
// omitted.
type Description struct {
	Tables                []TableDescription `json:"tables" yaml:"tables"`
	OwnerField            string             `json:"ownerField" yaml:"ownerField"`
	Operators             []string           `json:"operators" yaml:"operators"`
	Aggregations          []string           `json:"aggregations" yaml:"aggregations"`
	CaseInsensitiveFields []string           `json:"caseInsensitiveFields" yaml:"caseInsensitiveFields"`
}

// TableDescription describes one table.
type TableDescription struct {
	Name         string   `json:"name" yaml:"name"`
	Fields       []string `json:"fields" yaml:"fields"`
	TenantScoped bool     `json:"tenantScoped" yaml:"tenantScoped"`
}

// Describe returns the registry contents in declaration order.
func (r *Registry) Describe() Description {
	d := Description{
		OwnerField:            r.OwnerField(),
		Operators:             r.Operators(),
		Aggregations:          r.Aggregations(),
		CaseInsensitiveFields: r.CaseInsensitiveFields(),
	}
	for _, name := range r.Tables() {
		d.Tables = append(d.Tables, TableDescription{
			Name:         name,
			Fields:       r.FieldsOf(name),
			TenantScoped: r.IsTenantScoped(name),
		})
	}
	return d
}
