package plan

// Operator is a filter comparison operator.
type Operator string

const (
	OpEq    Operator = "eq"
	OpNeq   Operator = "neq"
	OpGt    Operator = "gt"
	OpGte   Operator = "gte"
	OpLt    Operator = "lt"
	OpLte   Operator = "lte"
	OpLike  Operator = "like"
	OpIn    Operator = "in"
	OpNotIn Operator = "not_in"
)

// IsSetOperator reports whether op takes an array or subquery value.
func (op Operator) IsSetOperator() bool {
	return op == OpIn || op == OpNotIn
}

// IsComparison reports whether op compares a value against a single scalar
// with equality or ordering semantics.
func (op Operator) IsComparison() bool {
	switch op {
	case OpEq, OpNeq, OpGt, OpGte, OpLt, OpLte:
		return true
	}
	return false
}

// AggFunc is an aggregation function name.
type AggFunc string

const (
	AggCount AggFunc = "count"
	AggSum   AggFunc = "sum"
	AggAvg   AggFunc = "avg"
	AggMin   AggFunc = "min"
	AggMax   AggFunc = "max"
)

// AggFuncs lists every aggregation function in canonical order.
var AggFuncs = []AggFunc{AggCount, AggSum, AggAvg, AggMin, AggMax}

// IsAggFuncName reports whether name is one of the aggregation function names.
// Sort and having fields may use these as virtual fields.
func IsAggFuncName(name string) bool {
	for _, fn := range AggFuncs {
		if string(fn) == name {
			return true
		}
	}
	return false
}

// RequiresField reports whether fn reduces a column and therefore needs Field.
func (fn AggFunc) RequiresField() bool {
	return fn != AggCount
}

// JoinType is the join strategy between two plan tables.
type JoinType string

const (
	JoinInner JoinType = "inner"
	JoinLeft  JoinType = "left"
)

// SortOrder is asc or desc.
type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

// QueryPlan is the declarative description of one read query.
type QueryPlan struct {
	Intent      string        `json:"intent,omitempty" yaml:"intent,omitempty"`
	Tables      []string      `json:"tables" yaml:"tables"`
	Filters     []FieldFilter `json:"filters" yaml:"filters"`
	Joins       []TableJoin   `json:"joins,omitempty" yaml:"joins,omitempty"`
	Aggregation *Aggregation  `json:"aggregation,omitempty" yaml:"aggregation,omitempty"`
	Sort        *SortConfig   `json:"sort,omitempty" yaml:"sort,omitempty"`
	Limit       *int          `json:"limit,omitempty" yaml:"limit,omitempty"`
}

// PrimaryTable is the first table of the plan, the one rows are returned for.
func (p *QueryPlan) PrimaryTable() string {
	if len(p.Tables) == 0 {
		return ""
	}
	return p.Tables[0]
}

// HasTable reports whether table is listed in the plan.
func (p *QueryPlan) HasTable(table string) bool {
	for _, t := range p.Tables {
		if t == table {
			return true
		}
	}
	return false
}

// FieldFilter restricts rows by comparing a "table.field" column with Value.
type FieldFilter struct {
	Field    string   `json:"field" yaml:"field"`
	Operator Operator `json:"operator" yaml:"operator"`
	Value    Value    `json:"value" yaml:"value"`
}

// Aggregation reduces the fetched rows to an aggregate value or grouped rows.
type Aggregation struct {
	Function AggFunc      `json:"function" yaml:"function"`
	Field    string       `json:"field,omitempty" yaml:"field,omitempty"`
	GroupBy  []string     `json:"groupBy,omitempty" yaml:"groupBy,omitempty"`
	Having   *FieldFilter `json:"having,omitempty" yaml:"having,omitempty"`
}

// TableJoin links two plan tables on fromField = toField.
type TableJoin struct {
	From      string   `json:"from" yaml:"from"`
	To        string   `json:"to" yaml:"to"`
	FromField string   `json:"fromField" yaml:"fromField"`
	ToField   string   `json:"toField" yaml:"toField"`
	Type      JoinType `json:"type" yaml:"type"`
}

// SortConfig orders the result by a column or, with an aggregation, by an
// aggregate function name.
type SortConfig struct {
	Field string    `json:"field" yaml:"field"`
	Order SortOrder `json:"order" yaml:"order"`
}

// Descending reports whether the sort order is desc.
func (s *SortConfig) Descending() bool {
	return s != nil && s.Order == SortDesc
}

// IntPtr returns a pointer to n, for building plans with a limit.
func IntPtr(n int) *int {
	return &n
}
