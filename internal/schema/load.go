package schema

import (
	_ "embed"
	"fmt"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
)

var (
	//go:embed definitions.cue
	definitionsSource []byte

	//go:embed registry.cue
	registrySource []byte
)

// LoadError reports a registry document that failed to compile or validate.
type LoadError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

type registryDoc struct {
	OwnerField        string   `json:"owner_field"`
	Operators         []string `json:"operators"`
	Aggregations      []string `json:"aggregations"`
	EncryptedSuffixes []string `json:"encrypted_suffixes"`
	CaseInsensitive   []string `json:"case_insensitive"`
}

type tableDoc struct {
	TenantScoped bool     `json:"tenant_scoped"`
	Fields       []string `json:"fields"`
}

var (
	defaultOnce     sync.Once
	defaultRegistry *Registry
	defaultErr      error
)

// Default returns the registry compiled from the embedded registry.cue.
// It is compiled once per process.
func Default() *Registry {
	defaultOnce.Do(func() {
		defaultRegistry, defaultErr = Load("registry.cue", registrySource)
	})
	if defaultErr != nil {
		panic(fmt.Sprintf("schema: embedded registry is invalid: %v", defaultErr))
	}
	return defaultRegistry
}

// Load compiles a CUE registry document. The document must satisfy the
// #Registry definition and be fully concrete.
func Load(filename string, src []byte) (*Registry, error) {
	ctx := cuecontext.New()
	defs := ctx.CompileBytes(definitionsSource, cue.Filename("definitions.cue"))
	if err := defs.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	doc := ctx.CompileBytes(src, cue.Filename(filename))
	if err := doc.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	v := defs.LookupPath(cue.ParsePath("#Registry")).Unify(doc)
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, formatCUEError(err)
	}

	var rd registryDoc
	if err := v.Decode(&rd); err != nil {
		return nil, formatCUEError(err)
	}
	if rd.OwnerField == "" {
		return nil, &LoadError{Field: "owner_field", Message: "owner_field is required", Pos: v.Pos()}
	}

	reg := &Registry{
		tables:            make(map[string]*Table),
		operators:         rd.Operators,
		aggregations:      rd.Aggregations,
		ownerField:        rd.OwnerField,
		encryptedSuffixes: rd.EncryptedSuffixes,
		caseInsensitive:   rd.CaseInsensitive,
	}

	tablesVal := v.LookupPath(cue.ParsePath("tables"))
	if !tablesVal.Exists() {
		return nil, &LoadError{Field: "tables", Message: "at least one table is required", Pos: v.Pos()}
	}
	iter, err := tablesVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	for iter.Next() {
		name := iter.Label()
		var td tableDoc
		if err := iter.Value().Decode(&td); err != nil {
			return nil, formatCUEError(err)
		}
		t, err := newTable(name, td.Fields, td.TenantScoped)
		if err != nil {
			return nil, &LoadError{Field: "tables." + name, Message: err.Error(), Pos: iter.Value().Pos()}
		}
		if t.TenantScoped {
			if _, ok := t.fieldSet[reg.ownerField]; !ok {
				return nil, &LoadError{
					Field:   "tables." + name,
					Message: fmt.Sprintf("tenant-scoped table must declare owner field %q", reg.ownerField),
					Pos:     iter.Value().Pos(),
				}
			}
		}
		reg.tables[name] = t
		reg.tableOrder = append(reg.tableOrder, name)
	}
	if len(reg.tableOrder) == 0 {
		return nil, &LoadError{Field: "tables", Message: "at least one table is required", Pos: tablesVal.Pos()}
	}

	return reg, nil
}

// formatCUEError keeps the first CUE error together with its position.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	firstErr := errs[0]
	positions := errors.Positions(firstErr)
	if len(positions) > 0 {
		return &LoadError{
			Field:   "cue",
			Message: firstErr.Error(),
			Pos:     positions[0],
		}
	}

	return err
}
