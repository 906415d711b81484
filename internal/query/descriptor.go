// Package query builds backend-agnostic catalog query descriptors from browse state.
package query

// Op is a predicate operator understood by every store backend.
type Op string

const (
	OpEq       Op = "eq"
	OpILike    Op = "ilike" // case-insensitive LIKE; % and _ are wildcards, \ escapes
	OpGte      Op = "gte"
	OpLte      Op = "lte"
	OpContains Op = "contains"
)

// Predicate is one field/operator/value clause. Clauses are ANDed.
// For OpContains, Value is a []string that must all be present in the field.
type Predicate struct {
	Field string `json:"field"`
	Op    Op     `json:"op"`
	Value any    `json:"value"`
}

// Ordering sorts results by one field.
type Ordering struct {
	Field     string `json:"field"`
	Ascending bool   `json:"ascending"`
}

// Descriptor is an immutable description of one select.
type Descriptor struct {
	Table      string      `json:"table"`
	Predicates []Predicate `json:"predicates"`
	Order      *Ordering   `json:"order,omitempty"`
	Limit      int         `json:"limit,omitempty"`
}

// From starts a descriptor for table.
func From(table string) Descriptor {
	return Descriptor{Table: table}
}

// Where returns a copy of d with the predicate appended.
func (d Descriptor) Where(field string, op Op, value any) Descriptor {
	preds := make([]Predicate, len(d.Predicates), len(d.Predicates)+1)
	copy(preds, d.Predicates)
	d.Predicates = append(preds, Predicate{Field: field, Op: op, Value: value})
	return d
}

// Eq is shorthand for Where(field, OpEq, value).
func (d Descriptor) Eq(field string, value any) Descriptor {
	return d.Where(field, OpEq, value)
}

// OrderBy returns a copy of d ordered by field.
func (d Descriptor) OrderBy(field string, ascending bool) Descriptor {
	d.Order = &Ordering{Field: field, Ascending: ascending}
	return d
}

// WithLimit returns a copy of d capped at n rows.
func (d Descriptor) WithLimit(n int) Descriptor {
	d.Limit = n
	return d
}

// Find returns the first predicate on field with op, if any.
func (d Descriptor) Find(field string, op Op) (Predicate, bool) {
	for _, p := range d.Predicates {
		if p.Field == field && p.Op == op {
			return p, true
		}
	}
	return Predicate{}, false
}
