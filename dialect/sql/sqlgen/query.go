package sqlgen

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Query describes a SELECT over an entity.
type Query struct {
	Where      Expr
	Attributes []Attribute
	Include    []*Include
	Order      []OrderTerm
	Group      []string
	Having     Expr
	Limit      *int
	Offset     int
	// SubQuery forces (true) or prevents (false) wrapping the base entity
	// in a paginated subquery. Nil lets the generator decide.
	SubQuery *bool
	Lock     LockMode
	// SkipLocked adds SKIP LOCKED to the lock clause.
	SkipLocked bool
	Distinct   bool
	// Paranoid set to false includes soft-deleted rows.
	Paranoid *bool
}

// Include eager loads an association.
type Include struct {
	// Association is the alias of the association, or the target entity
	// name when only one association targets it. As takes precedence.
	Association string
	As          string
	Where       Expr
	// Required makes the join INNER. Nil means required when Where is set.
	Required   *bool
	Attributes []Attribute
	Include    []*Include
	// Separate loads a to-many association in its own query.
	Separate bool
	Through  *Through
	// Paranoid set to false includes soft-deleted targets.
	Paranoid *bool
}

// Through configures the junction of a belongs-to-many include.
type Through struct {
	Where Expr
	// Attributes of the junction to project. Nil projects all of them and
	// an empty slice none.
	Attributes []string
}

// Attribute is one projected column: an attribute name, or an expression,
// optionally renamed with As.
type Attribute struct {
	Name string
	Expr Expr
	As   string
}

// Attrs returns the attributes with the given names.
func Attrs(names ...string) []Attribute {
	attrs := make([]Attribute, len(names))
	for i, n := range names {
		attrs[i] = Attribute{Name: n}
	}
	return attrs
}

// OrderTerm is one ORDER BY entry. Path holds the association aliases
// leading to Attr; Expr orders by an expression instead.
type OrderTerm struct {
	Path  []string
	Attr  string
	Expr  Expr
	Desc  bool
	Nulls string
}

// Asc orders by an attribute, ascending. Dotted names walk associations.
func Asc(name string) OrderTerm { return orderTerm(name, false) }

// Desc orders by an attribute, descending.
func Desc(name string) OrderTerm { return orderTerm(name, true) }

func orderTerm(name string, desc bool) OrderTerm {
	parts := strings.Split(name, ".")
	return OrderTerm{Path: parts[:len(parts)-1], Attr: parts[len(parts)-1], Desc: desc}
}

// OrderBy parses the list form of an order term, e.g.
// []string{"books", "title", "DESC"}: association aliases, the attribute
// and an optional direction.
func OrderBy(parts ...string) (OrderTerm, error) {
	if len(parts) == 0 {
		return OrderTerm{}, fmt.Errorf("sqlgen: empty order term")
	}
	var t OrderTerm
	last := strings.ToUpper(parts[len(parts)-1])
	switch last {
	case "ASC", "DESC", "ASC NULLS FIRST", "ASC NULLS LAST", "DESC NULLS FIRST", "DESC NULLS LAST":
		t.Desc = strings.HasPrefix(last, "DESC")
		if i := strings.Index(last, "NULLS "); i >= 0 {
			t.Nulls = last[i+len("NULLS "):]
		}
		parts = parts[:len(parts)-1]
	}
	if len(parts) == 0 {
		return OrderTerm{}, fmt.Errorf("sqlgen: order term without attribute")
	}
	t.Path, t.Attr = parts[:len(parts)-1], parts[len(parts)-1]
	return t, nil
}

// LockMode is the row lock of a SELECT.
type LockMode uint8

// Lock modes.
const (
	LockNone LockMode = iota
	LockUpdate
	LockShare
)

// BoolPtr returns a pointer to b, for the tri-state fields.
func BoolPtr(b bool) *bool { return &b }

// IntPtr returns a pointer to n, for Query.Limit.
func IntPtr(n int) *int { return &n }

// required reports whether the include joins with INNER JOIN.
func (inc *Include) required() bool {
	if inc.Required != nil {
		return *inc.Required
	}
	return inc.Where != nil
}

// name returns the association lookup key.
func (inc *Include) name() string {
	if inc.As != "" {
		return inc.As
	}
	return inc.Association
}

type (
	querySpec struct {
		Where      map[string]any `yaml:"where"`
		Attributes []any          `yaml:"attributes"`
		Include    []includeSpec  `yaml:"include"`
		Order      []any          `yaml:"order"`
		Group      []string       `yaml:"group"`
		Having     map[string]any `yaml:"having"`
		Limit      *int           `yaml:"limit"`
		Offset     int            `yaml:"offset"`
		SubQuery   *bool          `yaml:"subQuery"`
		Lock       string         `yaml:"lock"`
		SkipLocked bool           `yaml:"skipLocked"`
		Distinct   bool           `yaml:"distinct"`
		Paranoid   *bool          `yaml:"paranoid"`
	}
	includeSpec struct {
		Association string         `yaml:"association"`
		As          string         `yaml:"as"`
		Where       map[string]any `yaml:"where"`
		Required    *bool          `yaml:"required"`
		Attributes  []any          `yaml:"attributes"`
		Include     []includeSpec  `yaml:"include"`
		Separate    bool           `yaml:"separate"`
		Paranoid    *bool          `yaml:"paranoid"`
		Through     *struct {
			Where      map[string]any `yaml:"where"`
			Attributes []string       `yaml:"attributes"`
		} `yaml:"through"`
	}
)

// ParseQuerySpec reads a query from its YAML form:
//
//	where: {status: active, pages: {gt: 100}}
//	attributes: [id, [title, name]]
//	include:
//	  - association: books
//	    required: true
//	    include: [{association: reviews}]
//	order: [[books, title, DESC], id]
//	limit: 2
func ParseQuerySpec(data []byte) (*Query, error) {
	var spec querySpec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("sqlgen: parse query spec: %w", err)
	}
	q := &Query{
		Group:      spec.Group,
		Limit:      spec.Limit,
		Offset:     spec.Offset,
		SubQuery:   spec.SubQuery,
		SkipLocked: spec.SkipLocked,
		Distinct:   spec.Distinct,
		Paranoid:   spec.Paranoid,
	}
	if spec.Where != nil {
		q.Where = Where(spec.Where)
	}
	if spec.Having != nil {
		q.Having = Where(spec.Having)
	}
	var err error
	if q.Attributes, err = parseAttributes(spec.Attributes); err != nil {
		return nil, err
	}
	if q.Include, err = parseIncludes(spec.Include); err != nil {
		return nil, err
	}
	for _, o := range spec.Order {
		var t OrderTerm
		switch o := o.(type) {
		case string:
			t, err = OrderBy(o)
		case []any:
			parts := make([]string, len(o))
			for i, p := range o {
				parts[i] = fmt.Sprint(p)
			}
			t, err = OrderBy(parts...)
		default:
			err = fmt.Errorf("sqlgen: invalid order term %v", o)
		}
		if err != nil {
			return nil, err
		}
		q.Order = append(q.Order, t)
	}
	switch strings.ToLower(spec.Lock) {
	case "":
	case "update":
		q.Lock = LockUpdate
	case "share":
		q.Lock = LockShare
	default:
		return nil, fmt.Errorf("sqlgen: unknown lock %q", spec.Lock)
	}
	return q, nil
}

func parseIncludes(specs []includeSpec) ([]*Include, error) {
	var includes []*Include
	for _, s := range specs {
		inc := &Include{
			Association: s.Association,
			As:          s.As,
			Required:    s.Required,
			Separate:    s.Separate,
			Paranoid:    s.Paranoid,
		}
		if inc.name() == "" {
			return nil, fmt.Errorf("sqlgen: include without association")
		}
		if s.Where != nil {
			inc.Where = Where(s.Where)
		}
		var err error
		if inc.Attributes, err = parseAttributes(s.Attributes); err != nil {
			return nil, err
		}
		if inc.Include, err = parseIncludes(s.Include); err != nil {
			return nil, err
		}
		if s.Through != nil {
			inc.Through = &Through{Attributes: s.Through.Attributes}
			if s.Through.Where != nil {
				inc.Through.Where = Where(s.Through.Where)
			}
		}
		includes = append(includes, inc)
	}
	return includes, nil
}

// parseAttributes reads names and [name, alias] pairs.
func parseAttributes(specs []any) ([]Attribute, error) {
	if specs == nil {
		return nil, nil
	}
	attrs := make([]Attribute, 0, len(specs))
	for _, a := range specs {
		switch a := a.(type) {
		case string:
			attrs = append(attrs, Attribute{Name: a})
		case []any:
			if len(a) != 2 {
				return nil, fmt.Errorf("sqlgen: attribute pair %v must have two elements", a)
			}
			attrs = append(attrs, Attribute{Name: fmt.Sprint(a[0]), As: fmt.Sprint(a[1])})
		default:
			return nil, fmt.Errorf("sqlgen: invalid attribute %v", a)
		}
	}
	return attrs, nil
}
