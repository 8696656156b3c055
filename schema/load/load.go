// Package load reads entity definitions from YAML and resolves them into a
// schema.Graph.
//
//	entities:
//	  - name: author
//	    mixins: [time]
//	    fields:
//	      - {name: name, type: string, validate: {not_empty: true}}
//	      - {name: email, type: string, unique: true, nillable: true}
//	    edges:
//	      - {kind: has_many, target: book, as: books}
//	  - name: book
//	    fields:
//	      - {name: title, type: string, column: book_title}
//	      - {name: status, type: enum, values: [active, archived], default: active}
//	    edges:
//	      - {kind: belongs_to, target: author, as: author, required: true}
//
// Entity names and edge targets are normalized to CamelCase, so
// "blog_post" and "BlogPost" name the same entity.
package load

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	"github.com/syssam/strata/contrib/mixin"
	"github.com/syssam/strata/schema"
	"github.com/syssam/strata/schema/edge"
	"github.com/syssam/strata/schema/field"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

type (
	// Document is the root of a YAML model file.
	Document struct {
		Entities []Entity `yaml:"entities"`
	}

	// Entity is the YAML form of one entity definition.
	Entity struct {
		Name       string      `yaml:"name"`
		Table      string      `yaml:"table,omitempty"`
		Schema     string      `yaml:"schema,omitempty"`
		Comment    string      `yaml:"comment,omitempty"`
		Timestamps *Timestamps `yaml:"timestamps,omitempty"`
		Paranoid   string      `yaml:"paranoid,omitempty"`
		Mixins     []string    `yaml:"mixins,omitempty"`
		Fields     []Field     `yaml:"fields,omitempty"`
		Edges      []Edge      `yaml:"edges,omitempty"`
	}

	// Timestamps names the maintained timestamp attributes. The scalar
	// form "timestamps: true" selects created_at and updated_at.
	Timestamps struct {
		CreatedAt string `yaml:"created_at,omitempty"`
		UpdatedAt string `yaml:"updated_at,omitempty"`
	}

	// Field is the YAML form of an attribute.
	Field struct {
		Name          string            `yaml:"name"`
		Type          string            `yaml:"type"`
		Elem          string            `yaml:"elem,omitempty"`
		Size          int               `yaml:"size,omitempty"`
		Precision     int               `yaml:"precision,omitempty"`
		Scale         int               `yaml:"scale,omitempty"`
		Values        []string          `yaml:"values,omitempty"`
		Column        string            `yaml:"column,omitempty"`
		Nillable      bool              `yaml:"nillable,omitempty"`
		Unique        bool              `yaml:"unique,omitempty"`
		UniqueGroup   string            `yaml:"unique_group,omitempty"`
		PrimaryKey    bool              `yaml:"primary_key,omitempty"`
		AutoIncrement bool              `yaml:"auto_increment,omitempty"`
		Immutable     bool              `yaml:"immutable,omitempty"`
		Default       any               `yaml:"default,omitempty"`
		Comment       string            `yaml:"comment,omitempty"`
		SchemaType    map[string]string `yaml:"schema_type,omitempty"`
		Validate      *Validate         `yaml:"validate,omitempty"`
	}

	// Validate lists the built-in validators of an attribute.
	Validate struct {
		NotEmpty bool     `yaml:"not_empty,omitempty"`
		MaxLen   int      `yaml:"max_len,omitempty"`
		Min      *float64 `yaml:"min,omitempty"`
		Max      *float64 `yaml:"max,omitempty"`
		Positive bool     `yaml:"positive,omitempty"`
		Match    string   `yaml:"match,omitempty"`
	}

	// Edge is the YAML form of an association.
	Edge struct {
		Kind       string `yaml:"kind"`
		Target     string `yaml:"target"`
		As         string `yaml:"as,omitempty"`
		ForeignKey string `yaml:"foreign_key,omitempty"`
		SourceKey  string `yaml:"source_key,omitempty"`
		TargetKey  string `yaml:"target_key,omitempty"`
		Through    string `yaml:"through,omitempty"`
		OtherKey   string `yaml:"other_key,omitempty"`
		Required   bool   `yaml:"required,omitempty"`
		OnDelete   string `yaml:"on_delete,omitempty"`
		OnUpdate   string `yaml:"on_update,omitempty"`
		Comment    string `yaml:"comment,omitempty"`
	}
)

// UnmarshalYAML accepts both the boolean and the mapping form.
func (t *Timestamps) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		var on bool
		if err := node.Decode(&on); err != nil {
			return err
		}
		if on {
			*t = Timestamps{CreatedAt: "created_at", UpdatedAt: "updated_at"}
		}
		return nil
	}
	type plain Timestamps
	return node.Decode((*plain)(t))
}

// mixins maps the names accepted in "mixins" to their values.
var mixins = map[string]schema.Mixin{
	"create_time":      mixin.CreateTime{},
	"update_time":      mixin.UpdateTime{},
	"time":             mixin.Time{},
	"id":               mixin.ID{},
	"soft_delete":      mixin.SoftDelete{},
	"tenant_id":        mixin.TenantID{},
	"time_soft_delete": mixin.TimeSoftDelete{},
}

// Parse decodes a YAML model document. Unknown keys are rejected.
func Parse(data []byte) (*Document, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var doc Document
	if err := dec.Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("load: parse: %w", err)
	}
	if len(doc.Entities) == 0 {
		return nil, errors.New("load: no entities defined")
	}
	return &doc, nil
}

// Load parses data and resolves its entities into a graph.
func Load(data []byte) (*schema.Graph, error) {
	doc, err := Parse(data)
	if err != nil {
		return nil, err
	}
	return doc.Graph()
}

// LoadFile reads a YAML model file and resolves it into a graph.
func LoadFile(path string) (*schema.Graph, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load: read %s: %w", path, err)
	}
	return Load(data)
}

// Graph defines every entity of the document and resolves their edges.
func (d *Document) Graph() (*schema.Graph, error) {
	entities := make([]*schema.Entity, 0, len(d.Entities))
	for i := range d.Entities {
		e, err := d.Entities[i].Define()
		if err != nil {
			return nil, err
		}
		entities = append(entities, e)
	}
	g, err := schema.NewGraph(entities...)
	if err != nil {
		return nil, fmt.Errorf("load: %w", err)
	}
	return g, nil
}

// Define builds the schema entity of the YAML definition.
func (e *Entity) Define() (*schema.Entity, error) {
	name := EntityName(e.Name)
	if name == "" {
		return nil, errors.New("load: entity without name")
	}
	var opts []schema.Option
	if len(e.Mixins) > 0 {
		ms := make([]schema.Mixin, 0, len(e.Mixins))
		for _, n := range e.Mixins {
			m, ok := mixins[strings.ToLower(n)]
			if !ok {
				return nil, fmt.Errorf("load: entity %s: unknown mixin %q", name, n)
			}
			ms = append(ms, m)
		}
		opts = append(opts, schema.Mixins(ms...))
	}
	if e.Table != "" {
		opts = append(opts, schema.Table(e.Table))
	}
	if e.Schema != "" {
		opts = append(opts, schema.InSchema(e.Schema))
	}
	if e.Comment != "" {
		opts = append(opts, schema.Comment(e.Comment))
	}
	if ts := e.Timestamps; ts != nil {
		if ts.CreatedAt != "" {
			opts = append(opts, schema.CreatedAt(ts.CreatedAt))
		}
		if ts.UpdatedAt != "" {
			opts = append(opts, schema.UpdatedAt(ts.UpdatedAt))
		}
	}
	if e.Paranoid != "" {
		opts = append(opts, schema.Paranoid(e.Paranoid))
	}
	fields := make([]field.Field, 0, len(e.Fields))
	for i := range e.Fields {
		f, err := e.Fields[i].builder()
		if err != nil {
			return nil, fmt.Errorf("load: entity %s: %w", name, err)
		}
		fields = append(fields, f)
	}
	edges := make([]edge.Edge, 0, len(e.Edges))
	for i := range e.Edges {
		b, err := e.Edges[i].builder()
		if err != nil {
			return nil, fmt.Errorf("load: entity %s: %w", name, err)
		}
		edges = append(edges, b)
	}
	opts = append(opts, schema.Fields(fields...), schema.Edges(edges...))
	def, err := schema.Define(name, opts...)
	if err != nil {
		return nil, fmt.Errorf("load: %w", err)
	}
	return def, nil
}

func (f *Field) builder() (*field.Builder, error) {
	if f.Name == "" {
		return nil, errors.New("field without name")
	}
	t, ok := field.TypeFromString(f.Type)
	if !ok {
		return nil, fmt.Errorf("field %s: unknown type %q", f.Name, f.Type)
	}
	var b *field.Builder
	switch t {
	case field.TypeString:
		b = field.String(f.Name)
	case field.TypeTime:
		b = field.Time(f.Name)
	case field.TypeChar:
		if f.Size <= 0 {
			return nil, fmt.Errorf("field %s: char requires a size", f.Name)
		}
		b = field.Char(f.Name, f.Size)
	case field.TypeArray, field.TypeRange:
		elem, ok := field.TypeFromString(f.Elem)
		if !ok {
			return nil, fmt.Errorf("field %s: unknown element type %q", f.Name, f.Elem)
		}
		if t == field.TypeArray {
			b = field.Array(f.Name, elem)
		} else {
			b = field.RangeOf(f.Name, elem)
		}
	default:
		b = field.WithInfo(f.Name, field.TypeInfo{Type: t})
	}
	if f.Size > 0 {
		b.Size(f.Size)
	}
	if f.Precision > 0 {
		b.Precision(f.Precision, f.Scale)
	}
	if len(f.Values) > 0 {
		b.Values(f.Values...)
	}
	if f.Column != "" {
		b.StorageKey(f.Column)
	}
	if f.Nillable {
		b.Nillable()
	}
	if f.Unique {
		b.Unique()
	}
	if f.UniqueGroup != "" {
		b.UniqueGroup(f.UniqueGroup)
	}
	if f.PrimaryKey {
		b.PrimaryKey()
	}
	if f.AutoIncrement {
		b.AutoIncrement()
	}
	if f.Immutable {
		b.Immutable()
	}
	if f.Default != nil {
		b.Default(f.Default)
	}
	if f.Comment != "" {
		b.Comment(f.Comment)
	}
	if len(f.SchemaType) > 0 {
		b.SchemaType(f.SchemaType)
	}
	if v := f.Validate; v != nil {
		if v.NotEmpty {
			b.NotEmpty()
		}
		if v.MaxLen > 0 {
			b.MaxLen(v.MaxLen)
		}
		if v.Min != nil {
			b.Min(*v.Min)
		}
		if v.Max != nil {
			b.Max(*v.Max)
		}
		if v.Positive {
			b.Positive()
		}
		if v.Match != "" {
			re, err := regexp.Compile(v.Match)
			if err != nil {
				return nil, fmt.Errorf("field %s: match: %w", f.Name, err)
			}
			b.Match(re)
		}
	}
	return b, nil
}

func (e *Edge) builder() (*edge.Builder, error) {
	target := EntityName(e.Target)
	if target == "" {
		return nil, errors.New("edge without target")
	}
	var b *edge.Builder
	switch strings.ReplaceAll(strings.ToLower(e.Kind), "_", "") {
	case "belongsto":
		b = edge.BelongsTo(target)
	case "hasone":
		b = edge.HasOne(target)
	case "hasmany":
		b = edge.HasMany(target)
	case "belongstomany":
		b = edge.BelongsToMany(target)
	default:
		return nil, fmt.Errorf("edge %s: unknown kind %q", target, e.Kind)
	}
	if e.As != "" {
		b.As(e.As)
	}
	if e.ForeignKey != "" {
		b.ForeignKey(e.ForeignKey)
	}
	if e.SourceKey != "" {
		b.SourceKey(e.SourceKey)
	}
	if e.TargetKey != "" {
		b.TargetKey(e.TargetKey)
	}
	if e.Through != "" {
		b.Through(EntityName(e.Through))
	}
	if e.OtherKey != "" {
		b.OtherKey(e.OtherKey)
	}
	if e.Required {
		b.Required()
	}
	if e.OnDelete != "" {
		b.OnDelete(strings.ToUpper(e.OnDelete))
	}
	if e.OnUpdate != "" {
		b.OnUpdate(strings.ToUpper(e.OnUpdate))
	}
	if e.Comment != "" {
		b.Comment(e.Comment)
	}
	return b, nil
}

var titleCaser = cases.Title(language.Und, cases.NoLower)

// EntityName normalizes a YAML entity name to CamelCase: "blog_post",
// "blog-post" and "BlogPost" all become "BlogPost".
func EntityName(s string) string {
	parts := strings.FieldsFunc(s, func(r rune) bool {
		return r == '_' || r == '-' || r == ' '
	})
	var b strings.Builder
	for _, p := range parts {
		b.WriteString(titleCaser.String(p))
	}
	return b.String()
}
