package sqlgen

import (
	"strings"

	"github.com/syssam/strata/dialect"
	"github.com/syssam/strata/schema"
	"github.com/syssam/strata/schema/edge"
	"github.com/syssam/strata/schema/field"
)

// foreignKey is a reference from a column of the created table.
type foreignKey struct {
	column   string
	table    string
	key      string
	onDelete string
	onUpdate string
}

// CreateTable compiles the DDL creating the table of e. On dialects with
// named enum types, the CREATE TYPE statements come first.
func (g *Generator) CreateTable(e *schema.Entity) ([]Statement, error) {
	if err := ValidateEntity(g.Dialect, e); err != nil {
		return nil, err
	}
	d := g.Dialect
	caps := d.Capabilities()
	var stmts []Statement
	if caps.Enum == dialect.EnumNamedType {
		for _, a := range e.Attributes {
			if a.Info.Type != field.TypeEnum || a.SchemaType[d.Name()] != "" {
				continue
			}
			stmts = append(stmts, Statement{SQL: "CREATE TYPE " + d.QuoteIdentifier(EnumTypeName(e.Table, a.Column())) +
				" AS ENUM (" + enumValues(d, a.Info.Values) + ");"})
		}
	}
	inlinePK := false
	defs := make([]string, 0, len(e.Attributes)+4)
	for _, a := range e.Attributes {
		def, inline, err := g.columnDef(e, a)
		if err != nil {
			return nil, err
		}
		inlinePK = inlinePK || inline
		defs = append(defs, def)
	}
	if len(e.PrimaryKeys) > 0 && !inlinePK {
		defs = append(defs, "PRIMARY KEY "+quotedColumns(d, e, e.PrimaryKeyNames()))
	}
	for _, u := range e.UniqueGroups {
		defs = append(defs, "CONSTRAINT "+d.QuoteIdentifier(u.Name)+" UNIQUE "+quotedColumns(d, e, u.Attributes))
	}
	for _, fk := range g.foreignKeys(e) {
		def := "FOREIGN KEY (" + d.QuoteIdentifier(fk.column) + ") REFERENCES " + fk.table + " (" + d.QuoteIdentifier(fk.key) + ")"
		if fk.onDelete != "" {
			def += " ON DELETE " + fk.onDelete
		}
		if fk.onUpdate != "" && caps.ForeignKeyOnUpdate {
			def += " ON UPDATE " + fk.onUpdate
		}
		defs = append(defs, def)
	}
	create := "CREATE TABLE "
	if caps.IfExists {
		create += "IF NOT EXISTS "
	}
	stmts = append(stmts, Statement{SQL: create + quoteTable(d, e) + " (" + strings.Join(defs, ", ") + ");"})
	return stmts, nil
}

// columnDef renders one column definition and reports whether it declares
// the primary key inline.
func (g *Generator) columnDef(e *schema.Entity, a *field.Descriptor) (string, bool, error) {
	d := g.Dialect
	caps := d.Capabilities()
	typ, err := columnType(d, e, a)
	if err != nil {
		return "", false, err
	}
	col := d.QuoteIdentifier(a.Column())
	if a == e.AutoIncrement {
		switch caps.AutoIncrement {
		case dialect.AutoIncrementSerial:
			switch a.Info.Type {
			case field.TypeInt64:
				return col + " BIGSERIAL", false, nil
			case field.TypeInt16, field.TypeInt8:
				return col + " SMALLSERIAL", false, nil
			}
			return col + " SERIAL", false, nil
		case dialect.AutoIncrementKeyword:
			return col + " " + typ + " NOT NULL auto_increment", false, nil
		case dialect.AutoIncrementInline:
			if len(e.PrimaryKeys) == 1 && a.PrimaryKey {
				return col + " INTEGER PRIMARY KEY AUTOINCREMENT", true, nil
			}
			return col + " INTEGER NOT NULL", false, nil
		case dialect.AutoIncrementIdentity:
			return col + " " + typ + " NOT NULL IDENTITY(1,1)", false, nil
		case dialect.AutoIncrementGenerated:
			return col + " " + typ + " GENERATED BY DEFAULT AS IDENTITY", false, nil
		}
	}
	def := col + " " + typ
	if !a.Nillable || a.PrimaryKey {
		def += " NOT NULL"
	}
	if a.HasDefault() && !a.IsDefaultFunc() {
		lit, err := Escape(d, a.Default, a.Info)
		if err != nil {
			return "", false, err
		}
		def += " DEFAULT " + lit
	}
	if a.Info.Type == field.TypeEnum && caps.Enum == dialect.EnumCheck && a.SchemaType[d.Name()] == "" {
		def += " CHECK (" + col + " IN (" + enumValues(d, a.Info.Values) + "))"
	}
	return def, false, nil
}

// foreignKeys collects the references held by the table of e: its
// belongs-to associations, the has-one and has-many associations of other
// entities targeting it and the belongs-to-many associations it is the
// junction of. The first reference of a column wins.
func (g *Generator) foreignKeys(e *schema.Entity) []foreignKey {
	if g.Graph == nil {
		return nil
	}
	d := g.Dialect
	var (
		fks  []foreignKey
		seen = make(map[string]bool)
	)
	add := func(owner *schema.Entity, attr string, ref *schema.Entity, key string, a *schema.Association) {
		col := owner.Column(attr)
		if seen[col] {
			return
		}
		seen[col] = true
		fks = append(fks, foreignKey{
			column:   col,
			table:    quoteTable(d, ref),
			key:      ref.Column(key),
			onDelete: a.OnDelete,
			onUpdate: a.OnUpdate,
		})
	}
	for _, a := range e.Associations {
		if a.Kind == edge.KindBelongsTo {
			add(e, a.ForeignKey, a.Target, a.TargetKey, a)
		}
	}
	for _, other := range g.Graph.Entities() {
		for _, a := range other.Associations {
			switch {
			case (a.Kind == edge.KindHasOne || a.Kind == edge.KindHasMany) && a.Target == e:
				add(e, a.ForeignKey, a.Source, a.SourceKey, a)
			case a.Kind == edge.KindBelongsToMany && a.Through == e:
				add(e, a.ForeignKey, a.Source, a.SourceKey, a)
				add(e, a.OtherKey, a.Target, a.TargetKey, a)
			}
		}
	}
	return fks
}

func quotedColumns(d Dialect, e *schema.Entity, attrs []string) string {
	cols := make([]string, len(attrs))
	for i, a := range attrs {
		cols[i] = d.QuoteIdentifier(e.Column(a))
	}
	return "(" + strings.Join(cols, ", ") + ")"
}

// DropTable compiles the DDL dropping the table of e and, on dialects with
// named enum types, the types of its enum columns.
func (g *Generator) DropTable(e *schema.Entity) []Statement {
	d := g.Dialect
	caps := d.Capabilities()
	ifExists := ""
	if caps.IfExists {
		ifExists = "IF EXISTS "
	}
	stmts := []Statement{{SQL: "DROP TABLE " + ifExists + quoteTable(d, e) + ";"}}
	if caps.Enum == dialect.EnumNamedType {
		for _, a := range e.Attributes {
			if a.Info.Type == field.TypeEnum && a.SchemaType[d.Name()] == "" {
				stmts = append(stmts, Statement{SQL: "DROP TYPE " + ifExists + d.QuoteIdentifier(EnumTypeName(e.Table, a.Column())) + ";"})
			}
		}
	}
	return stmts
}
