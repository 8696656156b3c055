package model

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/syssam/strata/contrib/dataloader"
	"github.com/syssam/strata/dialect/sql/sqlgen"
	"github.com/syssam/strata/schema/edge"
)

// loadSeparate runs one query per separate include, concurrently, and
// attaches the results to parents once all of them succeeded.
func (m *Model) loadSeparate(ctx context.Context, loads []*load, parents []*Instance) error {
	if len(loads) == 0 {
		return nil
	}
	groups := make([]map[string][]*Instance, len(loads))
	g, ctx := errgroup.WithContext(ctx)
	for i, l := range loads {
		keys := sourceKeys(l, parents)
		if len(keys) == 0 {
			continue
		}
		g.Go(func() error {
			var err error
			if l.assoc.Kind == edge.KindBelongsToMany {
				groups[i], err = l.throughJunction(ctx, keys)
			} else {
				groups[i], err = l.byForeignKey(ctx, keys)
			}
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	for i, l := range loads {
		for _, p := range parents {
			p.markLoaded(l.alias)
			if v := p.values[l.assoc.SourceKey]; !isNil(v) {
				p.included[l.alias] = append(p.included[l.alias], groups[i][keyString(v)]...)
			}
		}
	}
	return nil
}

// sourceKeys returns the distinct non-NULL source key values of parents.
func sourceKeys(l *load, parents []*Instance) []any {
	seen := make(map[string]bool, len(parents))
	keys := make([]any, 0, len(parents))
	for _, p := range parents {
		v := p.values[l.assoc.SourceKey]
		if isNil(v) {
			continue
		}
		if k := keyString(v); !seen[k] {
			seen[k] = true
			keys = append(keys, v)
		}
	}
	return keys
}

// query returns the query of the include targets restricted by cond.
func (l *load) query(cond sqlgen.Expr, key string) *sqlgen.Query {
	attrs := l.inc.Attributes
	if len(attrs) > 0 {
		attrs = append(append([]sqlgen.Attribute(nil), attrs...), sqlgen.Attribute{Name: key})
	}
	return &sqlgen.Query{
		Where:      and(l.inc.Where, cond),
		Attributes: attrs,
		Include:    l.inc.Include,
		Paranoid:   l.inc.Paranoid,
	}
}

// byForeignKey loads has-many targets grouped by their foreign key.
func (l *load) byForeignKey(ctx context.Context, keys []any) (map[string][]*Instance, error) {
	fk := l.assoc.ForeignKey
	children, err := l.model.FindAll(ctx, l.query(sqlgen.In(fk, keys...), fk))
	if err != nil {
		return nil, err
	}
	return dataloader.GroupByKey(children, func(c *Instance) string {
		return keyString(c.values[fk])
	}), nil
}

// throughJunction loads belongs-to-many targets with their junction rows.
// A target shared by several parents is copied per parent so that each
// copy carries its own junction instance.
func (l *load) throughJunction(ctx context.Context, keys []any) (map[string][]*Instance, error) {
	a := l.assoc
	through := l.model.client.model(a.Through)
	var jwhere sqlgen.Expr
	if th := l.inc.Through; th != nil {
		jwhere = th.Where
	}
	junctions, err := through.FindAll(ctx, &sqlgen.Query{Where: and(jwhere, sqlgen.In(a.ForeignKey, keys...))})
	if err != nil {
		return nil, err
	}
	if len(junctions) == 0 {
		return nil, nil
	}
	others := make([]any, 0, len(junctions))
	for _, j := range junctions {
		others = append(others, j.values[a.OtherKey])
	}
	targets, err := l.model.FindAll(ctx, l.query(sqlgen.In(a.TargetKey, others...), a.TargetKey))
	if err != nil {
		return nil, err
	}
	byKey := make(map[string]*Instance, len(targets))
	for _, t := range targets {
		byKey[keyString(t.values[a.TargetKey])] = t
	}
	groups := make(map[string][]*Instance)
	for _, j := range junctions {
		t, ok := byKey[keyString(j.values[a.OtherKey])]
		if !ok {
			continue
		}
		c := t.clone()
		c.included[a.Through.Name] = []*Instance{j}
		k := keyString(j.values[a.ForeignKey])
		groups[k] = append(groups[k], c)
	}
	return groups, nil
}

// clone returns a shallow copy of the instance with its own maps.
func (i *Instance) clone() *Instance {
	c := &Instance{
		model:    i.model,
		values:   make(map[string]any, len(i.values)),
		previous: make(map[string]any, len(i.previous)),
		state:    i.state,
		included: make(map[string][]*Instance, len(i.included)),
	}
	for k, v := range i.values {
		c.values[k] = v
	}
	for k, v := range i.previous {
		c.previous[k] = v
	}
	for k, v := range i.included {
		c.included[k] = v
	}
	return c
}
