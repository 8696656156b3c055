package model

import (
	"bytes"
	"context"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/syssam/strata"
	"github.com/syssam/strata/dialect/sql/sqlgen"
	"github.com/syssam/strata/schema"
)

// fetch runs a query through the cache when one is configured.
// Concurrent misses of the same key share one query.
func (c *Client) fetch(ctx context.Context, e *schema.Entity, stmt sqlgen.Statement, cacheable bool) ([]record, error) {
	if c.cache == nil || c.inTx || !cacheable {
		return c.rows(ctx, stmt)
	}
	key := strata.CacheKey{Table: e.Table, Operation: "select", SQL: stmt.SQL, Args: stmt.Args}.String()
	if b, err := c.cache.Get(ctx, key); err == nil && b != nil {
		recs, err := decodeRecords(b)
		if err == nil {
			return recs, nil
		}
		c.logger.WarnContext(ctx, "dropping undecodable cache entry", "key", key, "error", err)
		_ = c.cache.Delete(ctx, key)
	}
	v, err, _ := c.flight.Do(key, func() (any, error) {
		recs, err := c.rows(ctx, stmt)
		if err != nil {
			return nil, err
		}
		b, err := msgpack.Marshal(recs)
		if err != nil {
			c.logger.WarnContext(ctx, "encoding cache entry", "key", key, "error", err)
			return recs, nil
		}
		if err := c.cache.Set(ctx, key, b, c.ttl); err != nil {
			c.logger.WarnContext(ctx, "storing cache entry", "key", key, "error", err)
		}
		return recs, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]record), nil
}

func decodeRecords(b []byte) ([]record, error) {
	dec := msgpack.NewDecoder(bytes.NewReader(b))
	dec.UseLooseInterfaceDecoding(true)
	var recs []record
	if err := dec.Decode(&recs); err != nil {
		return nil, err
	}
	return recs, nil
}

// invalidate clears the cached queries of the model table and of every
// table whose queries may include it.
func (m *Model) invalidate(ctx context.Context) {
	c := m.client
	if c.cache == nil {
		return
	}
	for _, e := range related(c.graph, m.entity) {
		if err := c.cache.DeletePrefix(ctx, strata.CachePrefix(e.Table)); err != nil {
			c.logger.WarnContext(ctx, "invalidating cache", "table", e.Table, "error", err)
		}
	}
}

// related returns e and the entities whose queries can include e
// through a chain of associations.
func related(g *schema.Graph, e *schema.Entity) []*schema.Entity {
	var (
		out  = []*schema.Entity{e}
		seen = map[*schema.Entity]bool{e: true}
	)
	for i := 0; i < len(out); i++ {
		cur := out[i]
		for _, other := range g.Entities() {
			if seen[other] {
				continue
			}
			for _, a := range other.Associations {
				if a.Target == cur || a.Through == cur {
					seen[other] = true
					out = append(out, other)
					break
				}
			}
		}
	}
	return out
}
