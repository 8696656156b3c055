// Package model is the instance runtime of strata. It runs the statements
// compiled by dialect/sql/sqlgen through a dialect.Driver and maps result
// rows back to instances with change tracking.
//
//	client, err := model.New(graph, drv, model.WithLogger(logger))
//	if err != nil {
//	    return err
//	}
//	authors := client.MustModel("Author")
//	list, err := authors.FindAll(ctx, &sqlgen.Query{
//	    Include: []*sqlgen.Include{{Association: "books", Required: sqlgen.BoolPtr(true)}},
//	    Limit:   sqlgen.IntPtr(2),
//	})
//
// Rows with joined includes are folded into nested instances and
// deduplicated by primary key. Includes marked Separate run as their own
// queries, concurrently, keyed by the parent key.
//
// Instances move from new to persisted on save, and from persisted to
// destroyed, or to soft-deleted on paranoid entities, on destroy. Restore
// moves a soft-deleted instance back to persisted. Any other transition
// fails with a strata.StateError.
package model
