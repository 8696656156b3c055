// Package dataloader provides generic helpers for batch loading instances.
//
// A batch loader runs one query for many keys and must hand back one
// result per key, in key order. The helpers of this package do the
// reordering and grouping:
//
//	books, _ := client.MustModel("Book").FindAll(ctx, &sqlgen.Query{
//	    Where: sqlgen.In("author_id", ids...),
//	})
//	byAuthor := dataloader.GroupByKey(books, func(b *model.Instance) int64 {
//	    return b.Get("author_id").(int64)
//	})
//	ordered := dataloader.OrderGroupsByKeys(ids, byAuthor)
//
// # Key Extraction
//
// Use KeyFunc to extract keys from instances:
//
//	keyFn := func(i *model.Instance) int64 { return i.Get("id").(int64) }
//	ordered, errs := dataloader.OrderByKeys(ids, authors, keyFn)
package dataloader

import (
	"context"
	"errors"
)

// ErrNotFound is returned when an entity is not found in a batch result.
var ErrNotFound = errors.New("dataloader: entity not found")

// KeyFunc extracts a key from an entity.
type KeyFunc[K comparable, V any] func(V) K

// BatchFunc is a function that loads a batch of entities by their keys.
type BatchFunc[K comparable, V any] func(ctx context.Context, keys []K) ([]V, []error)

// OrderByKeys reorders entities to match the order of requested keys.
// Missing entities are represented as zero values with corresponding errors.
//
// The result slices always:
//   - Have the same length as the input keys
//   - Have results in the same order as the input keys
//
// Example:
//
//	authors, _ := authorModel.FindAll(ctx, &sqlgen.Query{Where: sqlgen.In("id", ids...)})
//	ordered, errs := OrderByKeys(ids, authors, func(a *model.Instance) int64 { return a.Get("id").(int64) })
func OrderByKeys[K comparable, V any](keys []K, values []V, keyFn KeyFunc[K, V]) ([]V, []error) {
	// Build lookup map
	lookup := make(map[K]V, len(values))
	for _, v := range values {
		lookup[keyFn(v)] = v
	}

	// Build ordered result
	result := make([]V, len(keys))
	errs := make([]error, len(keys))
	for i, key := range keys {
		if v, ok := lookup[key]; ok {
			result[i] = v
		} else {
			errs[i] = ErrNotFound
		}
	}
	return result, errs
}

// OrderByKeysNoError reorders entities to match the order of requested keys.
// Returns zero values for missing entities without errors.
// Use this when missing entities are acceptable (e.g., optional associations).
func OrderByKeysNoError[K comparable, V any](keys []K, values []V, keyFn KeyFunc[K, V]) []V {
	result, _ := OrderByKeys(keys, values, keyFn)
	return result
}

// GroupByKey groups entities by a key function.
// Useful for one-to-many associations where multiple entities share the
// same foreign key.
//
// Example:
//
//	// Load all books of several authors
//	books, _ := bookModel.FindAll(ctx, &sqlgen.Query{Where: sqlgen.In("author_id", ids...)})
//	grouped := GroupByKey(books, func(b *model.Instance) int64 { return b.Get("author_id").(int64) })
//	// grouped[authorID] contains all books of that author
func GroupByKey[K comparable, V any](values []V, keyFn KeyFunc[K, V]) map[K][]V {
	result := make(map[K][]V)
	for _, v := range values {
		key := keyFn(v)
		result[key] = append(result[key], v)
	}
	return result
}

// OrderGroupsByKeys reorders grouped entities to match the order of requested keys.
// Returns a slice of slices where each inner slice contains entities for that key.
func OrderGroupsByKeys[K comparable, V any](keys []K, groups map[K][]V) [][]V {
	result := make([][]V, len(keys))
	for i, key := range keys {
		result[i] = groups[key]
	}
	return result
}

// Batch collects the keys of one batch and calls fn once with all of
// them, deduplicated in first-seen order. The results of fn are spread
// back to every requested position, so duplicated keys share a result.
func Batch[K comparable, V any](ctx context.Context, keys []K, fn BatchFunc[K, V]) ([]V, []error) {
	var (
		unique = make([]K, 0, len(keys))
		index  = make(map[K]int, len(keys))
	)
	for _, k := range keys {
		if _, ok := index[k]; !ok {
			index[k] = len(unique)
			unique = append(unique, k)
		}
	}
	values, errs := fn(ctx, unique)
	result := make([]V, len(keys))
	rerrs := make([]error, len(keys))
	for i, k := range keys {
		j := index[k]
		if j < len(values) {
			result[i] = values[j]
		}
		switch {
		case len(errs) == 1 && len(unique) != 1:
			// A single error fails the whole batch.
			rerrs[i] = errs[0]
		case j < len(errs):
			rerrs[i] = errs[j]
		}
	}
	return result, rerrs
}
