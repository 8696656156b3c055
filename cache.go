package strata

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Cache is the interface for caching query results.
// Users should implement this interface with their preferred caching solution
// (e.g., Redis, Memcached, in-memory). contrib/lru ships an in-memory one.
type Cache interface {
	// Get retrieves a value from the cache.
	// Returns nil, nil if the key doesn't exist.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value in the cache with an optional TTL.
	// If ttl is 0, the value should not expire.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a value from the cache.
	Delete(ctx context.Context, key string) error

	// DeletePrefix removes all values with the given prefix.
	DeletePrefix(ctx context.Context, prefix string) error

	// Clear removes all values from the cache.
	Clear(ctx context.Context) error
}

// CacheKey identifies a compiled query. Table comes first so that
// mutations can invalidate a table with DeletePrefix(CachePrefix(table)).
type CacheKey struct {
	Table     string
	Operation string
	SQL       string
	Args      []any
}

// String returns the string representation of the cache key.
func (k CacheKey) String() string {
	var b strings.Builder
	b.WriteString(CachePrefix(k.Table))
	b.WriteString(k.Operation)
	b.WriteByte(':')
	b.WriteString(k.SQL)
	for i, a := range k.Args {
		b.WriteString(":")
		b.WriteString(strconv.Itoa(i))
		b.WriteByte('=')
		b.WriteString(argString(a))
	}
	return b.String()
}

// CachePrefix returns the key prefix shared by all cached queries of a table.
func CachePrefix(table string) string {
	return table + ":"
}

func argString(a any) string {
	switch v := a.(type) {
	case nil:
		return "NULL"
	case string:
		return strconv.Quote(v)
	case []byte:
		return strconv.Quote(string(v))
	case time.Time:
		return v.UTC().Format(time.RFC3339Nano)
	case interface{ String() string }:
		return v.String()
	default:
		return strconv.Quote(fmtAny(v))
	}
}

func fmtAny(v any) string {
	switch v := v.(type) {
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	default:
		return fmt.Sprint(v)
	}
}
