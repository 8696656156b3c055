package dataloader

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type author struct {
	ID   int
	Name string
}

type book struct {
	ID       int
	AuthorID int
	Title    string
}

func TestOrderByKeys(t *testing.T) {
	t.Parallel()

	keyFn := func(a *author) int { return a.ID }

	t.Run("all keys found", func(t *testing.T) {
		t.Parallel()
		authors := []*author{
			{ID: 3, Name: "third"},
			{ID: 1, Name: "first"},
			{ID: 2, Name: "second"},
		}

		result, errs := OrderByKeys([]int{1, 2, 3}, authors, keyFn)

		require.Len(t, result, 3)
		require.Len(t, errs, 3)
		assert.Equal(t, "first", result[0].Name)
		assert.Equal(t, "second", result[1].Name)
		assert.Equal(t, "third", result[2].Name)
		for _, err := range errs {
			assert.NoError(t, err)
		}
	})

	t.Run("some keys missing", func(t *testing.T) {
		t.Parallel()
		authors := []*author{
			{ID: 1, Name: "first"},
			{ID: 3, Name: "third"},
		}

		result, errs := OrderByKeys([]int{1, 2, 3, 4}, authors, keyFn)

		require.Len(t, result, 4)
		require.Len(t, errs, 4)
		assert.Equal(t, "first", result[0].Name)
		assert.Nil(t, result[1])
		assert.Equal(t, "third", result[2].Name)
		assert.Nil(t, result[3])
		assert.NoError(t, errs[0])
		assert.ErrorIs(t, errs[1], ErrNotFound)
		assert.NoError(t, errs[2])
		assert.ErrorIs(t, errs[3], ErrNotFound)
	})

	t.Run("empty keys", func(t *testing.T) {
		t.Parallel()
		result, errs := OrderByKeys([]int{}, []*author{}, keyFn)

		assert.Empty(t, result)
		assert.Empty(t, errs)
	})

	t.Run("duplicate keys", func(t *testing.T) {
		t.Parallel()
		authors := []*author{
			{ID: 1, Name: "first"},
			{ID: 2, Name: "second"},
		}

		result, errs := OrderByKeys([]int{1, 1, 2}, authors, keyFn)

		require.Len(t, result, 3)
		assert.Equal(t, "first", result[0].Name)
		assert.Equal(t, "first", result[1].Name)
		assert.Equal(t, "second", result[2].Name)
		for _, err := range errs {
			assert.NoError(t, err)
		}
	})
}

func TestOrderByKeysNoError(t *testing.T) {
	t.Parallel()

	result := OrderByKeysNoError([]int{1, 2, 3}, []*author{
		{ID: 1, Name: "first"},
		{ID: 3, Name: "third"},
	}, func(a *author) int { return a.ID })

	require.Len(t, result, 3)
	assert.Equal(t, "first", result[0].Name)
	assert.Nil(t, result[1])
	assert.Equal(t, "third", result[2].Name)
}

func TestGroupByKey(t *testing.T) {
	t.Parallel()

	keyFn := func(b *book) int { return b.AuthorID }

	t.Run("groups by key", func(t *testing.T) {
		t.Parallel()
		books := []*book{
			{ID: 1, AuthorID: 10, Title: "Book 1"},
			{ID: 2, AuthorID: 10, Title: "Book 2"},
			{ID: 3, AuthorID: 20, Title: "Book 3"},
			{ID: 4, AuthorID: 10, Title: "Book 4"},
		}

		grouped := GroupByKey(books, keyFn)

		require.Len(t, grouped[10], 3)
		require.Len(t, grouped[20], 1)
		assert.Equal(t, "Book 1", grouped[10][0].Title)
		assert.Equal(t, "Book 2", grouped[10][1].Title)
		assert.Equal(t, "Book 4", grouped[10][2].Title)
		assert.Equal(t, "Book 3", grouped[20][0].Title)
	})

	t.Run("empty input", func(t *testing.T) {
		t.Parallel()
		assert.Empty(t, GroupByKey([]*book{}, keyFn))
	})
}

func TestOrderGroupsByKeys(t *testing.T) {
	t.Parallel()

	result := OrderGroupsByKeys([]int{10, 20, 30}, map[int][]string{
		10: {"a", "b"},
		20: {"c"},
	})

	require.Len(t, result, 3)
	assert.Equal(t, []string{"a", "b"}, result[0])
	assert.Equal(t, []string{"c"}, result[1])
	assert.Nil(t, result[2])
}

func TestBatch(t *testing.T) {
	t.Parallel()

	authors := map[int]*author{1: {ID: 1, Name: "ada"}, 2: {ID: 2, Name: "grace"}}
	load := func(calls *[][]int) BatchFunc[int, *author] {
		return func(_ context.Context, keys []int) ([]*author, []error) {
			*calls = append(*calls, keys)
			found := make([]*author, 0, len(keys))
			for _, k := range keys {
				if a, ok := authors[k]; ok {
					found = append(found, a)
				}
			}
			return OrderByKeys(keys, found, func(a *author) int { return a.ID })
		}
	}

	t.Run("deduplicates keys", func(t *testing.T) {
		t.Parallel()
		var calls [][]int
		result, errs := Batch(context.Background(), []int{2, 1, 2, 3}, load(&calls))

		require.Equal(t, [][]int{{2, 1, 3}}, calls)
		require.Len(t, result, 4)
		assert.Equal(t, "grace", result[0].Name)
		assert.Equal(t, "ada", result[1].Name)
		assert.Same(t, result[0], result[2])
		assert.Nil(t, result[3])
		assert.NoError(t, errs[2])
		assert.ErrorIs(t, errs[3], ErrNotFound)
	})

	t.Run("batch failure", func(t *testing.T) {
		t.Parallel()
		boom := errors.New("connection reset")
		result, errs := Batch(context.Background(), []int{1, 2}, func(context.Context, []int) ([]*author, []error) {
			return nil, []error{boom}
		})

		require.Len(t, result, 2)
		for _, err := range errs {
			assert.ErrorIs(t, err, boom)
		}
	})
}

func BenchmarkOrderByKeys(b *testing.B) {
	keyFn := func(a *author) int { return a.ID }

	keys := make([]int, 100)
	authors := make([]*author, 100)
	for i := 0; i < 100; i++ {
		keys[i] = i
		authors[i] = &author{ID: i, Name: "author"}
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		OrderByKeys(keys, authors, keyFn)
	}
}

func BenchmarkGroupByKey(b *testing.B) {
	keyFn := func(bk *book) int { return bk.AuthorID }

	// 100 books across 10 authors
	books := make([]*book, 100)
	for i := 0; i < 100; i++ {
		books[i] = &book{ID: i, AuthorID: i % 10}
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		GroupByKey(books, keyFn)
	}
}
