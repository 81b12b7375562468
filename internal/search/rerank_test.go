package search

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"filedex/internal/store"
)

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abc", truncate("abcdef", 3))

	multi := strings.Repeat("é", 5)
	got := truncate(multi, 3)
	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, 3, utf8.RuneCountInString(got))
}

func TestParseIDOrder(t *testing.T) {
	t.Run("bare array", func(t *testing.T) {
		ids, ok := ParseIDOrder("[3, 1, 2]")
		require.True(t, ok)
		assert.Equal(t, []int64{3, 1, 2}, ids)
	})

	t.Run("array wrapped in prose", func(t *testing.T) {
		ids, ok := ParseIDOrder("Here is the ranking:\n[42, 7]\nHope that helps!")
		require.True(t, ok)
		assert.Equal(t, []int64{42, 7}, ids)
	})

	t.Run("no array", func(t *testing.T) {
		_, ok := ParseIDOrder("I could not rank these items.")
		assert.False(t, ok)
	})

	t.Run("malformed json", func(t *testing.T) {
		_, ok := ParseIDOrder("[1, 2,")
		assert.False(t, ok)
	})

	t.Run("non numeric entries", func(t *testing.T) {
		_, ok := ParseIDOrder(`["a", "b"]`)
		assert.False(t, ok)
	})
}

func TestApplyOrder(t *testing.T) {
	rec := func(id int64) store.SearchResult {
		r := store.SearchResult{}
		r.ID = id
		return r
	}
	candidates := []store.SearchResult{rec(1), rec(2), rec(3)}

	t.Run("reorders and ranks descending", func(t *testing.T) {
		ranked := applyOrder(candidates, []int64{3, 1, 2})
		require.Len(t, ranked, 3)
		assert.Equal(t, int64(3), ranked[0].ID)
		assert.Greater(t, ranked[0].Rank, ranked[1].Rank)
		assert.Greater(t, ranked[1].Rank, ranked[2].Rank)
	})

	t.Run("drops invented ids", func(t *testing.T) {
		ranked := applyOrder(candidates, []int64{2, 99, 1})
		require.Len(t, ranked, 2)
		assert.Equal(t, int64(2), ranked[0].ID)
		assert.Equal(t, int64(1), ranked[1].ID)
	})
}
