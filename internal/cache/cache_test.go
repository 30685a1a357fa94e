package cache_test

import (
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/require"

	"github.com/trailql/tql/internal/cache"
)

func TestParsedTierHitsAndMisses(t *testing.T) {
	c := cache.New(2, 2, time.Minute, clock.NewMock())

	_, ok := c.GetParsed("find links")
	require.False(t, ok)

	c.PutParsed("find links", "AST-for-find-links")
	v, ok := c.GetParsed("find links")
	require.True(t, ok)
	require.Equal(t, "AST-for-find-links", v)

	stats := c.GetStats()
	require.Equal(t, int64(1), stats.ParsedHits)
	require.Equal(t, int64(1), stats.ParsedMisses)
}

func TestResultExpiresAfterTTL(t *testing.T) {
	mock := clock.NewMock()
	c := cache.New(2, 2, 10*time.Second, mock)

	c.PutResult("q1", "result", []string{"a.md"})
	v, ok := c.GetResult("q1")
	require.True(t, ok)
	require.Equal(t, "result", v)

	mock.Add(11 * time.Second)
	_, ok = c.GetResult("q1")
	require.False(t, ok, "entry must expire once the clock passes its TTL")
}

func TestInvalidateFileDropsOnlyMatchingResults(t *testing.T) {
	c := cache.New(2, 4, time.Minute, clock.NewMock())
	c.PutResult("q1", "r1", []string{"a.md", "b.md"})
	c.PutResult("q2", "r2", []string{"c.md"})

	c.InvalidateFile("a.md")

	_, ok := c.GetResult("q1")
	require.False(t, ok)
	_, ok = c.GetResult("q2")
	require.True(t, ok)
}

func TestInvalidatePatternMatchesRegex(t *testing.T) {
	c := cache.New(2, 4, time.Minute, clock.NewMock())
	c.PutResult("q1", "r1", []string{"notes/daily/2024-01-01.md"})
	c.PutResult("q2", "r2", []string{"notes/weekly/w1.md"})

	c.InvalidatePattern(`^notes/daily/.*\.md$`)

	_, ok := c.GetResult("q1")
	require.False(t, ok)
	_, ok = c.GetResult("q2")
	require.True(t, ok)
}

func TestInvalidatePatternWithInvalidRegexMatchesNothing(t *testing.T) {
	c := cache.New(2, 4, time.Minute, clock.NewMock())
	c.PutResult("q1", "r1", []string{"notes/daily/2024-01-01.md"})

	c.InvalidatePattern("(unclosed")

	_, ok := c.GetResult("q1")
	require.True(t, ok)
}

func TestExecuteCachedRunsComputeOnceOnMiss(t *testing.T) {
	c := cache.New(2, 2, time.Minute, clock.NewMock())
	calls := 0
	compute := func() (any, []string, error) {
		calls++
		return "computed", []string{"a.md"}, nil
	}

	v1, err := c.ExecuteCached("k", compute)
	require.NoError(t, err)
	require.Equal(t, "computed", v1)

	v2, err := c.ExecuteCached("k", compute)
	require.NoError(t, err)
	require.Equal(t, "computed", v2)
	require.Equal(t, 1, calls, "second call must hit the cached result instead of recomputing")
}

func TestClearEmptiesBothTiers(t *testing.T) {
	c := cache.New(2, 2, time.Minute, clock.NewMock())
	c.PutParsed("q", "ast")
	c.PutResult("k", "v", nil)

	c.Clear()

	_, ok := c.GetParsed("q")
	require.False(t, ok)
	_, ok = c.GetResult("k")
	require.False(t, ok)
}
