package pseudonym

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/synaptica-ai/mlprofile/pkg/audit"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

// newTestGenerator lowers the PBKDF2 cost so large property tests stay fast.
func newTestGenerator(t *testing.T, opts ...Option) *Generator {
	t.Helper()
	g := NewGenerator("installation-secret", append([]Option{WithClock(fixedClock(time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC)))}, opts...)...)
	g.iterations = 1000
	return g
}

func TestGenerateDeterministicWithinPeriod(t *testing.T) {
	g := newTestGenerator(t)
	ctx := context.Background()

	first, err := g.Generate(ctx, "patient-42", Scope{"purpose": "ml"})
	require.NoError(t, err)
	second, err := g.Generate(ctx, "patient-42", Scope{"purpose": "ml"})
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Len(t, first, IdentifierLength)
	assert.True(t, strings.HasPrefix(first, Prefix))
}

func TestGenerateDeterministicWithoutCache(t *testing.T) {
	cached := newTestGenerator(t)
	uncached := newTestGenerator(t, WithCacheSize(0))

	a, err := cached.Generate(context.Background(), "patient-7", nil)
	require.NoError(t, err)
	b, err := uncached.Generate(context.Background(), "patient-7", nil)
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Zero(t, uncached.CacheLen())
}

func TestGenerateDiffersByScope(t *testing.T) {
	g := newTestGenerator(t)
	ctx := context.Background()

	ml, err := g.Generate(ctx, "patient-42", Scope{"purpose": "ml"})
	require.NoError(t, err)
	research, err := g.Generate(ctx, "patient-42", Scope{"purpose": "research"})
	require.NoError(t, err)
	assert.NotEqual(t, ml, research)
}

func TestScopeOrderDoesNotMatter(t *testing.T) {
	g := newTestGenerator(t)
	ctx := context.Background()

	a, err := g.Generate(ctx, "patient-1", Scope{"purpose": "ml", "site": "b"})
	require.NoError(t, err)
	b, err := g.Generate(ctx, "patient-1", Scope{"site": "b", "purpose": "ml"})
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestGenerateRequiresSubjectID(t *testing.T) {
	g := newTestGenerator(t)
	_, err := g.Generate(context.Background(), "  ", nil)
	assert.ErrorIs(t, err, ErrMissingSubjectID)
}

func TestRotateChangesIdentifier(t *testing.T) {
	g := newTestGenerator(t)
	ctx := context.Background()

	before, err := g.Generate(ctx, "patient-42", Scope{"purpose": "ml"})
	require.NoError(t, err)
	again, err := g.Generate(ctx, "patient-42", Scope{"purpose": "ml"})
	require.NoError(t, err)
	require.Equal(t, before, again)
	require.Equal(t, 1, g.CacheLen())

	prev := g.Schedule()
	info := g.Rotate(ctx)
	assert.Equal(t, prev.PeriodIndex+1, info.PeriodIndex)
	assert.Equal(t, prev.NextStart, info.CurrentStart)
	assert.Zero(t, g.CacheLen())

	after, err := g.Generate(ctx, "patient-42", Scope{"purpose": "ml"})
	require.NoError(t, err)
	assert.NotEqual(t, before, after)
	assert.False(t, g.Validate(ctx, "patient-42", before, Scope{"purpose": "ml"}))
	assert.True(t, g.Validate(ctx, "patient-42", after, Scope{"purpose": "ml"}))
}

func TestWallClockPeriodBoundary(t *testing.T) {
	now := time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)
	g := newTestGenerator(t, WithClock(func() time.Time { return now }))
	ctx := context.Background()

	sched := g.Schedule()
	assert.Equal(t, time.Date(2024, 12, 26, 0, 0, 0, 0, time.UTC), sched.CurrentStart)
	assert.Equal(t, time.Date(2025, 3, 26, 0, 0, 0, 0, time.UTC), sched.NextStart)

	inPeriod, err := g.Generate(ctx, "patient-9", nil)
	require.NoError(t, err)

	now = sched.NextStart.Add(-time.Second)
	stillSame, err := g.Generate(ctx, "patient-9", nil)
	require.NoError(t, err)
	assert.Equal(t, inPeriod, stillSame)

	now = sched.NextStart
	nextPeriod, err := g.Generate(ctx, "patient-9", nil)
	require.NoError(t, err)
	assert.NotEqual(t, inPeriod, nextPeriod)
}

func TestSchedulesAgreeAcrossInstances(t *testing.T) {
	clock := fixedClock(time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC))
	a := NewGenerator("s1", WithClock(clock))
	b := NewGenerator("s2", WithClock(clock))
	assert.Equal(t, a.Schedule(), b.Schedule())
}

func TestValidate(t *testing.T) {
	g := newTestGenerator(t)
	ctx := context.Background()
	id, err := g.Generate(ctx, "patient-3", Scope{"purpose": "ml"})
	require.NoError(t, err)

	assert.True(t, g.Validate(ctx, "patient-3", id, Scope{"purpose": "ml"}))
	assert.False(t, g.Validate(ctx, "patient-4", id, Scope{"purpose": "ml"}))
	assert.False(t, g.Validate(ctx, "patient-3", id, Scope{"purpose": "billing"}))
	assert.False(t, g.Validate(ctx, "patient-3", id[:20], Scope{"purpose": "ml"}))
	assert.False(t, g.Validate(ctx, "", id, nil))
}

func TestDifferentSecretsAreUnlinkable(t *testing.T) {
	a := newTestGenerator(t)
	b := NewGenerator("other-installation", WithClock(a.clock))
	b.iterations = a.iterations

	idA, err := a.Generate(context.Background(), "patient-42", nil)
	require.NoError(t, err)
	idB, err := b.Generate(context.Background(), "patient-42", nil)
	require.NoError(t, err)
	assert.NotEqual(t, idA, idB)
}

func TestNoCollisionsAcrossManySubjects(t *testing.T) {
	g := newTestGenerator(t)
	ctx := context.Background()
	seen := make(map[string]string, 10000)

	for i := 0; i < 10000; i++ {
		subject := "subject-" + strings.Repeat("x", i%3) + strconv.Itoa(i)
		id, err := g.Generate(ctx, subject, Scope{"purpose": "ml"})
		require.NoError(t, err)
		require.NotContains(t, id, subject)
		if prev, dup := seen[id]; dup {
			t.Fatalf("collision between %s and %s", prev, subject)
		}
		seen[id] = subject
	}
	assert.LessOrEqual(t, g.CacheLen(), DefaultCacheSize)
}

func TestCacheEvictsOldestFirst(t *testing.T) {
	c := newFIFOCache(2)
	c.put("a", "1")
	c.put("b", "2")
	c.put("c", "3")

	_, ok := c.get("a")
	assert.False(t, ok)
	v, ok := c.get("c")
	assert.True(t, ok)
	assert.Equal(t, "3", v)
	assert.Equal(t, 2, c.len())
}

func TestConcurrentGenerateAgrees(t *testing.T) {
	g := newTestGenerator(t, WithCacheSize(4))
	ctx := context.Background()
	want, err := g.Generate(ctx, "patient-77", nil)
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make(chan string, 64)
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _ = g.Generate(ctx, "filler-"+strconv.Itoa(i), nil)
			got, err := g.Generate(ctx, "patient-77", nil)
			if err != nil || got != want {
				errs <- got
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for got := range errs {
		t.Fatalf("concurrent generate disagreed: %q", got)
	}
	assert.LessOrEqual(t, g.CacheLen(), 4)
}

func TestGenerationIsAuditedWithHashedSubject(t *testing.T) {
	sink := audit.NewMemorySink()
	g := newTestGenerator(t, WithAuditSink(sink))
	_, err := g.Generate(context.Background(), "patient-42", nil)
	require.NoError(t, err)

	records := sink.Records()
	require.Len(t, records, 1)
	assert.Equal(t, audit.OpPseudonymGenerate, records[0].Operation)
	assert.NotContains(t, records[0].SubjectHash, "patient-42")
	assert.NotEmpty(t, records[0].SubjectHash)
}

func TestWithIterationsIgnoresWeakValues(t *testing.T) {
	g := NewGenerator("secret", WithIterations(10))
	assert.Equal(t, MinIterations, g.iterations)
	g = NewGenerator("secret", WithIterations(MinIterations*2))
	assert.Equal(t, MinIterations*2, g.iterations)
}

func TestScopeRenderingIsUnambiguous(t *testing.T) {
	g := newTestGenerator(t)
	ctx := context.Background()

	packed, err := g.Generate(ctx, "patient-1", Scope{"a": "b&c=d"})
	require.NoError(t, err)
	split, err := g.Generate(ctx, "patient-1", Scope{"a": "b", "c": "d"})
	require.NoError(t, err)
	assert.NotEqual(t, packed, split)
	assert.NotEqual(t, Scope{"a": "b&c=d"}.canonical(), Scope{"a": "b", "c": "d"}.canonical())
	assert.Equal(t, "purpose=ml", Scope{"purpose": "ml"}.canonical())
}
