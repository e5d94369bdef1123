package similarity

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/ansuz/internal/graph"
	"github.com/starford/ansuz/internal/models"
)

func snapshotOf(t *testing.T, bodies map[string]string) *graph.Snapshot {
	t.Helper()
	ix := graph.NewIndex()
	for path, body := range bodies {
		ix.Upsert(models.Note{Path: path, Kind: models.KindMarkdown, Body: body})
	}
	return ix.Snapshot()
}

func TestCompute_DisabledStaysUnavailable(t *testing.T) {
	e := NewEngine(false, 100)
	e.Compute(snapshotOf(t, map[string]string{"a.md": "alpha beta gamma"}))

	assert.False(t, e.Available())
	assert.Nil(t, e.View(Settings{Enabled: true, MinScore: 0.1, TopK: 5}))
}

func TestCompute_VaultTooLargeUnavailable(t *testing.T) {
	e := NewEngine(true, 2)
	bodies := make(map[string]string)
	for i := 0; i < 3; i++ {
		bodies[fmt.Sprintf("n%d.md", i)] = "common words everywhere"
	}
	e.Compute(snapshotOf(t, bodies))

	assert.False(t, e.Available())
	assert.Nil(t, e.View(Settings{Enabled: true, MinScore: 0.1, TopK: 5}))
}

func TestView_SimilarNotesShareCluster(t *testing.T) {
	e := NewEngine(true, 100)
	e.Compute(snapshotOf(t, map[string]string{
		"cooking/pasta.md": "tomato basil garlic olive oil pasta sauce simmer",
		"cooking/pizza.md": "tomato basil garlic olive oil dough oven pizza",
		"astro/orbits.md":  "kepler orbit ellipse perihelion gravity planetary motion",
	}))
	require.True(t, e.Available())

	v := e.View(Settings{Enabled: true, MinScore: 0.1, TopK: 5})
	require.NotNil(t, v)
	assert.Equal(t, v.Clusters["cooking/pasta.md"], v.Clusters["cooking/pizza.md"])
	assert.NotEqual(t, v.Clusters["cooking/pasta.md"], v.Clusters["astro/orbits.md"])
}

func TestView_SettingsDisabledReturnsNil(t *testing.T) {
	e := NewEngine(true, 100)
	e.Compute(snapshotOf(t, map[string]string{
		"a.md": "alpha beta gamma",
		"b.md": "alpha beta gamma",
	}))
	assert.Nil(t, e.View(Settings{Enabled: false, MinScore: 0.1, TopK: 5}))
}

func TestView_MinScoreGatesMerges(t *testing.T) {
	e := NewEngine(true, 100)
	e.Compute(snapshotOf(t, map[string]string{
		"a.md": "shared words plus unique apple content here today",
		"b.md": "shared words plus unique banana material there tomorrow",
	}))
	require.True(t, e.Available())

	loose := e.View(Settings{Enabled: true, MinScore: 0.01, TopK: 5})
	require.NotNil(t, loose)
	assert.Equal(t, loose.Clusters["a.md"], loose.Clusters["b.md"])

	strict := e.View(Settings{Enabled: true, MinScore: 0.999, TopK: 5})
	require.NotNil(t, strict)
	assert.NotEqual(t, strict.Clusters["a.md"], strict.Clusters["b.md"])
}

func TestView_TopKGatesMerges(t *testing.T) {
	e := NewEngine(true, 100)
	// Two tight pairs bridged only by weak cross-pair overlap: every note's
	// best neighbor is its twin, so top_k=1 keeps the pairs apart while a
	// larger top_k admits the bridging edges.
	e.Compute(snapshotOf(t, map[string]string{
		"a.md": "tomato basil garlic olive pasta sauce",
		"b.md": "tomato basil garlic olive pasta dough",
		"c.md": "kepler orbit ellipse gravity tomato basil",
		"d.md": "kepler orbit ellipse gravity motion axis",
	}))
	require.True(t, e.Available())

	wide := e.View(Settings{Enabled: true, MinScore: 0.01, TopK: 5})
	require.NotNil(t, wide)
	assert.Equal(t, wide.Clusters["a.md"], wide.Clusters["c.md"], "bridge edge admitted at top_k=5")

	narrow := e.View(Settings{Enabled: true, MinScore: 0.01, TopK: 1})
	require.NotNil(t, narrow)
	assert.Equal(t, narrow.Clusters["a.md"], narrow.Clusters["b.md"])
	assert.Equal(t, narrow.Clusters["c.md"], narrow.Clusters["d.md"])
	assert.NotEqual(t, narrow.Clusters["a.md"], narrow.Clusters["c.md"],
		"lowering top_k must never grow a cluster")
}

func TestView_CachedPerSettingsTuple(t *testing.T) {
	e := NewEngine(true, 100)
	e.Compute(snapshotOf(t, map[string]string{
		"a.md": "alpha beta gamma",
		"b.md": "alpha beta delta",
	}))

	s := Settings{Enabled: true, MinScore: 0.1, TopK: 3}
	first := e.View(s)
	second := e.View(s)
	require.NotNil(t, first)
	assert.Same(t, first, second)
}

func TestView_ClusterIDStableUnderUnrelatedAdditions(t *testing.T) {
	e := NewEngine(true, 100)
	base := map[string]string{
		"a.md": "tomato basil garlic olive pasta",
		"b.md": "tomato basil garlic olive pizza",
	}
	e.Compute(snapshotOf(t, base))
	s := Settings{Enabled: true, MinScore: 0.1, TopK: 5}
	before := e.View(s)
	require.NotNil(t, before)
	clusterID := before.Clusters["a.md"]

	// A note sorting after the existing members joins its own cluster and
	// must not renumber the existing one.
	base["zzz.md"] = "kepler orbit ellipse gravity"
	e.Compute(snapshotOf(t, base))
	after := e.View(s)
	require.NotNil(t, after)
	assert.Equal(t, clusterID, after.Clusters["a.md"])
	assert.Equal(t, after.Clusters["a.md"], after.Clusters["b.md"])
	assert.NotEqual(t, after.Clusters["a.md"], after.Clusters["zzz.md"])
}

func TestNeighbors(t *testing.T) {
	e := NewEngine(true, 100)
	e.Compute(snapshotOf(t, map[string]string{
		"a.md": "tomato basil garlic olive pasta sauce",
		"b.md": "tomato basil garlic olive pizza dough",
		"c.md": "tomato basil pepper onion salad bowl",
		"d.md": "kepler orbit ellipse gravity motion",
	}))
	require.True(t, e.Available())

	hits := e.Neighbors("a.md", Settings{Enabled: true, MinScore: 0.05, TopK: 10})
	require.NotEmpty(t, hits)
	for i := 1; i < len(hits); i++ {
		assert.GreaterOrEqual(t, hits[i-1].Score, hits[i].Score)
	}
	for _, h := range hits {
		assert.NotEqual(t, "d.md", h.Path, "disjoint note must not appear")
		assert.GreaterOrEqual(t, h.Score, 0.05)
	}

	one := e.Neighbors("a.md", Settings{Enabled: true, MinScore: 0.05, TopK: 1})
	assert.Len(t, one, 1)
	assert.Equal(t, hits[0], one[0])
}

func TestCompute_Deterministic(t *testing.T) {
	bodies := map[string]string{
		"a.md": "tomato basil garlic olive pasta",
		"b.md": "tomato basil garlic olive pizza",
		"c.md": "kepler orbit ellipse gravity",
	}
	s := Settings{Enabled: true, MinScore: 0.1, TopK: 5}

	e1 := NewEngine(true, 100)
	e1.Compute(snapshotOf(t, bodies))
	v1 := e1.View(s)

	for i := 0; i < 5; i++ {
		e2 := NewEngine(true, 100)
		e2.Compute(snapshotOf(t, bodies))
		v2 := e2.View(s)
		require.NotNil(t, v2)
		assert.Equal(t, v1.Clusters, v2.Clusters)
	}
}
