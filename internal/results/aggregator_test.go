package results

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mabhi256/refscan/internal/graph"
)

var (
	nodeA = graph.Node{ID: 1, Name: "A", Path: "A"}
	nodeB = graph.Node{ID: 2, Name: "B", Path: "A/B"}
	nodeC = graph.Node{ID: 3, Name: "C", Path: "A/C"}
)

func TestRecordMissingComponentAccumulates(t *testing.T) {
	agg := NewAggregator()
	agg.RecordMissingComponent(nodeB, "root")
	agg.RecordMissingComponent(nodeA, "root")
	agg.RecordMissingComponent(nodeB, "other")

	view := agg.Snapshot()
	require.Len(t, view.MissingComponents, 2)
	assert.Equal(t, nodeB, view.MissingComponents[0].Node, "first-seen node comes first")
	assert.Equal(t, 2, view.MissingComponents[0].Count)
	assert.Equal(t, 1, view.ComponentCount(nodeA.ID))
	assert.Equal(t, 0, view.ComponentCount(nodeC.ID))
	assert.Len(t, view.Findings, 3)
}

func TestRecordMissingReferenceKeepsDiscoveryOrder(t *testing.T) {
	agg := NewAggregator()
	agg.RecordMissingReference(nodeC, "Light", "m_Target", "root")
	agg.RecordMissingReference(nodeA, "Camera", "m_Follow", "root")
	agg.RecordMissingReference(nodeC, "Light", "m_Cookie", "root")

	view := agg.Snapshot()
	require.Len(t, view.MissingReferences, 2)
	assert.Equal(t, nodeC, view.MissingReferences[0].Node)
	assert.Equal(t, []Reference{
		{ComponentType: "Light", Field: "m_Target", Context: "root"},
		{ComponentType: "Light", Field: "m_Cookie", Context: "root"},
	}, view.MissingReferences[0].Refs)
	assert.Nil(t, view.References(nodeB.ID))
}

func TestSameTripleIsNotDeduplicated(t *testing.T) {
	agg := NewAggregator()
	agg.RecordMissingReference(nodeA, "Comp", "target", "scene-1")
	agg.RecordMissingReference(nodeA, "Comp", "target", "scene-2")

	refs := agg.Snapshot().References(nodeA.ID)
	require.Len(t, refs, 2)
	assert.Equal(t, "scene-1", refs[0].Context)
	assert.Equal(t, "scene-2", refs[1].Context)
}

func TestClear(t *testing.T) {
	agg := NewAggregator()
	agg.RecordMissingComponent(nodeA, "root")
	agg.RecordMissingReference(nodeB, "Comp", "f", "root")
	agg.RecordMissingPrefab(nodeC, "root")
	before := agg.Version()

	agg.Clear()

	view := agg.Snapshot()
	assert.True(t, view.Empty())
	assert.Empty(t, view.MissingComponents)
	assert.Empty(t, view.MissingReferences)
	assert.Empty(t, view.MissingPrefabs)
	assert.Greater(t, agg.Version(), before)
}

func TestSnapshotIsIsolatedFromLaterWrites(t *testing.T) {
	agg := NewAggregator()
	agg.RecordMissingReference(nodeA, "Comp", "first", "root")

	view := agg.Snapshot()
	agg.RecordMissingReference(nodeA, "Comp", "second", "root")
	agg.RecordMissingComponent(nodeA, "root")

	assert.Len(t, view.References(nodeA.ID), 1)
	assert.Empty(t, view.MissingComponents)

	view.MissingReferences[0].Refs[0].Field = "mutated"
	assert.Equal(t, "first", agg.Snapshot().References(nodeA.ID)[0].Field)
}

func TestConcurrentSnapshotsNeverSeeTornEntries(t *testing.T) {
	agg := NewAggregator()
	const writes = 2000

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := range writes {
			agg.RecordMissingReference(nodeA, "Comp", fmt.Sprintf("f%d", i), "root")
		}
	}()

	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 200 {
				view := agg.Snapshot()
				refs := view.References(nodeA.ID)
				for i, ref := range refs {
					if ref.Field != fmt.Sprintf("f%d", i) {
						t.Errorf("entry %d out of order: %s", i, ref.Field)
						return
					}
				}
				assert.Len(t, view.Findings, len(refs))
			}
		}()
	}

	wg.Wait()
	assert.Len(t, agg.Snapshot().References(nodeA.ID), writes)
}

func TestViewTotalsAndContexts(t *testing.T) {
	agg := NewAggregator()
	agg.RecordMissingComponent(nodeA, "scene")
	agg.RecordMissingReference(nodeB, "Comp", "f", "assets")
	agg.RecordMissingReference(nodeB, "Comp", "g", "scene")
	agg.RecordMissingPrefab(nodeC, "assets")

	view := agg.Snapshot()
	components, references, prefabs := view.Totals()
	assert.Equal(t, 1, components)
	assert.Equal(t, 2, references)
	assert.Equal(t, 1, prefabs)

	order, counts := view.CountByContext()
	assert.Equal(t, []string{"scene", "assets"}, order)
	assert.Equal(t, 2, counts["scene"])
	assert.Equal(t, 2, counts["assets"])
}
