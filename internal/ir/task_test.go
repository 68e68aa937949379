package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleForest() []*RecomputeTask {
	return []*RecomputeTask{
		{
			Target:    CollectionAttr("C2", "a2"),
			RecordIDs: NewRecordSet("c2a", "c2b"),
			Dependents: []*RecomputeTask{
				{Target: CollectionAttr("C1", "a1"), RecordIDs: NewRecordSet("c1a")},
				{
					Target:    CollectionAttr("C2", "a3"),
					RecordIDs: NewRecordSet("c2a", "c2b"),
					Dependents: []*RecomputeTask{
						{Target: LinkTypeAttr("L12", "w"), RecordIDs: NewRecordSet("l1")},
					},
				},
			},
		},
		{Target: CollectionAttr("C5", "a5"), RecordIDs: NewRecordSet("c5a")},
	}
}

func TestRecomputeTask_OwnerAccessors(t *testing.T) {
	c := &RecomputeTask{Target: CollectionAttr("C1", "a1")}
	id, ok := c.CollectionID()
	assert.True(t, ok)
	assert.Equal(t, "C1", id)
	_, ok = c.LinkTypeID()
	assert.False(t, ok)

	l := &RecomputeTask{Target: LinkTypeAttr("L12", "w")}
	id, ok = l.LinkTypeID()
	assert.True(t, ok)
	assert.Equal(t, "L12", id)
	_, ok = l.CollectionID()
	assert.False(t, ok)
}

func TestFlatten_ParentsPrecedeDependents(t *testing.T) {
	flat := Flatten(sampleForest())

	var got []string
	for _, task := range flat {
		got = append(got, task.Target.String())
	}
	assert.Equal(t, []string{
		"collection:C2.a2",
		"collection:C1.a1",
		"collection:C2.a3",
		"link_type:L12.w",
		"collection:C5.a5",
	}, got)
}

func TestFlatten_Empty(t *testing.T) {
	assert.Empty(t, Flatten(nil))
	assert.Equal(t, 0, CountTasks(nil))
}

func TestCountTasks(t *testing.T) {
	assert.Equal(t, 5, CountTasks(sampleForest()))
}

func TestWalk_Depth(t *testing.T) {
	depths := map[string]int{}
	Walk(sampleForest(), func(task *RecomputeTask, depth int) bool {
		depths[task.Target.String()] = depth
		return true
	})
	assert.Equal(t, 0, depths["collection:C2.a2"])
	assert.Equal(t, 1, depths["collection:C2.a3"])
	assert.Equal(t, 2, depths["link_type:L12.w"])
	assert.Equal(t, 0, depths["collection:C5.a5"])
}

func TestWalk_Prune(t *testing.T) {
	var visited []string
	Walk(sampleForest(), func(task *RecomputeTask, _ int) bool {
		visited = append(visited, task.Target.String())
		return task.Target != CollectionAttr("C2", "a2")
	})
	assert.Equal(t, []string{"collection:C2.a2", "collection:C5.a5"}, visited)
}

func TestCanonicalForest_Marshal(t *testing.T) {
	forest := []*RecomputeTask{
		{
			Target:    CollectionAttr("C2", "a2"),
			RecordIDs: NewRecordSet("c2b", "c2a"),
			Dependents: []*RecomputeTask{
				{Target: CollectionAttr("C1", "a1"), RecordIDs: NewRecordSet("c1a")},
			},
		},
	}

	data, err := MarshalCanonical(CanonicalForest(forest))
	require.NoError(t, err)
	assert.Equal(t,
		`[{"dependents":[{"dependents":[],"record_ids":["c1a"],"target":"collection:C1.a1"}],"record_ids":["c2a","c2b"],"target":"collection:C2.a2"}]`,
		string(data))
}

func TestCanonicalForest_Empty(t *testing.T) {
	data, err := MarshalCanonical(CanonicalForest(nil))
	require.NoError(t, err)
	assert.Equal(t, "[]", string(data))
}

func TestFormatForest(t *testing.T) {
	want := "collection:C2.a2 {c2a,c2b}\n" +
		"  collection:C1.a1 {c1a}\n" +
		"  collection:C2.a3 {c2a,c2b}\n" +
		"    link_type:L12.w {l1}\n" +
		"collection:C5.a5 {c5a}\n"
	assert.Equal(t, want, FormatForest(sampleForest()))
	assert.Equal(t, "", FormatForest(nil))
}
