package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRowOrdering(t *testing.T) {
	a := NewRow("a", "zzz", 100)
	b := NewRow("b", "aaa", 1)

	// key优先，value不参与
	assert.True(t, a.Less(b))
	assert.False(t, b.Less(a))

	// key相同时比timestamp
	old := NewRow("k", "v", 1)
	new_ := NewRow("k", "v", 2)
	assert.True(t, old.Less(new_))
	assert.False(t, new_.Less(old))
	assert.False(t, old.Less(old))
}

func TestRowSameEvent(t *testing.T) {
	assert.True(t, NewRow("k", "a", 5).SameEvent(NewRow("k", "b", 5)))
	assert.False(t, NewRow("k", "a", 5).SameEvent(NewRow("k", "a", 6)))
	assert.False(t, NewRow("k", "a", 5).SameEvent(NewRow("j", "a", 5)))
}

func TestSortRows(t *testing.T) {
	rows := []Row{
		NewRow("b", "2", 2),
		NewRow("a", "3", 3),
		NewRow("a", "1", 1),
	}
	assert.False(t, RowsSorted(rows))
	SortRows(rows)
	assert.True(t, RowsSorted(rows))
	assert.Equal(t, NewRow("a", "1", 1), rows[0])
	assert.Equal(t, NewRow("a", "3", 3), rows[1])
	assert.Equal(t, NewRow("b", "2", 2), rows[2])
}

func TestParsePartDirName(t *testing.T) {
	id, ok := ParsePartDirName("part_42")
	assert.True(t, ok)
	assert.Equal(t, uint64(42), id)

	_, ok = ParsePartDirName("part_abc")
	assert.False(t, ok)
	_, ok = ParsePartDirName("something_else")
	assert.False(t, ok)
	_, ok = ParsePartDirName("part_")
	assert.False(t, ok)

	assert.Equal(t, "part_7", PartDirName(7))
}
