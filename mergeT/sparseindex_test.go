package merget

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIndexEntryOverlaps(t *testing.T) {
	entry := IndexEntry{MinKey: "c", MaxKey: "f"}

	tests := []struct {
		lo, hi string
		want   bool
	}{
		{"a", "b", false}, // 整体在左边
		{"g", "z", false}, // 整体在右边
		{"a", "c", true},  // 左端相接
		{"f", "z", true},  // 右端相接
		{"d", "e", true},  // 完全包含
		{"a", "z", true},  // 被包含
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, entry.OverlapsRange(tt.lo, tt.hi), "[%s, %s]", tt.lo, tt.hi)
	}
}

func TestSparseIndexFindGranules(t *testing.T) {
	var idx SparseIndex
	idx.AddEntry("a", "c", 0, 10)
	idx.AddEntry("d", "f", 1, 10)
	idx.AddEntry("g", "i", 2, 10)

	assert.Equal(t, []uint64{0}, idx.FindGranules("a", "b"))
	assert.Equal(t, []uint64{0, 1}, idx.FindGranules("c", "d"))
	assert.Equal(t, []uint64{0, 1, 2}, idx.FindGranules("a", "z"))
	assert.Nil(t, idx.FindGranules("x", "z"))
	assert.Equal(t, []uint64{1}, idx.FindGranulesForKey("e"))
}

func TestSparseIndexSaveLoadRoundTrip(t *testing.T) {
	var idx SparseIndex
	idx.AddEntry("apple", "cherry", 0, 100)
	idx.AddEntry("date", "fig", 1, 200)
	idx.AddEntry("", "empty-min-is-legal", 2, 1)

	path := filepath.Join(t.TempDir(), "primary.idx")
	_, err := idx.SaveToFile(path)
	require.NoError(t, err)

	var loaded SparseIndex
	require.NoError(t, loaded.LoadFromFile(path))
	assert.Equal(t, idx.Entries(), loaded.Entries())
}

func TestSparseIndexLoadMissingFile(t *testing.T) {
	var idx SparseIndex
	err := idx.LoadFromFile(filepath.Join(t.TempDir(), "nope.idx"))
	require.Error(t, err)
}

func TestSparseIndexMergeWith(t *testing.T) {
	var a SparseIndex
	a.AddEntry("a", "c", 0, 10)
	a.AddEntry("m", "o", 1, 10)

	var b SparseIndex
	b.AddEntry("d", "f", 0, 10)
	b.AddEntry("p", "r", 1, 10)

	a.MergeWith(&b, 2)
	require.Equal(t, 4, a.Size())

	// 平移之后重排：按(min_key, granule_index)
	entries := a.Entries()
	assert.Equal(t, "a", entries[0].MinKey)
	assert.Equal(t, uint64(0), entries[0].GranuleIndex)
	assert.Equal(t, "d", entries[1].MinKey)
	assert.Equal(t, uint64(2), entries[1].GranuleIndex)
	assert.Equal(t, "m", entries[2].MinKey)
	assert.Equal(t, "p", entries[3].MinKey)
	assert.Equal(t, uint64(3), entries[3].GranuleIndex)
}
