package merget

import (
	"fmt"
	"testing"

	"mergekv/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGranuleAddAndKeyRange(t *testing.T) {
	g := NewGranule()
	assert.True(t, g.IsEmpty())

	require.NoError(t, g.AddRow(utils.NewRow("b", "2", 2)))
	require.NoError(t, g.AddRow(utils.NewRow("a", "1", 1)))
	require.NoError(t, g.AddRow(utils.NewRow("c", "3", 3)))

	assert.Equal(t, 3, g.Size())
	assert.Equal(t, "a", g.MinKey())
	assert.Equal(t, "c", g.MaxKey())
}

func TestGranuleCapacity(t *testing.T) {
	g := NewGranule()
	for i := 0; i < utils.GranuleSize; i++ {
		require.NoError(t, g.AddRow(utils.NewRow(fmt.Sprintf("key%05d", i), "v", uint64(i))))
	}
	require.True(t, g.IsFull())

	err := g.AddRow(utils.NewRow("overflow", "v", 0))
	require.ErrorIs(t, err, ErrGranuleFull)
	assert.Equal(t, utils.GranuleSize, g.Size())
}

func TestGranuleQueryRequiresSort(t *testing.T) {
	g := NewGranule()
	require.NoError(t, g.AddRow(utils.NewRow("b", "2", 2)))
	require.NoError(t, g.AddRow(utils.NewRow("a", "1", 1)))

	_, err := g.QueryRange("a", "b")
	require.ErrorIs(t, err, ErrGranuleUnsorted)

	g.Sort()
	rows, err := g.QueryRange("a", "b")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "a", rows[0].Key)
	assert.Equal(t, "b", rows[1].Key)
}

func TestGranuleQueryRange(t *testing.T) {
	g := NewGranule()
	for i := 0; i < 10; i++ {
		require.NoError(t, g.AddRow(utils.NewRow(fmt.Sprintf("key%d", i), fmt.Sprintf("v%d", i), uint64(i))))
	}
	g.Sort()

	rows, err := g.QueryRange("key3", "key6")
	require.NoError(t, err)
	require.Len(t, rows, 4)
	for i, row := range rows {
		assert.Equal(t, fmt.Sprintf("key%d", i+3), row.Key)
	}

	// 区间与granule不相交
	rows, err = g.QueryRange("zzz", "zzzz")
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestGranuleSortOrdersByKeyThenTimestamp(t *testing.T) {
	g := NewGranule()
	require.NoError(t, g.AddRow(utils.NewRow("k", "late", 500)))
	require.NoError(t, g.AddRow(utils.NewRow("k", "early", 100)))
	g.Sort()

	rows, err := g.QueryRange("k", "k")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, uint64(100), rows[0].Timestamp)
	assert.Equal(t, uint64(500), rows[1].Timestamp)
}

func TestGranuleClear(t *testing.T) {
	g := NewGranule()
	require.NoError(t, g.AddRow(utils.NewRow("a", "1", 1)))
	require.True(t, g.MemoryUsage() > 0)

	g.Clear()
	assert.True(t, g.IsEmpty())
	assert.Equal(t, "", g.MinKey())
	assert.Equal(t, "", g.MaxKey())
	assert.Equal(t, 0, g.MemoryUsage())
}
