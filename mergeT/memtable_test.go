package merget

import (
	"fmt"
	"sync"
	"testing"

	"mergekv/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemTableInsertAndQueryOrder(t *testing.T) {
	mt := NewMemTable()
	mt.Insert(utils.NewRow("banana", "2", 20))
	mt.Insert(utils.NewRow("apple", "1", 10))
	mt.Insert(utils.NewRow("cherry", "3", 30))
	mt.Insert(utils.NewRow("apple", "1b", 15))

	assert.Equal(t, 4, mt.Size())
	assert.False(t, mt.Empty())

	rows := mt.Query("apple", "cherry")
	require.Len(t, rows, 4)
	assert.Equal(t, "apple", rows[0].Key)
	assert.Equal(t, uint64(10), rows[0].Timestamp)
	assert.Equal(t, uint64(15), rows[1].Timestamp)
	assert.Equal(t, "banana", rows[2].Key)
	assert.Equal(t, "cherry", rows[3].Key)

	rows = mt.Query("b", "bz")
	require.Len(t, rows, 1)
	assert.Equal(t, "banana", rows[0].Key)

	rows = mt.QueryKey("apple")
	require.Len(t, rows, 2)
}

func TestMemTableMultisetKeepsDuplicates(t *testing.T) {
	mt := NewMemTable()
	mt.Insert(utils.NewRow("x", "a", 5))
	mt.Insert(utils.NewRow("x", "a", 5))

	// memtable是多重集合，完全相同的行都保留，去重是merge和query出口的事
	assert.Equal(t, 2, mt.Size())
	assert.Len(t, mt.QueryKey("x"), 2)
}

func TestMemTableMemoryUsage(t *testing.T) {
	mt := NewMemTable()
	assert.Equal(t, 0, mt.MemoryUsage())

	last := 0
	for i := 0; i < 10; i++ {
		mt.Insert(utils.NewRow(fmt.Sprintf("key%d", i), "value", uint64(i)))
		usage := mt.MemoryUsage()
		assert.True(t, usage > last)
		last = usage
	}

	mt.Clear()
	assert.Equal(t, 0, mt.MemoryUsage())
	assert.True(t, mt.Empty())
}

func TestMemTableDrainRows(t *testing.T) {
	mt := NewMemTable()
	for i := 0; i < 100; i++ {
		mt.Insert(utils.NewRow(fmt.Sprintf("key%03d", 99-i), "v", uint64(i)))
	}

	rows := mt.DrainRows()
	require.Len(t, rows, 100)
	assert.True(t, utils.RowsSorted(rows))
	assert.True(t, mt.Empty())
	assert.Equal(t, 0, mt.MemoryUsage())
}

func TestMemTableGetAllRowsIsSnapshot(t *testing.T) {
	mt := NewMemTable()
	mt.Insert(utils.NewRow("a", "1", 1))

	rows := mt.GetAllRows()
	require.Len(t, rows, 1)

	// 快照拿走之后继续写，不影响已返回的切片
	mt.Insert(utils.NewRow("b", "2", 2))
	assert.Len(t, rows, 1)
	assert.Equal(t, 2, mt.Size())
}

func TestMemTableFlushToGranules(t *testing.T) {
	mt := NewMemTable()
	n := utils.GranuleSize + 10
	for i := 0; i < n; i++ {
		mt.Insert(utils.NewRow(fmt.Sprintf("key%06d", i), "v", uint64(i)))
	}

	granules := mt.FlushToGranules()
	require.Len(t, granules, 2)
	assert.Equal(t, utils.GranuleSize, granules[0].Size())
	assert.Equal(t, 10, granules[1].Size())
	assert.True(t, mt.Empty())

	// 产出的granule已经封好序，可以直接查询
	rows, err := granules[0].QueryRange("key000000", "key000001")
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func TestMemTableConcurrentAccess(t *testing.T) {
	mt := NewMemTable()

	var wg sync.WaitGroup
	const writers = 8
	const perWriter = 200

	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				mt.Insert(utils.NewRow(fmt.Sprintf("w%d-key%04d", w, i), "v", uint64(i)))
			}
		}(w)
	}

	// 并发读不能崩，也不能读到撕裂的行
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			for _, row := range mt.Query("w0", "w9") {
				assert.Equal(t, "v", row.Value)
			}
		}
	}()

	wg.Wait()
	assert.Equal(t, writers*perWriter, mt.Size())

	rows := mt.GetAllRows()
	assert.True(t, utils.RowsSorted(rows))
}
