package merget

import (
	"sync"

	"mergekv/utils"
)

// MemTable 内存中按(key, timestamp)有序的行多重集合
// 所有公开操作都在同一把互斥锁下串行执行，保证线性一致
type MemTable struct {
	mu          sync.Mutex
	list        *skiplist
	memoryUsage int
}

func NewMemTable() *MemTable {
	return &MemTable{
		list: newSkiplist(),
	}
}

// Insert 插入一行
func (mt *MemTable) Insert(row utils.Row) {
	mt.mu.Lock()
	defer mt.mu.Unlock()

	mt.list.insert(row)
	mt.memoryUsage += row.Size()
}

// Query 返回 lo <= key <= hi 的所有行，天然有序
// key超过hi后提前结束遍历
func (mt *MemTable) Query(startKey, endKey string) []utils.Row {
	mt.mu.Lock()
	defer mt.mu.Unlock()

	var result []utils.Row
	for node := mt.list.front(); node != nil; node = node.forward[0] {
		if node.row.Key >= startKey && node.row.Key <= endKey {
			result = append(result, node.row)
		} else if node.row.Key > endKey {
			break
		}
	}
	return result
}

// QueryKey 点查
func (mt *MemTable) QueryKey(key string) []utils.Row {
	return mt.Query(key, key)
}

func (mt *MemTable) Size() int {
	mt.mu.Lock()
	defer mt.mu.Unlock()
	return mt.list.len()
}

// MemoryUsage 内存占用估计值，insert单调递增，clear后归零
func (mt *MemTable) MemoryUsage() int {
	mt.mu.Lock()
	defer mt.mu.Unlock()
	return mt.memoryUsage
}

func (mt *MemTable) Empty() bool {
	return mt.Size() == 0
}

// Clear 清空memtable
func (mt *MemTable) Clear() {
	mt.mu.Lock()
	defer mt.mu.Unlock()
	mt.reset()
}

// GetAllRows 按序快照全部行
func (mt *MemTable) GetAllRows() []utils.Row {
	mt.mu.Lock()
	defer mt.mu.Unlock()
	return mt.allRows()
}

// DrainRows 一次加锁完成 快照+清空，flush路径用它保证原子性
func (mt *MemTable) DrainRows() []utils.Row {
	mt.mu.Lock()
	defer mt.mu.Unlock()

	rows := mt.allRows()
	mt.reset()
	return rows
}

// FlushToGranules 消费全部行，产出一组排好序的granule
func (mt *MemTable) FlushToGranules() []*Granule {
	return chunkSortedRows(mt.DrainRows())
}

// 调用方持锁
func (mt *MemTable) allRows() []utils.Row {
	rows := make([]utils.Row, 0, mt.list.len())
	for node := mt.list.front(); node != nil; node = node.forward[0] {
		rows = append(rows, node.row)
	}
	return rows
}

// 调用方持锁
func (mt *MemTable) reset() {
	mt.list = newSkiplist()
	mt.memoryUsage = 0
}
