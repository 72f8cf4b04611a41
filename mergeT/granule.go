package merget

import (
	"mergekv/utils"
)

// Granule 定容量的有序行块，是磁盘IO和稀疏索引的最小单元
// 写盘或者从盘上读回之后一定是排好序的
type Granule struct {
	rows   []utils.Row
	minKey string
	maxKey string
	sorted bool
}

func NewGranule() *Granule {
	return &Granule{}
}

// AddRow 追加一行，granule已满时报错
func (g *Granule) AddRow(row utils.Row) error {
	if g.IsFull() {
		return ErrGranuleFull
	}
	g.rows = append(g.rows, row)
	g.sorted = false
	g.updateKeyRange(row)
	return nil
}

func (g *Granule) IsFull() bool {
	return len(g.rows) >= utils.GranuleSize
}

func (g *Granule) IsEmpty() bool {
	return len(g.rows) == 0
}

func (g *Granule) Size() int {
	return len(g.rows)
}

// Sort 按(key, timestamp)排序，已经有序时不重复排
func (g *Granule) Sort() {
	if g.sorted {
		return
	}
	if !utils.RowsSorted(g.rows) {
		utils.SortRows(g.rows)
	}
	g.sorted = true
	if len(g.rows) > 0 {
		g.minKey = g.rows[0].Key
		g.maxKey = g.rows[len(g.rows)-1].Key
	}
}

func (g *Granule) MinKey() string {
	return g.minKey
}

func (g *Granule) MaxKey() string {
	return g.maxKey
}

// Rows 返回内部的行切片，调用方不要修改
func (g *Granule) Rows() []utils.Row {
	return g.rows
}

func (g *Granule) Clear() {
	g.rows = nil
	g.minKey = ""
	g.maxKey = ""
	g.sorted = false
}

// QueryRange 返回 lo <= key <= hi 的所有行，要求granule已排序
// 一旦key超过hi就提前结束扫描
func (g *Granule) QueryRange(startKey, endKey string) ([]utils.Row, error) {
	if !g.sorted {
		return nil, ErrGranuleUnsorted
	}

	var result []utils.Row
	for _, row := range g.rows {
		if row.Key >= startKey && row.Key <= endKey {
			result = append(result, row)
		} else if row.Key > endKey {
			break
		}
	}
	return result, nil
}

// MemoryUsage 估算granule占用的内存
func (g *Granule) MemoryUsage() int {
	total := 0
	for _, row := range g.rows {
		total += row.Size()
	}
	return total
}

// 每次add之后增量维护key范围
func (g *Granule) updateKeyRange(row utils.Row) {
	if len(g.rows) == 1 {
		g.minKey = row.Key
		g.maxKey = row.Key
		return
	}
	if row.Key < g.minKey {
		g.minKey = row.Key
	}
	if row.Key > g.maxKey {
		g.maxKey = row.Key
	}
}

// sealSortedRows 用已经排好序的行直接构造granule，flush和merge产出时用
func sealSortedRows(rows []utils.Row) *Granule {
	g := &Granule{
		rows:   rows,
		sorted: true,
	}
	if len(rows) > 0 {
		g.minKey = rows[0].Key
		g.maxKey = rows[len(rows)-1].Key
	}
	return g
}

// chunkSortedRows 把已排序的行按GranuleSize切成多个granule
func chunkSortedRows(rows []utils.Row) []*Granule {
	var granules []*Granule
	for len(rows) > 0 {
		n := utils.GranuleSize
		if len(rows) < n {
			n = len(rows)
		}
		granules = append(granules, sealSortedRows(rows[:n:n]))
		rows = rows[n:]
	}
	return granules
}
