package merget

import (
	"container/heap"
	"sort"

	"mergekv/utils"

	"github.com/pkg/errors"
)

// MergeCandidate 一次merge的候选：参与的part下标、总行数、总大小和得分
type MergeCandidate struct {
	PartIndices []int
	TotalRows   uint64
	TotalSize   uint64
	Score       float64
}

// score计算中total_size的归一化基数：10MiB
const mergeSizeNormalizer = 10 << 20

// 堆元素：某个源part的当前行
type rowSource struct {
	row       utils.Row
	partIndex int
	rowIndex  int
}

// 小顶堆，排序键(key asc, timestamp asc, part下标 asc)
// part下标参与排序保证相同(key, ts)时先到的part先出，first-wins
type mergeHeap []rowSource

func (h mergeHeap) Len() int { return len(h) }
func (h mergeHeap) Less(i, j int) bool {
	a, b := h[i].row, h[j].row
	if a.Key != b.Key {
		return a.Key < b.Key
	}
	if a.Timestamp != b.Timestamp {
		return a.Timestamp < b.Timestamp
	}
	return h[i].partIndex < h[j].partIndex
}
func (h mergeHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *mergeHeap) Push(x interface{}) {
	*h = append(*h, x.(rowSource))
}
func (h *mergeHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// MergeIterator 对多个part的行流做k路归并，产出单一的(key, timestamp)有序流
// 每个未耗尽的源part在堆里恰好有一个活跃元素
type MergeIterator struct {
	partRows [][]utils.Row
	current  []int
	h        mergeHeap
}

// NewMergeIterator 加载所有源part的行流并初始化堆
func NewMergeIterator(parts []*Part) (*MergeIterator, error) {
	it := &MergeIterator{
		partRows: make([][]utils.Row, len(parts)),
		current:  make([]int, len(parts)),
	}

	for i, p := range parts {
		rows, err := p.GetAllRows()
		if err != nil {
			return nil, errors.WithMessagef(err, "while loading part %d for merge", p.Meta().PartID)
		}
		it.partRows[i] = rows
	}

	for i, rows := range it.partRows {
		if len(rows) > 0 {
			it.h = append(it.h, rowSource{row: rows[0], partIndex: i})
		}
	}
	heap.Init(&it.h)
	return it, nil
}

func (it *MergeIterator) HasNext() bool {
	return it.h.Len() > 0
}

// Next 弹出全局最小行，并推进对应源part
func (it *MergeIterator) Next() (utils.Row, error) {
	if it.h.Len() == 0 {
		return utils.Row{}, errors.WithStack(ErrIterExhausted)
	}

	current := heap.Pop(&it.h).(rowSource)
	it.advancePart(current.partIndex)
	return current.row, nil
}

// advancePart 源part还有行时把下一行压入堆
func (it *MergeIterator) advancePart(partIndex int) {
	it.current[partIndex]++
	next := it.current[partIndex]
	if next < len(it.partRows[partIndex]) {
		heap.Push(&it.h, rowSource{
			row:       it.partRows[partIndex][next],
			partIndex: partIndex,
			rowIndex:  next,
		})
	}
}

// Merger 负责part合并与候选挑选
type Merger struct {
	basePath string
	cache    *GranuleCache
}

func NewMerger(basePath string, cache *GranuleCache) *Merger {
	return &Merger{
		basePath: basePath,
		cache:    cache,
	}
}

// MergeParts 把一组part合并成一个新part，newPartID由coordinator分配
// 相同(key, timestamp)的行视为同一事件，merge序里先到的胜出
// 合并成功后源part从磁盘删除
func (m *Merger) MergeParts(parts []*Part, newPartID uint64) (*Part, error) {
	if len(parts) == 0 {
		return nil, errors.WithStack(ErrMergeEmptyInput)
	}

	// 单part不重写
	if len(parts) == 1 {
		return parts[0], nil
	}

	mergedRows, err := m.mergeRows(parts)
	if err != nil {
		return nil, err
	}
	if len(mergedRows) == 0 {
		return nil, errors.WithStack(ErrMergeNoRows)
	}

	mergedPart := NewPart(newPartID, m.basePath, m.cache)
	if err := mergedPart.WriteFromMemtableRows(mergedRows); err != nil {
		return nil, err
	}

	// 新part已经落盘，消费掉的源part从磁盘回收
	for _, p := range parts {
		if err := p.DeleteFromDisk(); err != nil {
			utils.Err(err)
		}
	}
	return mergedPart, nil
}

// 驱动迭代器并折叠重复事件
func (m *Merger) mergeRows(parts []*Part) ([]utils.Row, error) {
	it, err := NewMergeIterator(parts)
	if err != nil {
		return nil, err
	}

	var merged []utils.Row
	for it.HasNext() {
		row, err := it.Next()
		if err != nil {
			return nil, err
		}
		if len(merged) == 0 || !merged[len(merged)-1].SameEvent(row) {
			merged = append(merged, row)
		}
	}
	return merged, nil
}

// SelectMergeCandidates 枚举所有两两组合和连续三元组，打分后按score从高到低
// 返回最多maxCandidates个得分为正的候选
func (m *Merger) SelectMergeCandidates(parts []*Part, maxCandidates int) []MergeCandidate {
	if len(parts) < 2 {
		return nil
	}

	// 磁盘大小逐个统计一次，避免每个候选重复walk目录
	sizes := make([]uint64, len(parts))
	for i, p := range parts {
		sizes[i] = p.DiskUsage()
	}

	var candidates []MergeCandidate
	addCandidate := func(indices []int) {
		c := m.scoreCandidate(indices, parts, sizes)
		if c.Score > 0 {
			candidates = append(candidates, c)
		}
	}

	for i := 0; i < len(parts); i++ {
		for j := i + 1; j < len(parts); j++ {
			addCandidate([]int{i, j})
		}
	}
	for i := 0; i+2 < len(parts); i++ {
		addCandidate([]int{i, i + 1, i + 2})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})

	if len(candidates) > maxCandidates {
		candidates = candidates[:maxCandidates]
	}
	return candidates
}

/*
打分偏好“大小相近、路数少、总量不大”的合并：
size_ratio   = min_size / max_size           (0, 1]
parts_factor = 1 / 参与part数                 (0, 0.5]
size_factor  = min(1, total_size / 10MiB)
score        = size_ratio * parts_factor * size_factor * 100
*/
func (m *Merger) scoreCandidate(indices []int, parts []*Part, sizes []uint64) MergeCandidate {
	c := MergeCandidate{PartIndices: indices}
	if len(indices) == 0 {
		return c
	}

	minSize := uint64(0)
	maxSize := uint64(0)
	for n, idx := range indices {
		if idx >= len(parts) {
			return MergeCandidate{PartIndices: indices}
		}
		size := sizes[idx]
		c.TotalRows += parts[idx].Meta().RowCount
		c.TotalSize += size
		if n == 0 || size < minSize {
			minSize = size
		}
		if size > maxSize {
			maxSize = size
		}
	}

	if c.TotalRows == 0 || c.TotalSize == 0 {
		return c
	}

	sizeRatio := float64(minSize) / float64(maxSize)
	partsFactor := 1.0 / float64(len(indices))
	sizeFactor := float64(c.TotalSize) / float64(mergeSizeNormalizer)
	if sizeFactor > 1.0 {
		sizeFactor = 1.0
	}

	c.Score = sizeRatio * partsFactor * sizeFactor * 100.0
	return c
}
