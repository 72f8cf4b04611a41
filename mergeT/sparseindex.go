package merget

import (
	"sort"

	"mergekv/file"
	"mergekv/utils"

	"github.com/pkg/errors"
)

// IndexEntry 稀疏索引里的一条，对应part内的一个granule
type IndexEntry struct {
	MinKey       string
	MaxKey       string
	GranuleIndex uint64
	RowCount     uint64
}

// 区间相交判断：两个闭区间 [MinKey, MaxKey] 和 [lo, hi]
func (e IndexEntry) OverlapsRange(startKey, endKey string) bool {
	return !(e.MaxKey < startKey || e.MinKey > endKey)
}

// SparseIndex part级别的稀疏主键索引，entries和granule向量一一对应
type SparseIndex struct {
	entries []IndexEntry
}

func (idx *SparseIndex) AddEntry(minKey, maxKey string, granuleIndex, rowCount uint64) {
	idx.entries = append(idx.entries, IndexEntry{
		MinKey:       minKey,
		MaxKey:       maxKey,
		GranuleIndex: granuleIndex,
		RowCount:     rowCount,
	})
}

// FindGranules 返回与[lo, hi]相交的所有granule下标
func (idx *SparseIndex) FindGranules(startKey, endKey string) []uint64 {
	var result []uint64
	for _, entry := range idx.entries {
		if entry.OverlapsRange(startKey, endKey) {
			result = append(result, entry.GranuleIndex)
		}
	}
	return result
}

// FindGranulesForKey 点查
func (idx *SparseIndex) FindGranulesForKey(key string) []uint64 {
	return idx.FindGranules(key, key)
}

func (idx *SparseIndex) Clear() {
	idx.entries = nil
}

func (idx *SparseIndex) Empty() bool {
	return len(idx.entries) == 0
}

func (idx *SparseIndex) Size() int {
	return len(idx.entries)
}

func (idx *SparseIndex) Entries() []IndexEntry {
	return idx.entries
}

// SaveToFile 编码格式：u64 entry个数 + 逐条(min_key, max_key, granule_index, row_count)
func (idx *SparseIndex) SaveToFile(path string) (int64, error) {
	var enc encoder
	enc.putUint64(uint64(len(idx.entries)))
	for _, entry := range idx.entries {
		enc.putString(entry.MinKey)
		enc.putString(entry.MaxKey)
		enc.putUint64(entry.GranuleIndex)
		enc.putUint64(entry.RowCount)
	}
	if err := file.WriteFileSync(path, enc.buf); err != nil {
		return 0, err
	}
	return int64(len(enc.buf)), nil
}

// LoadFromFile 读回SaveToFile写出的索引文件
func (idx *SparseIndex) LoadFromFile(path string) error {
	data, closeFn, err := readWholeFile(path)
	if err != nil {
		return err
	}
	defer closeFn()

	dec := newDecoder(data)
	count, err := dec.uint64()
	if err != nil {
		return errors.WithMessagef(err, "while decoding index: %s", path)
	}

	idx.entries = make([]IndexEntry, 0, count)
	for i := uint64(0); i < count; i++ {
		var entry IndexEntry
		if entry.MinKey, err = dec.string(); err != nil {
			return errors.WithMessagef(err, "while decoding index: %s", path)
		}
		if entry.MaxKey, err = dec.string(); err != nil {
			return errors.WithMessagef(err, "while decoding index: %s", path)
		}
		if entry.GranuleIndex, err = dec.uint64(); err != nil {
			return errors.WithMessagef(err, "while decoding index: %s", path)
		}
		if entry.RowCount, err = dec.uint64(); err != nil {
			return errors.WithMessagef(err, "while decoding index: %s", path)
		}
		idx.entries = append(idx.entries, entry)
	}
	return nil
}

// MergeWith 把other的entries平移granuleOffset后并入，再整体重排
func (idx *SparseIndex) MergeWith(other *SparseIndex, granuleOffset uint64) {
	for _, entry := range other.entries {
		entry.GranuleIndex += granuleOffset
		idx.entries = append(idx.entries, entry)
	}
	idx.sortEntries()
}

// MemoryUsage 估算索引占用的内存
func (idx *SparseIndex) MemoryUsage() int {
	total := 0
	for _, entry := range idx.entries {
		total += len(entry.MinKey) + len(entry.MaxKey) + 2*utils.U64Size
	}
	return total
}

// 按(min_key, granule_index)排序
func (idx *SparseIndex) sortEntries() {
	sort.Slice(idx.entries, func(i, j int) bool {
		a, b := idx.entries[i], idx.entries[j]
		if a.MinKey != b.MinKey {
			return a.MinKey < b.MinKey
		}
		return a.GranuleIndex < b.GranuleIndex
	})
}
