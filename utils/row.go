package utils

import "sort"

// Row 是最外层的写入结构，一条记录对应一个(key, value, timestamp)三元组
// 构造之后不允许修改
type Row struct {
	Key       string
	Value     string
	Timestamp uint64
}

// 创建Row
func NewRow(key, value string, timestamp uint64) Row {
	return Row{
		Key:       key,
		Value:     value,
		Timestamp: timestamp,
	}
}

// 全序比较：先比key，key相同再比timestamp，value不参与排序
func (r Row) Less(other Row) bool {
	if r.Key != other.Key {
		return r.Key < other.Key
	}
	return r.Timestamp < other.Timestamp
}

// 判断是不是同一个事件，合并去重时只看(key, timestamp)
func (r Row) SameEvent(other Row) bool {
	return r.Key == other.Key && r.Timestamp == other.Timestamp
}

// 估算Row占用的内存大小，用于memtable的内存统计
func (r Row) Size() int {
	return U64Size + len(r.Key) + len(r.Value)
}

// 对rows原地排序，按照(key, timestamp)从小到大
func SortRows(rows []Row) {
	sort.Slice(rows, func(i, j int) bool {
		return rows[i].Less(rows[j])
	})
}

// 判断rows是否已经按照(key, timestamp)排好序
func RowsSorted(rows []Row) bool {
	return sort.SliceIsSorted(rows, func(i, j int) bool {
		return rows[i].Less(rows[j])
	})
}
