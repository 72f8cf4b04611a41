package merget

import "github.com/pkg/errors"

var (
	// ErrGranuleFull granule已满还在add
	ErrGranuleFull = errors.New("granule is full, cannot add more rows")
	// ErrGranuleUnsorted 对没有排序的granule做范围查询
	ErrGranuleUnsorted = errors.New("granule must be sorted before querying")
	// ErrIterExhausted merge迭代器已经耗尽还在next
	ErrIterExhausted = errors.New("no more rows to merge")
	// ErrMergeEmptyInput 对空的part集合做merge
	ErrMergeEmptyInput = errors.New("cannot merge empty parts")
	// ErrMergeNoRows 非空part合并之后必须产出行
	ErrMergeNoRows = errors.New("merge resulted in empty rows")
	// ErrEmptyWrite 不允许写出空的part
	ErrEmptyWrite = errors.New("cannot write empty rows")
	// ErrCorruption 磁盘数据损坏：列文件行数不一致、编码流残缺等
	ErrCorruption = errors.New("corrupted part data")
)
