package utils

import (
	"fmt"
	"os"
	"unsafe"
)

const (
	// GranuleSize 每个granule最多容纳的行数
	GranuleSize = 8192
)

// file
const (
	MetadataFilename = "metadata.bin"
	IndexFilename    = "primary.idx"
	PartDirPrefix    = "part_"

	DefaultFileMode os.FileMode = 0666
	DefaultDirMode  os.FileMode = 0755
)

const U64Size = int(unsafe.Sizeof(uint64(0)))

// 根据partID拼接part目录名
func PartDirName(partID uint64) string {
	return fmt.Sprintf("%s%d", PartDirPrefix, partID)
}

// granule的三个列文件名
func GranuleKeysFilename(idx int) string {
	return fmt.Sprintf("granule_%d_keys.bin", idx)
}
func GranuleValuesFilename(idx int) string {
	return fmt.Sprintf("granule_%d_values.bin", idx)
}
func GranuleTimestampsFilename(idx int) string {
	return fmt.Sprintf("granule_%d_timestamps.bin", idx)
}
