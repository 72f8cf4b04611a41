package utils

import (
	"strconv"
	"strings"
)

// 根据目录名解析出partID，目录名形如 part_<id>
// 不是part目录或者后缀不是数字的返回false，启动扫描时直接跳过
func ParsePartDirName(dirName string) (uint64, bool) {
	if !strings.HasPrefix(dirName, PartDirPrefix) {
		return 0, false
	}
	idStr := strings.TrimPrefix(dirName, PartDirPrefix)
	id, err := strconv.ParseUint(idStr, 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}
