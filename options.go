package kv

import "time"

// Options mergekv 总的配置
type Options struct {
	WorkDir                string        // 数据目录，part子目录都在这下面
	MemTableFlushThreshold int           // memtable行数达到阈值触发flush
	MaxParts               int           // part数超过该值后才允许merge
	MergeInterval          time.Duration // 后台worker的检查周期
	EnableBackgroundMerge  bool          // 是否启动后台merge协程
	GranuleCacheSize       int           // granule读缓存容量(按granule个数)，<=0表示禁用

	// OnBackgroundError 后台worker吞掉一个错误后的回调，测试钩子
	// 默认nil：只打日志，损坏的part留在原地不做隔离
	OnBackgroundError func(error)
}

// NewDefaultOptions 返回默认的options
func NewDefaultOptions() *Options {
	return &Options{
		WorkDir:                "./mergekv_data",
		MemTableFlushThreshold: 1000,
		MaxParts:               10,
		MergeInterval:          30 * time.Second,
		EnableBackgroundMerge:  true,
		GranuleCacheSize:       64,
	}
}
