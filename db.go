package kv

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"mergekv/file"
	merget "mergekv/mergeT"
	"mergekv/utils"
)

// KvAPI 对外暴露的引擎接口
type KvAPI interface {
	Insert(key, value string, timestamp uint64) error
	InsertRow(row utils.Row) error
	Query(startKey, endKey string) ([]utils.Row, error)
	QueryKey(key string) ([]utils.Row, error)
	FlushMemTable() error
	MergePartsSync() error
	Optimize() error
	Close() error
}

// DB 引擎对外的门面，持有memtable、parts向量和后台merge协程
//
// 锁纪律：memtable内部自带一把锁；partsMu保护parts向量；两把锁绝不嵌套。
// flush在释放memtable锁之后才去拿partsMu，merge的磁盘IO全程不持partsMu。
type DB struct {
	opt    *Options
	mt     *merget.MemTable
	merger *merget.Merger
	cache  *merget.GranuleCache
	stats  *Stats

	partsMu sync.Mutex
	parts   []*merget.Part

	nextPartID uint64 // 原子递增，严格大于磁盘上出现过的一切part_id
	closed     int32  // 原子exchange标志，保证Close幂等
	closer     *utils.Closer
}

// Open 创建(或恢复)一个引擎实例
// 启动流程：建目录 -> 扫描已有part -> 设置nextPartID -> 可选启动后台worker
func Open(opt *Options) (*DB, error) {
	if err := file.CreateDirs(opt.WorkDir); err != nil {
		return nil, err
	}

	db := &DB{
		opt:        opt,
		mt:         merget.NewMemTable(),
		cache:      merget.NewGranuleCache(opt.GranuleCacheSize),
		stats:      newStats(),
		nextPartID: 1,
		closer:     utils.NewCloser(),
	}
	db.merger = merget.NewMerger(opt.WorkDir, db.cache)

	if err := db.loadExistingParts(); err != nil {
		return nil, err
	}

	if opt.EnableBackgroundMerge {
		db.closer.Add(1)
		go db.runBackgroundWorker()
	}
	return db, nil
}

// 扫描WorkDir下的part_<id>目录，按id升序恢复
// 目录名解析不了的直接跳过；有目录但没有metadata.bin的视为未发布，不加载
func (db *DB) loadExistingParts() error {
	names, err := file.SubDirNames(db.opt.WorkDir)
	if err != nil {
		return err
	}

	var ids []uint64
	for _, name := range names {
		if id, ok := utils.ParsePartDirName(name); ok {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, id := range ids {
		p := merget.NewPart(id, db.opt.WorkDir, db.cache)
		if !p.ExistsOnDisk() {
			continue
		}
		// 元信息马上读出来，part_count/total_rows不依赖懒加载
		if err := p.LoadMetadata(); err != nil {
			// 单个part损坏不拖垮整个引擎
			utils.Err(err)
			continue
		}
		db.parts = append(db.parts, p)
	}

	if len(ids) > 0 {
		atomic.StoreUint64(&db.nextPartID, ids[len(ids)-1]+1)
	}
	return nil
}

// 分配一个新的part_id
func (db *DB) allocPartID() uint64 {
	return atomic.AddUint64(&db.nextPartID, 1) - 1
}

// Insert 写入一条(key, value, timestamp)
func (db *DB) Insert(key, value string, timestamp uint64) error {
	return db.InsertRow(utils.NewRow(key, value, timestamp))
}

// InsertRow 写入一行；memtable锁内只做插入，flush判断在锁外进行
func (db *DB) InsertRow(row utils.Row) error {
	db.mt.Insert(row)
	db.stats.inserts.Inc()
	return db.triggerFlushIfNeeded()
}

// memtable行数到达阈值就flush，可能在插入线程上同步执行
func (db *DB) triggerFlushIfNeeded() error {
	if db.mt.Size() >= db.opt.MemTableFlushThreshold {
		return db.FlushMemTable()
	}
	return nil
}

// FlushMemTable 把memtable整体落成一个新part
// 快照+清空在memtable锁下一步完成；写盘不持任何引擎锁；
// 写失败时不会有part被发布
func (db *DB) FlushMemTable() error {
	rows := db.mt.DrainRows()
	if len(rows) == 0 {
		return nil
	}

	part := merget.NewPart(db.allocPartID(), db.opt.WorkDir, db.cache)
	if err := part.WriteFromMemtableRows(rows); err != nil {
		return err
	}

	db.partsMu.Lock()
	db.parts = append(db.parts, part)
	db.partsMu.Unlock()

	db.stats.flushes.Inc()
	return nil
}

// Query 范围查询，融合memtable和所有覆盖该区间的part
// 结果按(key, timestamp)排序，相邻的相同(key, timestamp)只保留第一条
func (db *DB) Query(startKey, endKey string) ([]utils.Row, error) {
	result := db.mt.Query(startKey, endKey)

	db.partsMu.Lock()
	for _, p := range db.parts {
		if !p.OverlapsRange(startKey, endKey) {
			continue
		}
		rows, err := p.Query(startKey, endKey)
		if err != nil {
			db.partsMu.Unlock()
			return nil, err
		}
		result = append(result, rows...)
	}
	db.partsMu.Unlock()

	utils.SortRows(result)
	return dedupSameEvent(result), nil
}

// QueryKey 点查，返回该key的全部历史版本
func (db *DB) QueryKey(key string) ([]utils.Row, error) {
	return db.Query(key, key)
}

// 排序后去掉相邻的重复事件，保留先出现的那条
func dedupSameEvent(rows []utils.Row) []utils.Row {
	if len(rows) < 2 {
		return rows
	}
	out := rows[:1]
	for _, row := range rows[1:] {
		if !out[len(out)-1].SameEvent(row) {
			out = append(out, row)
		}
	}
	return out
}

// MergePartsSync 前台同步执行一轮merge(如果达到merge条件)
func (db *DB) MergePartsSync() error {
	if db.shouldTriggerMerge() {
		return db.performMerge()
	}
	return nil
}

// Optimize 先flush，再反复merge直到part数降到MaxParts以内
// 一轮下来part数没变化(挑不出正分候选)就停，避免空转
func (db *DB) Optimize() error {
	if err := db.FlushMemTable(); err != nil {
		return err
	}
	for db.shouldTriggerMerge() {
		before := db.PartCount()
		if err := db.performMerge(); err != nil {
			return err
		}
		if db.PartCount() >= before {
			break
		}
	}
	return nil
}

// Close 幂等关闭：停掉后台worker，最后再flush一次memtable
// 不打断在途的flush/merge，等它们自然结束
func (db *DB) Close() error {
	if !atomic.CompareAndSwapInt32(&db.closed, 0, 1) {
		return nil
	}
	if db.opt.EnableBackgroundMerge {
		db.closer.Close()
	}
	return db.FlushMemTable()
}

// 后台worker：周期醒来检查flush和merge，单次失败只打日志不退出
func (db *DB) runBackgroundWorker() {
	defer db.closer.Done()

	ticker := time.NewTicker(db.opt.MergeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-db.closer.CloseSignal:
			return
		case <-ticker.C:
			db.backgroundPass()
		}
	}
}

func (db *DB) backgroundPass() {
	if err := db.triggerFlushIfNeeded(); err != nil {
		db.onBackgroundError(err)
		return
	}
	if db.shouldTriggerMerge() {
		if err := db.performMerge(); err != nil {
			db.onBackgroundError(err)
		}
	}
}

func (db *DB) onBackgroundError(err error) {
	utils.Err(err)
	if db.opt.OnBackgroundError != nil {
		db.opt.OnBackgroundError(err)
	}
}

func (db *DB) shouldTriggerMerge() bool {
	db.partsMu.Lock()
	defer db.partsMu.Unlock()
	return len(db.parts) > db.opt.MaxParts
}

// performMerge 执行一轮merge：
// 1. partsMu下挑出得分最高的候选，把对应part从parts向量里移出
// 2. 释放partsMu后做真正的合并IO
// 3. 重新拿partsMu发布合并产物
// 读者看到的parts向量要么含源part要么含新part，不会双份计数
func (db *DB) performMerge() error {
	var toMerge []*merget.Part

	db.partsMu.Lock()
	if len(db.parts) < 2 {
		db.partsMu.Unlock()
		return nil
	}

	candidates := db.merger.SelectMergeCandidates(db.parts, 1)
	if len(candidates) == 0 {
		db.partsMu.Unlock()
		return nil
	}
	best := candidates[0]

	selected := make(map[int]bool, len(best.PartIndices))
	for _, idx := range best.PartIndices {
		selected[idx] = true
	}

	remaining := db.parts[:0]
	for i, p := range db.parts {
		if selected[i] {
			toMerge = append(toMerge, p)
		} else {
			remaining = append(remaining, p)
		}
	}
	db.parts = remaining
	db.partsMu.Unlock()

	merged, err := db.merger.MergeParts(toMerge, db.allocPartID())
	if err != nil {
		// 合并失败，把源part放回去，保证数据不丢
		db.partsMu.Lock()
		db.parts = append(db.parts, toMerge...)
		db.partsMu.Unlock()
		return err
	}

	db.partsMu.Lock()
	db.parts = append(db.parts, merged)
	db.partsMu.Unlock()

	db.stats.merges.Inc()
	db.stats.mergedRows.Add(int(merged.Meta().RowCount))
	return nil
}

// PartCount 当前发布的part个数
func (db *DB) PartCount() int {
	db.partsMu.Lock()
	defer db.partsMu.Unlock()
	return len(db.parts)
}

// TotalRows memtable和所有part的总行数
func (db *DB) TotalRows() uint64 {
	total := uint64(db.mt.Size())

	db.partsMu.Lock()
	for _, p := range db.parts {
		total += p.Meta().RowCount
	}
	db.partsMu.Unlock()
	return total
}

// MemoryUsage 内存占用估计值，只用于观测
func (db *DB) MemoryUsage() uint64 {
	total := uint64(db.mt.MemoryUsage())

	db.partsMu.Lock()
	for _, p := range db.parts {
		total += uint64(p.MemoryUsage())
	}
	db.partsMu.Unlock()
	return total
}

// DiskUsage 所有part的磁盘占用
func (db *DB) DiskUsage() uint64 {
	var total uint64

	db.partsMu.Lock()
	for _, p := range db.parts {
		total += p.DiskUsage()
	}
	db.partsMu.Unlock()
	return total
}

// Stats 引擎计数器
func (db *DB) Stats() *Stats {
	return db.stats
}
