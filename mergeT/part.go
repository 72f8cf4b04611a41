package merget

import (
	"math"
	"path/filepath"
	"time"

	"mergekv/file"
	"mergekv/utils"

	"github.com/pkg/errors"
)

// PartMetadata part的元信息，持久化在metadata.bin里，字段顺序即编码顺序
type PartMetadata struct {
	PartID       uint64
	MinKey       string
	MaxKey       string
	MinTimestamp uint64
	MaxTimestamp uint64
	RowCount     uint64
	GranuleCount uint64
	DiskSize     uint64
	CreationTime uint64
}

// Part 不可变的磁盘单元：metadata + 若干granule + 稀疏索引
// 发布(进入coordinator的parts向量)之后不再修改，发布的见证就是metadata.bin的存在
type Part struct {
	meta       PartMetadata
	basePath   string
	granules   []*Granule
	index      SparseIndex
	loaded     bool
	metaLoaded bool
	cache      *GranuleCache
}

// NewPart 只构造内存对象，不碰磁盘
func NewPart(partID uint64, basePath string, cache *GranuleCache) *Part {
	return &Part{
		meta:     PartMetadata{PartID: partID},
		basePath: basePath,
		cache:    cache,
	}
}

// Dir part所在的目录 <base_path>/part_<id>
func (p *Part) Dir() string {
	return filepath.Join(p.basePath, utils.PartDirName(p.meta.PartID))
}

func (p *Part) Meta() PartMetadata {
	return p.meta
}

func (p *Part) Index() *SparseIndex {
	return &p.index
}

func (p *Part) IsLoaded() bool {
	return p.loaded
}

// WriteGranules 把一组granule落成一个完整的part
// 写入顺序：granule列文件 -> primary.idx -> metadata.bin
// metadata.bin最后写，它是part在磁盘上存在的判定依据
func (p *Part) WriteGranules(granules []*Granule) error {
	if len(granules) == 0 {
		return errors.WithStack(ErrEmptyWrite)
	}

	if err := file.CreateDirs(p.Dir()); err != nil {
		return err
	}

	for _, g := range granules {
		g.Sort()
	}
	p.granules = granules
	p.updateMetadata(granules)
	p.buildIndex(granules)

	var diskSize int64
	for i, g := range granules {
		n, err := WriteGranuleFiles(p.Dir(), g, i)
		if err != nil {
			return err
		}
		diskSize += n
	}

	n, err := p.index.SaveToFile(filepath.Join(p.Dir(), utils.IndexFilename))
	if err != nil {
		return err
	}
	diskSize += n
	p.meta.DiskSize = uint64(diskSize)

	if err := p.saveMetadata(); err != nil {
		return err
	}
	p.loaded = true
	p.metaLoaded = true
	return nil
}

// WriteFromMemtableRows memtable flush和merge产出都走这条路径：
// 排序 -> 按GranuleSize切块 -> 写盘
func (p *Part) WriteFromMemtableRows(rows []utils.Row) error {
	if len(rows) == 0 {
		return errors.WithStack(ErrEmptyWrite)
	}

	sorted := make([]utils.Row, len(rows))
	copy(sorted, rows)
	utils.SortRows(sorted)

	return p.WriteGranules(chunkSortedRows(sorted))
}

// Query 范围查询，先用part级别的key范围剪枝，再用稀疏索引挑granule
func (p *Part) Query(startKey, endKey string) ([]utils.Row, error) {
	if !p.loaded {
		if err := p.Load(); err != nil {
			return nil, err
		}
	}

	if !p.OverlapsRange(startKey, endKey) {
		return nil, nil
	}

	var result []utils.Row
	for _, granuleIdx := range p.index.FindGranules(startKey, endKey) {
		if granuleIdx >= uint64(len(p.granules)) {
			continue
		}
		rows, err := p.granules[granuleIdx].QueryRange(startKey, endKey)
		if err != nil {
			return nil, err
		}
		result = append(result, rows...)
	}
	return result, nil
}

// QueryKey 点查
func (p *Part) QueryKey(key string) ([]utils.Row, error) {
	return p.Query(key, key)
}

// Load 读回整个part：metadata -> primary.idx -> 所有granule
func (p *Part) Load() error {
	if p.loaded {
		return nil
	}

	if !p.ExistsOnDisk() {
		return errors.Errorf("part does not exist on disk: %s", p.Dir())
	}

	if err := p.LoadMetadata(); err != nil {
		return err
	}
	if err := p.index.LoadFromFile(filepath.Join(p.Dir(), utils.IndexFilename)); err != nil {
		return err
	}

	p.granules = make([]*Granule, 0, p.meta.GranuleCount)
	for i := 0; i < int(p.meta.GranuleCount); i++ {
		g, err := p.loadGranule(i)
		if err != nil {
			return err
		}
		p.granules = append(p.granules, g)
	}

	p.loaded = true
	return nil
}

// 单个granule的读取，优先走缓存
func (p *Part) loadGranule(granuleIdx int) (*Granule, error) {
	key := granuleCacheKey(p.Dir(), granuleIdx)
	if g, ok := p.cache.Get(key); ok {
		return g, nil
	}
	g, err := ReadGranuleFiles(p.Dir(), granuleIdx)
	if err != nil {
		return nil, err
	}
	p.cache.Set(key, g)
	return g, nil
}

// Unload 释放内存里的granule，metadata保留
func (p *Part) Unload() {
	p.granules = nil
	p.loaded = false
}

// GetAllRows 按granule顺序取出part里的全部行，merge时用
func (p *Part) GetAllRows() ([]utils.Row, error) {
	if !p.loaded {
		if err := p.Load(); err != nil {
			return nil, err
		}
	}

	result := make([]utils.Row, 0, p.meta.RowCount)
	for _, g := range p.granules {
		result = append(result, g.Rows()...)
	}
	return result, nil
}

// metadata.bin编码：字段按PartMetadata声明顺序逐个写出
func (p *Part) saveMetadata() error {
	var enc encoder
	enc.putUint64(p.meta.PartID)
	enc.putString(p.meta.MinKey)
	enc.putString(p.meta.MaxKey)
	enc.putUint64(p.meta.MinTimestamp)
	enc.putUint64(p.meta.MaxTimestamp)
	enc.putUint64(p.meta.RowCount)
	enc.putUint64(p.meta.GranuleCount)
	enc.putUint64(p.meta.DiskSize)
	enc.putUint64(p.meta.CreationTime)
	return file.WriteFileSync(filepath.Join(p.Dir(), utils.MetadataFilename), enc.buf)
}

// LoadMetadata 读回metadata.bin，part不在磁盘上时报错
func (p *Part) LoadMetadata() error {
	if p.metaLoaded {
		return nil
	}
	path := filepath.Join(p.Dir(), utils.MetadataFilename)
	data, closeFn, err := readWholeFile(path)
	if err != nil {
		return err
	}
	defer closeFn()

	dec := newDecoder(data)
	meta := PartMetadata{}
	readErr := func() error {
		if meta.PartID, err = dec.uint64(); err != nil {
			return err
		}
		if meta.MinKey, err = dec.string(); err != nil {
			return err
		}
		if meta.MaxKey, err = dec.string(); err != nil {
			return err
		}
		if meta.MinTimestamp, err = dec.uint64(); err != nil {
			return err
		}
		if meta.MaxTimestamp, err = dec.uint64(); err != nil {
			return err
		}
		if meta.RowCount, err = dec.uint64(); err != nil {
			return err
		}
		if meta.GranuleCount, err = dec.uint64(); err != nil {
			return err
		}
		if meta.DiskSize, err = dec.uint64(); err != nil {
			return err
		}
		if meta.CreationTime, err = dec.uint64(); err != nil {
			return err
		}
		return nil
	}()
	if readErr != nil {
		return errors.WithMessagef(readErr, "while decoding metadata: %s", path)
	}

	p.meta = meta
	p.metaLoaded = true
	return nil
}

// ExistsOnDisk part在磁盘上存在 = part目录下有metadata.bin
func (p *Part) ExistsOnDisk() bool {
	return file.Exists(filepath.Join(p.Dir(), utils.MetadataFilename))
}

// DeleteFromDisk 整目录删除，merge消费掉源part之后调用
func (p *Part) DeleteFromDisk() error {
	if file.Exists(p.Dir()) {
		if err := file.RemoveTree(p.Dir()); err != nil {
			return err
		}
	}
	p.Unload()
	return nil
}

// DiskUsage 统计part目录下所有文件的实际大小
func (p *Part) DiskUsage() uint64 {
	if !p.ExistsOnDisk() {
		return 0
	}
	return uint64(file.DirSize(p.Dir()))
}

// MemoryUsage 估算part当前占用的内存
func (p *Part) MemoryUsage() int {
	total := p.index.MemoryUsage()
	for _, g := range p.granules {
		total += g.MemoryUsage()
	}
	return total
}

// OverlapsRange part的key范围与[lo, hi]是否相交
func (p *Part) OverlapsRange(startKey, endKey string) bool {
	return !(p.meta.MaxKey < startKey || p.meta.MinKey > endKey)
}

// 根据granules重算元信息
func (p *Part) updateMetadata(granules []*Granule) {
	p.meta.GranuleCount = uint64(len(granules))
	p.meta.RowCount = 0
	p.meta.CreationTime = uint64(time.Now().Unix())

	if len(granules) == 0 {
		return
	}

	p.meta.MinKey = granules[0].MinKey()
	p.meta.MaxKey = granules[len(granules)-1].MaxKey()

	minTS := uint64(math.MaxUint64)
	maxTS := uint64(0)
	for _, g := range granules {
		p.meta.RowCount += uint64(g.Size())
		for _, row := range g.Rows() {
			if row.Timestamp < minTS {
				minTS = row.Timestamp
			}
			if row.Timestamp > maxTS {
				maxTS = row.Timestamp
			}
		}
	}
	p.meta.MinTimestamp = minTS
	p.meta.MaxTimestamp = maxTS
}

// 每个非空granule建一条索引
func (p *Part) buildIndex(granules []*Granule) {
	p.index.Clear()
	for i, g := range granules {
		if !g.IsEmpty() {
			p.index.AddEntry(g.MinKey(), g.MaxKey(), uint64(i), uint64(g.Size()))
		}
	}
}
