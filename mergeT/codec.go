package merget

import (
	"encoding/binary"
	"path/filepath"

	"mergekv/file"
	"mergekv/utils"

	"github.com/pkg/errors"
)

/*
	二进制编码约定：
	+-----------------------------------------------+
	| u64          : 8字节小端                       |
	| string       : u64长度 + 原始字节               |
	| vec<string>  : u64个数 + 逐个string             |
	| vec<u64>     : u64个数 + 逐个u64                |
	+-----------------------------------------------+
	所有多字节整数都固定为小端，保证跨机器可移植
*/

// encoder 追加式编码器，编码完一次性写文件
type encoder struct {
	buf []byte
}

func (e *encoder) putUint64(v uint64) {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], v)
	e.buf = append(e.buf, tmp[:]...)
}

func (e *encoder) putString(s string) {
	e.putUint64(uint64(len(s)))
	e.buf = append(e.buf, s...)
}

func (e *encoder) putStringSlice(strs []string) {
	e.putUint64(uint64(len(strs)))
	for _, s := range strs {
		e.putString(s)
	}
}

func (e *encoder) putUint64Slice(values []uint64) {
	e.putUint64(uint64(len(values)))
	for _, v := range values {
		e.putUint64(v)
	}
}

// decoder 对整块读进来的文件数据做顺序解码
type decoder struct {
	data []byte
	off  int
}

func newDecoder(data []byte) *decoder {
	return &decoder{data: data}
}

func (d *decoder) uint64() (uint64, error) {
	if d.off+utils.U64Size > len(d.data) {
		return 0, errors.Wrapf(ErrCorruption, "truncated u64 at offset %d", d.off)
	}
	v := binary.LittleEndian.Uint64(d.data[d.off:])
	d.off += utils.U64Size
	return v, nil
}

func (d *decoder) string() (string, error) {
	length, err := d.uint64()
	if err != nil {
		return "", err
	}
	if uint64(len(d.data)-d.off) < length {
		return "", errors.Wrapf(ErrCorruption, "truncated string of len %d at offset %d", length, d.off)
	}
	s := string(d.data[d.off : d.off+int(length)])
	d.off += int(length)
	return s, nil
}

func (d *decoder) stringSlice() ([]string, error) {
	count, err := d.uint64()
	if err != nil {
		return nil, err
	}
	strs := make([]string, 0, count)
	for i := uint64(0); i < count; i++ {
		s, err := d.string()
		if err != nil {
			return nil, err
		}
		strs = append(strs, s)
	}
	return strs, nil
}

func (d *decoder) uint64Slice() ([]uint64, error) {
	count, err := d.uint64()
	if err != nil {
		return nil, err
	}
	values := make([]uint64, 0, count)
	for i := uint64(0); i < count; i++ {
		v, err := d.uint64()
		if err != nil {
			return nil, err
		}
		values = append(values, v)
	}
	return values, nil
}

// 整文件读取，走mmap
func readWholeFile(path string) ([]byte, func() error, error) {
	reader, err := file.OpenMmapReader(path)
	if err != nil {
		return nil, nil, err
	}
	return reader.Data, reader.Close, nil
}

// WriteStringVector 写出 vec<string> 文件
func WriteStringVector(path string, strs []string) (int64, error) {
	var enc encoder
	enc.putStringSlice(strs)
	if err := file.WriteFileSync(path, enc.buf); err != nil {
		return 0, err
	}
	return int64(len(enc.buf)), nil
}

// ReadStringVector 读取 vec<string> 文件
func ReadStringVector(path string) ([]string, error) {
	data, closeFn, err := readWholeFile(path)
	if err != nil {
		return nil, err
	}
	defer closeFn()
	strs, err := newDecoder(data).stringSlice()
	if err != nil {
		return nil, errors.WithMessagef(err, "while decoding: %s", path)
	}
	return strs, nil
}

// WriteUint64Vector 写出 vec<u64> 文件
func WriteUint64Vector(path string, values []uint64) (int64, error) {
	var enc encoder
	enc.putUint64Slice(values)
	if err := file.WriteFileSync(path, enc.buf); err != nil {
		return 0, err
	}
	return int64(len(enc.buf)), nil
}

// ReadUint64Vector 读取 vec<u64> 文件
func ReadUint64Vector(path string) ([]uint64, error) {
	data, closeFn, err := readWholeFile(path)
	if err != nil {
		return nil, err
	}
	defer closeFn()
	values, err := newDecoder(data).uint64Slice()
	if err != nil {
		return nil, errors.WithMessagef(err, "while decoding: %s", path)
	}
	return values, nil
}

// WriteRowVector 把一组row按(key,value,timestamp)的顺序写成单文件
func WriteRowVector(path string, rows []utils.Row) (int64, error) {
	var enc encoder
	enc.putUint64(uint64(len(rows)))
	for _, row := range rows {
		enc.putString(row.Key)
		enc.putString(row.Value)
		enc.putUint64(row.Timestamp)
	}
	if err := file.WriteFileSync(path, enc.buf); err != nil {
		return 0, err
	}
	return int64(len(enc.buf)), nil
}

// ReadRowVector 读取WriteRowVector写出的文件
func ReadRowVector(path string) ([]utils.Row, error) {
	data, closeFn, err := readWholeFile(path)
	if err != nil {
		return nil, err
	}
	defer closeFn()
	dec := newDecoder(data)
	count, err := dec.uint64()
	if err != nil {
		return nil, errors.WithMessagef(err, "while decoding: %s", path)
	}
	rows := make([]utils.Row, 0, count)
	for i := uint64(0); i < count; i++ {
		key, err := dec.string()
		if err != nil {
			return nil, errors.WithMessagef(err, "while decoding: %s", path)
		}
		value, err := dec.string()
		if err != nil {
			return nil, errors.WithMessagef(err, "while decoding: %s", path)
		}
		ts, err := dec.uint64()
		if err != nil {
			return nil, errors.WithMessagef(err, "while decoding: %s", path)
		}
		rows = append(rows, utils.NewRow(key, value, ts))
	}
	return rows, nil
}

// WriteGranuleFiles 把granule拆成三个列文件写到partDir下，返回写出的总字节数
func WriteGranuleFiles(partDir string, g *Granule, granuleIdx int) (int64, error) {
	rows := g.Rows()
	keys := make([]string, 0, len(rows))
	values := make([]string, 0, len(rows))
	timestamps := make([]uint64, 0, len(rows))
	for _, row := range rows {
		keys = append(keys, row.Key)
		values = append(values, row.Value)
		timestamps = append(timestamps, row.Timestamp)
	}

	var total int64
	n, err := WriteStringVector(filepath.Join(partDir, utils.GranuleKeysFilename(granuleIdx)), keys)
	if err != nil {
		return 0, err
	}
	total += n
	n, err = WriteStringVector(filepath.Join(partDir, utils.GranuleValuesFilename(granuleIdx)), values)
	if err != nil {
		return 0, err
	}
	total += n
	n, err = WriteUint64Vector(filepath.Join(partDir, utils.GranuleTimestampsFilename(granuleIdx)), timestamps)
	if err != nil {
		return 0, err
	}
	total += n
	return total, nil
}

// ReadGranuleFiles 读回granule的三个列文件并还原granule
// 三个列文件的行数必须一致，不一致视为数据损坏
func ReadGranuleFiles(partDir string, granuleIdx int) (*Granule, error) {
	keys, err := ReadStringVector(filepath.Join(partDir, utils.GranuleKeysFilename(granuleIdx)))
	if err != nil {
		return nil, err
	}
	values, err := ReadStringVector(filepath.Join(partDir, utils.GranuleValuesFilename(granuleIdx)))
	if err != nil {
		return nil, err
	}
	timestamps, err := ReadUint64Vector(filepath.Join(partDir, utils.GranuleTimestampsFilename(granuleIdx)))
	if err != nil {
		return nil, err
	}

	if len(keys) != len(values) || len(keys) != len(timestamps) {
		return nil, errors.Wrapf(ErrCorruption,
			"inconsistent granule column sizes in %s: keys=%d values=%d timestamps=%d",
			partDir, len(keys), len(values), len(timestamps))
	}

	g := NewGranule()
	for i := range keys {
		if err := g.AddRow(utils.NewRow(keys[i], values[i], timestamps[i])); err != nil {
			return nil, errors.Wrapf(ErrCorruption, "granule %d in %s oversized: %v", granuleIdx, partDir, err)
		}
	}
	g.Sort()
	return g, nil
}
