package merget

import (
	"os"
	"path/filepath"
	"testing"

	"mergekv/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStringVectorRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "strings.bin")
	in := []string{"alpha", "", "中文也要能存", "beta"}

	_, err := WriteStringVector(path, in)
	require.NoError(t, err)

	out, err := ReadStringVector(path)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestUint64VectorRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "u64s.bin")
	in := []uint64{0, 1, 1<<63 - 1, ^uint64(0)}

	_, err := WriteUint64Vector(path, in)
	require.NoError(t, err)

	out, err := ReadUint64Vector(path)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestRowVectorRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rows.bin")
	in := []utils.Row{
		utils.NewRow("k1", "v1", 100),
		utils.NewRow("k2", "", 200),
	}

	_, err := WriteRowVector(path, in)
	require.NoError(t, err)

	out, err := ReadRowVector(path)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestLittleEndianOnDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "le.bin")
	_, err := WriteUint64Vector(path, []uint64{1})
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Len(t, data, 16)
	// count=1 小端
	assert.Equal(t, []byte{1, 0, 0, 0, 0, 0, 0, 0}, data[:8])
	assert.Equal(t, []byte{1, 0, 0, 0, 0, 0, 0, 0}, data[8:])
}

func TestDecodeTruncatedStream(t *testing.T) {
	dir := t.TempDir()

	// 声明了2个string但数据只有1个
	path := filepath.Join(dir, "bad.bin")
	var enc encoder
	enc.putUint64(2)
	enc.putString("only-one")
	require.NoError(t, os.WriteFile(path, enc.buf, 0666))

	_, err := ReadStringVector(path)
	require.ErrorIs(t, err, ErrCorruption)

	// string长度超过剩余数据
	path2 := filepath.Join(dir, "bad2.bin")
	var enc2 encoder
	enc2.putUint64(1)
	enc2.putUint64(1 << 40)
	require.NoError(t, os.WriteFile(path2, enc2.buf, 0666))

	_, err = ReadStringVector(path2)
	require.ErrorIs(t, err, ErrCorruption)
}

func TestGranuleFilesRoundTrip(t *testing.T) {
	dir := t.TempDir()

	g := NewGranule()
	require.NoError(t, g.AddRow(utils.NewRow("b", "v2", 2)))
	require.NoError(t, g.AddRow(utils.NewRow("a", "v1", 1)))
	g.Sort()

	_, err := WriteGranuleFiles(dir, g, 0)
	require.NoError(t, err)

	loaded, err := ReadGranuleFiles(dir, 0)
	require.NoError(t, err)
	assert.Equal(t, g.Rows(), loaded.Rows())
	assert.Equal(t, "a", loaded.MinKey())
	assert.Equal(t, "b", loaded.MaxKey())
}

func TestGranuleColumnCountMismatch(t *testing.T) {
	dir := t.TempDir()

	// keys 2行、values 1行、timestamps 2行 => 数据损坏
	_, err := WriteStringVector(filepath.Join(dir, utils.GranuleKeysFilename(0)), []string{"a", "b"})
	require.NoError(t, err)
	_, err = WriteStringVector(filepath.Join(dir, utils.GranuleValuesFilename(0)), []string{"v"})
	require.NoError(t, err)
	_, err = WriteUint64Vector(filepath.Join(dir, utils.GranuleTimestampsFilename(0)), []uint64{1, 2})
	require.NoError(t, err)

	_, err = ReadGranuleFiles(dir, 0)
	require.ErrorIs(t, err, ErrCorruption)
}
