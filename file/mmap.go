package file

import (
	"os"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// MmapReader 只读mmap文件，part的列文件和索引文件都是整文件读取再解码
// part发布之后不可变，所以映射期间不会有并发写
type MmapReader struct {
	Data []byte
	fd   *os.File
}

// OpenMmapReader 只读打开path并mmap整个文件
func OpenMmapReader(path string) (*MmapReader, error) {
	fd, err := os.OpenFile(path, os.O_RDONLY, 0)
	if err != nil {
		return nil, errors.Wrapf(err, "while opening: %s", path)
	}
	info, err := fd.Stat()
	if err != nil {
		_ = fd.Close()
		return nil, errors.Wrapf(err, "while stating: %s", path)
	}
	reader := &MmapReader{fd: fd}
	if info.Size() > 0 {
		data, err := unix.Mmap(int(fd.Fd()), 0, int(info.Size()), unix.PROT_READ, unix.MAP_SHARED)
		if err != nil {
			_ = fd.Close()
			return nil, errors.Wrapf(err, "while mmaping: %s", path)
		}
		reader.Data = data
	}
	return reader, nil
}

// Close 解除映射并关闭fd
func (r *MmapReader) Close() error {
	if r.Data != nil {
		if err := unix.Munmap(r.Data); err != nil {
			_ = r.fd.Close()
			return errors.Wrap(err, "while munmaping")
		}
		r.Data = nil
	}
	return r.fd.Close()
}

// Fdatasync 将fd的数据部分刷盘
func Fdatasync(fd *os.File) error {
	return unix.Fdatasync(int(fd.Fd()))
}
