package file

import (
	"io/fs"
	"io/ioutil"
	"os"
	"path/filepath"
	"sort"

	"mergekv/utils"

	"github.com/pkg/errors"
)

// 创建目录，已存在时不报错
func CreateDirs(dir string) error {
	if err := os.MkdirAll(dir, utils.DefaultDirMode); err != nil {
		return errors.Wrapf(err, "while creating dir: %s", dir)
	}
	return nil
}

// WriteFileSync 将data一次性写入path并fdatasync落盘
// part的发布依赖metadata文件的存在性，所以所有part文件都要先刷盘再发布
func WriteFileSync(path string, data []byte) error {
	fd, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, utils.DefaultFileMode)
	if err != nil {
		return errors.Wrapf(err, "while opening: %s", path)
	}
	if _, err = fd.Write(data); err != nil {
		_ = fd.Close()
		return errors.Wrapf(err, "while writing: %s", path)
	}
	if err = Fdatasync(fd); err != nil {
		_ = fd.Close()
		return errors.Wrapf(err, "while syncing: %s", path)
	}
	if err = fd.Close(); err != nil {
		return errors.Wrapf(err, "while closing: %s", path)
	}
	return nil
}

// 判断文件是否存在
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// 返回path文件的大小，不存在时返回0
func FileSize(path string) int64 {
	info, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return info.Size()
}

// DirSize 统计dir下所有普通文件的总大小
func DirSize(dir string) int64 {
	var total int64
	_ = filepath.Walk(dir, func(_ string, info fs.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if info.Mode().IsRegular() {
			total += info.Size()
		}
		return nil
	})
	return total
}

// SubDirNames 返回dir下所有子目录的名字，按字典序
func SubDirNames(dir string) ([]string, error) {
	entries, err := ioutil.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "while scanning dir: %s", dir)
	}
	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// RemoveTree 递归删除dir
func RemoveTree(dir string) error {
	if err := os.RemoveAll(dir); err != nil {
		return errors.Wrapf(err, "while removing dir: %s", dir)
	}
	return nil
}
