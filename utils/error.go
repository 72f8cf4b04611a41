package utils

import (
	"fmt"
	"log"
	"path/filepath"
	"runtime"
	"strconv"

	"github.com/pkg/errors"
)

func Panic(err error) {
	if err != nil {
		panic(err)
	}
}

func CondPanic(condition bool, err error) {
	if condition {
		Panic(err)
	}
}

func AssertTruef(b bool, format string, args ...interface{}) {
	if !b {
		log.Fatalf("%+v", errors.Errorf(format, args...))
	}
}

// 获取调用位置，打日志用
func location(deep int) string {
	_, file, line, ok := runtime.Caller(deep)
	if !ok {
		file = "???"
		line = 0
	}
	return filepath.Base(file) + ":" + strconv.Itoa(line)
}

// Err 打印带位置的错误日志并原样返回err，后台worker吞错误时用
func Err(err error) error {
	if err != nil {
		fmt.Printf("%s %s\n", location(2), err)
	}
	return err
}
