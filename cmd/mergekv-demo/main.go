package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	kv "mergekv"
	merget "mergekv/mergeT"
	"mergekv/utils"

	"github.com/joho/godotenv"
)

// 环境变量覆盖默认配置，.env文件可选
func loadOptions() *kv.Options {
	_ = godotenv.Load()

	opt := kv.NewDefaultOptions()
	opt.WorkDir = "./data/demo"
	opt.EnableBackgroundMerge = false

	if dir := os.Getenv("MERGEKV_WORKDIR"); dir != "" {
		opt.WorkDir = dir
	}
	if v := os.Getenv("MERGEKV_FLUSH_THRESHOLD"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			opt.MemTableFlushThreshold = n
		}
	}
	if v := os.Getenv("MERGEKV_MAX_PARTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			opt.MaxParts = n
		}
	}
	if v := os.Getenv("MERGEKV_MERGE_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			opt.MergeInterval = d
			opt.EnableBackgroundMerge = true
		}
	}
	return opt
}

func must(err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "mergekv-demo: %v\n", err)
		os.Exit(1)
	}
}

func printRows(rows []utils.Row) {
	for _, row := range rows {
		fmt.Printf("  %s -> %s (ts: %d)\n", row.Key, row.Value, row.Timestamp)
	}
}

func demoBasicOperations(opt *kv.Options) {
	fmt.Println("=== Basic Operations ===")

	db, err := kv.Open(opt)
	must(err)

	must(db.Insert("key1", "value1", 1000))
	must(db.Insert("key2", "value2", 2000))
	must(db.Insert("key3", "value3", 3000))
	must(db.Insert("key1", "updated_value1", 4000))

	rows, err := db.QueryKey("key1")
	must(err)
	fmt.Printf("key1 has %d versions:\n", len(rows))
	printRows(rows)

	rows, err = db.Query("key1", "key3")
	must(err)
	fmt.Printf("range [key1, key3] has %d rows\n", len(rows))

	must(db.Close())
}

func demoFlushAndMerge(opt *kv.Options) {
	fmt.Println("=== Flush & Merge ===")

	flushOpt := *opt
	flushOpt.WorkDir = opt.WorkDir + "_flush"
	flushOpt.MemTableFlushThreshold = 10
	flushOpt.MaxParts = 3

	db, err := kv.Open(&flushOpt)
	must(err)

	for i := 0; i < 100; i++ {
		must(db.Insert(fmt.Sprintf("key%03d", i), fmt.Sprintf("value%d", i), uint64(i)*1000))
	}

	fmt.Printf("parts after inserts: %d, total rows: %d\n", db.PartCount(), db.TotalRows())

	must(db.Optimize())
	fmt.Printf("parts after optimize: %d, total rows: %d\n", db.PartCount(), db.TotalRows())
	fmt.Printf("disk usage: %d bytes, merges: %d\n", db.DiskUsage(), db.Stats().Merges())

	must(db.Close())
}

func demoPersistence(opt *kv.Options) {
	fmt.Println("=== Persistence ===")

	persistOpt := *opt
	persistOpt.WorkDir = opt.WorkDir + "_persist"

	db, err := kv.Open(&persistOpt)
	must(err)
	for i := 0; i < 50; i++ {
		must(db.Insert(fmt.Sprintf("persistent_key%02d", i), fmt.Sprintf("v%d", i), uint64(i)))
	}
	must(db.Close())

	// 重新打开，数据应当还在
	db, err = kv.Open(&persistOpt)
	must(err)
	fmt.Printf("rows after restart: %d across %d parts\n", db.TotalRows(), db.PartCount())

	rows, err := db.Query("persistent_key10", "persistent_key15")
	must(err)
	fmt.Printf("range [key10, key15] after restart:\n")
	printRows(rows)

	// 结果集顺手dump成一个行文件，方便离线比对
	dump := filepath.Join(persistOpt.WorkDir, "query_dump.bin")
	_, err = merget.WriteRowVector(dump, rows)
	must(err)
	back, err := merget.ReadRowVector(dump)
	must(err)
	fmt.Printf("dumped %d rows to %s\n", len(back), dump)

	must(db.Close())
}

func main() {
	opt := loadOptions()
	demoBasicOperations(opt)
	demoFlushAndMerge(opt)
	demoPersistence(opt)
	fmt.Println("demo finished")
}
