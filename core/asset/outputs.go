package asset

import (
	"os"
	"sort"
	"strings"
	"time"
)

// OutputIndex 输出目录快照：文件名 -> 修改时间
type OutputIndex struct {
	entries map[string]time.Time
}

// NewOutputIndex 用给定条目构造快照，主要用于测试
func NewOutputIndex(entries map[string]time.Time) OutputIndex {
	copied := make(map[string]time.Time, len(entries))
	for k, v := range entries {
		copied[k] = v
	}
	return OutputIndex{entries: copied}
}

// ListOutputs 读取输出目录中的常规文件；目录不存在时返回空快照
func ListOutputs(dir string) (OutputIndex, error) {
	idx := OutputIndex{entries: make(map[string]time.Time)}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return idx, nil
		}
		return idx, err
	}

	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		idx.entries[entry.Name()] = info.ModTime()
	}
	return idx, nil
}

// Has 是否存在同名输出
func (idx OutputIndex) Has(name string) bool {
	_, ok := idx.entries[name]
	return ok
}

// ModTime 输出文件的修改时间
func (idx OutputIndex) ModTime(name string) (time.Time, bool) {
	t, ok := idx.entries[name]
	return t, ok
}

// WithPrefix 返回以 prefix 开头的文件名（已排序）
func (idx OutputIndex) WithPrefix(prefix string) []string {
	var names []string
	for name := range idx.entries {
		if strings.HasPrefix(name, prefix) {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Names 所有文件名（已排序）
func (idx OutputIndex) Names() []string {
	return idx.WithPrefix("")
}

// Len 文件数量
func (idx OutputIndex) Len() int {
	return len(idx.entries)
}
