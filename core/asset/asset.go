package asset

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Kind 媒体类型
type Kind int

const (
	KindVideo Kind = iota
	KindImage
)

// String 返回类型字符串
func (k Kind) String() string {
	switch k {
	case KindVideo:
		return "video"
	case KindImage:
		return "image"
	default:
		return "unknown"
	}
}

// ErrDirectoryNotFound 源目录不存在
var ErrDirectoryNotFound = errors.New("directory not found")

// SourceAsset 扫描得到的源文件，扫描后不再修改
type SourceAsset struct {
	Name    string
	Path    string
	Size    int64
	ModTime time.Time
	Kind    Kind
}

// BaseName 去掉扩展名的文件名
func (a SourceAsset) BaseName() string {
	return strings.TrimSuffix(a.Name, filepath.Ext(a.Name))
}

// Ext 原始扩展名（保留大小写）
func (a SourceAsset) Ext() string {
	return filepath.Ext(a.Name)
}

// Scanner 按扩展名筛选目录中的媒体文件
type Scanner struct {
	kind       Kind
	extensions map[string]bool
}

// NewScanner 创建扫描器，扩展名比较不区分大小写
func NewScanner(kind Kind, extensions []string) *Scanner {
	set := make(map[string]bool, len(extensions))
	for _, ext := range extensions {
		ext = strings.ToLower(ext)
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		set[ext] = true
	}
	return &Scanner{kind: kind, extensions: set}
}

// Matches 判断文件名是否属于扫描范围
func (s *Scanner) Matches(name string) bool {
	return s.extensions[strings.ToLower(filepath.Ext(name))]
}

// Scan 列出目录中匹配的常规文件，保持目录列举顺序
func (s *Scanner) Scan(dir string) ([]SourceAsset, error) {
	absDir, err := NormalizePath(dir)
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(absDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrDirectoryNotFound, dir)
		}
		return nil, err
	}

	assets := make([]SourceAsset, 0, len(entries))
	for _, entry := range entries {
		if !entry.Type().IsRegular() || !s.Matches(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			// 列举后被删除
			continue
		}
		assets = append(assets, SourceAsset{
			Name:    entry.Name(),
			Path:    filepath.Join(absDir, entry.Name()),
			Size:    info.Size(),
			ModTime: info.ModTime(),
			Kind:    s.kind,
		})
	}
	return assets, nil
}

// EnsureDir 按需创建输出目录，已存在时直接返回
func EnsureDir(dir string) error {
	return os.MkdirAll(dir, 0755)
}

// NormalizePath 展开 ~ 并转换为绝对路径
func NormalizePath(input string) (string, error) {
	path := input
	if strings.HasPrefix(path, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		path = filepath.Join(home, path[1:])
	}
	return filepath.Abs(path)
}

// IsWithin 判断 child 是否位于 parent 目录之下（含相等）
func IsWithin(parent, child string) bool {
	p, err := NormalizePath(parent)
	if err != nil {
		return false
	}
	c, err := NormalizePath(child)
	if err != nil {
		return false
	}
	rel, err := filepath.Rel(p, c)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}
