package ui

import (
	"os"

	"github.com/fatih/color"
	"golang.org/x/term"
)

// TerminalInfo 终端尺寸
type TerminalInfo struct {
	Width  int
	Height int
}

// GetTerminalInfo 获取终端尺寸，非终端时返回 80x24
func GetTerminalInfo() *TerminalInfo {
	info := &TerminalInfo{Width: 80, Height: 24}

	if term.IsTerminal(int(os.Stdout.Fd())) {
		width, height, err := term.GetSize(int(os.Stdout.Fd()))
		if err == nil && width > 0 && height > 0 {
			info.Width = width
			info.Height = height
		}
	}
	return info
}

// IsInteractive 标准输出是否为终端
func IsInteractive() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// SupportsColor 遵循 NO_COLOR 约定
func SupportsColor() bool {
	return os.Getenv("NO_COLOR") == ""
}

// SupportsAnimation CI 环境与非终端不显示进度条
func SupportsAnimation() bool {
	return os.Getenv("CI") == "" && IsInteractive()
}

// ConfigureColor 根据终端能力开关全局颜色输出
func ConfigureColor() {
	if !SupportsColor() || !IsInteractive() {
		color.NoColor = true
	}
}
