package ui

import (
	"fmt"
	"io"
	"sync"

	"github.com/fatih/color"
	"github.com/pterm/pterm"

	"assetopt/core/asset"
	"assetopt/core/converter"
	"assetopt/core/profile"
	"assetopt/core/report"
)

var (
	headerColor  = color.New(color.FgCyan, color.Bold)
	successColor = color.New(color.FgGreen)
	errorColor   = color.New(color.FgRed, color.Bold)
	mutedColor   = color.New(color.FgHiBlack)
	staleColor   = color.New(color.FgYellow)
)

// Console 终端进度输出，可被多个 worker 并发调用
type Console struct {
	out io.Writer

	// 列出每个资产的分类与是否需要处理
	ListPlan bool

	// 使用 pterm 进度条代替逐行输出
	Animate bool

	// 分析列表中文件名列的宽度
	nameWidth int

	mu  sync.Mutex
	bar *pterm.ProgressbarPrinter
}

// NewConsole 创建终端输出，文件名列宽随终端宽度调整
func NewConsole(out io.Writer, listPlan bool) *Console {
	return &Console{
		out:       out,
		ListPlan:  listPlan,
		nameWidth: planNameWidth(GetTerminalInfo().Width),
	}
}

// planNameWidth 扣除分类列与结论列后的文件名列宽
func planNameWidth(termWidth int) int {
	const (
		minWidth = 20
		maxWidth = 60
		reserved = 2 + 1 + 14 + 1 + len("needs processing")
	)
	w := termWidth - reserved
	if w < minWidth {
		return minWidth
	}
	if w > maxWidth {
		return maxWidth
	}
	return w
}

// OnPlan 打印分析结果
func (c *Console) OnPlan(target string, decisions []profile.Decision) {
	c.mu.Lock()
	defer c.mu.Unlock()

	stale := 0
	for _, d := range decisions {
		if d.Stale {
			stale++
		}
	}

	fmt.Fprintln(c.out, headerColor.Sprintf("== %s: %d found, %d to process ==", target, len(decisions), stale))

	if c.ListPlan {
		for _, d := range decisions {
			verdict := mutedColor.Sprint("up to date")
			if d.Stale {
				verdict = staleColor.Sprint("needs processing")
			}
			fmt.Fprintf(c.out, "  %-*s %-14s %s\n", c.nameWidth, d.Asset.Name, d.Profile, verdict)
		}
	}

	if c.Animate && stale > 0 {
		bar, err := pterm.DefaultProgressbar.WithTotal(stale).WithTitle(target).Start()
		if err == nil {
			c.bar = bar
		}
	}
}

// OnAssetStart 打印开始处理的资产
func (c *Console) OnAssetStart(a asset.SourceAsset, p profile.Profile) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.bar != nil {
		c.bar.UpdateTitle(a.Name)
		return
	}
	fmt.Fprintf(c.out, "→ %s [%s] (%s)\n", a.Name, p, report.FormatBytes(a.Size))
}

// OnAssetDone 打印单个资产结果
func (c *Console) OnAssetDone(r converter.ProcessingResult) {
	c.mu.Lock()
	defer c.mu.Unlock()

	line := report.AssetLine(r)
	if r.Success {
		line = successColor.Sprint("✓ ") + line
	} else {
		line = errorColor.Sprint("✗ ") + line
	}

	if c.bar != nil {
		c.bar.Increment()
		if !r.Success {
			pterm.Println(line)
		}
		return
	}
	fmt.Fprintln(c.out, line)
}

// Finish 结束进度条并渲染汇总
func (c *Console) Finish(s report.Summary) error {
	c.mu.Lock()
	if c.bar != nil {
		_, _ = c.bar.Stop()
		c.bar = nil
	}
	c.mu.Unlock()

	return report.Render(c.out, s)
}

// Errorf 打印错误信息
func (c *Console) Errorf(format string, args ...interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintln(c.out, errorColor.Sprintf(format, args...))
}
