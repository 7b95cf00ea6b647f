package deps

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"assetopt/core/converter"
)

// RequiredEncoders ffmpeg 生成全部产物所需的编码器
var RequiredEncoders = []string{"libx264", "aac", "libvpx-vp9", "libopus", "libwebp", "mjpeg"}

// ToolInfo 工具信息
type ToolInfo struct {
	Name            string
	Path            string
	Version         string
	Required        bool
	Installed       bool
	ErrorMessage    string
	MissingEncoders []string
}

// DependencyManager 依赖管理器
type DependencyManager struct {
	tools       map[string]*ToolInfo
	toolManager *converter.ToolManager
}

// NewDependencyManager 创建依赖管理器
func NewDependencyManager(toolManager *converter.ToolManager, ffmpegPath, ffprobePath string) *DependencyManager {
	dm := &DependencyManager{
		tools:       make(map[string]*ToolInfo),
		toolManager: toolManager,
	}

	dm.tools["ffmpeg"] = &ToolInfo{
		Name:     "FFmpeg",
		Path:     ffmpegPath,
		Required: true,
	}
	// ffprobe 目前只用于诊断
	dm.tools["ffprobe"] = &ToolInfo{
		Name:     "FFprobe",
		Path:     ffprobePath,
		Required: false,
	}

	return dm
}

// CheckDependencies 检查所有依赖
func (dm *DependencyManager) CheckDependencies(ctx context.Context) {
	for key, tool := range dm.tools {
		if err := dm.checkTool(ctx, key, tool); err != nil {
			tool.ErrorMessage = err.Error()
		}
	}
}

// checkTool 检查单个工具
func (dm *DependencyManager) checkTool(ctx context.Context, key string, tool *ToolInfo) error {
	resolved, err := dm.toolManager.FindToolInPath(tool.Path)
	if err != nil {
		tool.Installed = false
		return fmt.Errorf("工具未找到: %s", tool.Path)
	}
	tool.Path = resolved

	if !dm.toolManager.IsToolAvailable(tool.Path) {
		tool.Installed = false
		return fmt.Errorf("工具无法运行: %s", tool.Path)
	}

	output, err := dm.toolManager.Execute(ctx, tool.Path, "-version")
	if err != nil {
		tool.Installed = false
		return fmt.Errorf("无法获取版本信息: %v", err)
	}
	tool.Installed = true
	tool.Version = strings.TrimSpace(strings.SplitN(string(output), "\n", 2)[0])

	if key == "ffmpeg" {
		missing, err := dm.toolManager.HasEncoders(ctx, tool.Path, RequiredEncoders...)
		if err != nil {
			return fmt.Errorf("无法列出编码器: %v", err)
		}
		tool.MissingEncoders = missing
		if len(missing) > 0 {
			return fmt.Errorf("缺少编码器: %s", strings.Join(missing, ", "))
		}
	}
	return nil
}

// GetTool 获取工具信息
func (dm *DependencyManager) GetTool(name string) *ToolInfo {
	return dm.tools[name]
}

// GetAllTools 按名称排序的全部工具
func (dm *DependencyManager) GetAllTools() []*ToolInfo {
	keys := make([]string, 0, len(dm.tools))
	for k := range dm.tools {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	tools := make([]*ToolInfo, 0, len(keys))
	for _, k := range keys {
		tools = append(tools, dm.tools[k])
	}
	return tools
}

// IsAllRequiredInstalled 必需工具均已安装且编码器齐全
func (dm *DependencyManager) IsAllRequiredInstalled() bool {
	for _, tool := range dm.tools {
		if tool.Required && (!tool.Installed || len(tool.MissingEncoders) > 0) {
			return false
		}
	}
	return true
}
