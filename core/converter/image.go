package converter

import (
	"context"
	"strconv"
)

// ImageFormat 图片输出格式
type ImageFormat string

const (
	FormatWebP ImageFormat = "webp"
	FormatJPEG ImageFormat = "jpeg"
)

// ImageSpec 图片产物参数
type ImageSpec struct {
	Format  ImageFormat
	Quality int // 1-100

	// 限制在 MaxWidth x MaxHeight 内，保持比例且不放大；0 表示不缩放
	MaxWidth  int
	MaxHeight int

	// WebP 压缩力度 0-6
	Effort int
}

// ImageProcessor 图片缩放与格式转换能力
type ImageProcessor interface {
	Process(ctx context.Context, input, output string, spec ImageSpec) error
}

// FFmpegImageProcessor 基于 ffmpeg 的 ImageProcessor
type FFmpegImageProcessor struct {
	ffmpegPath  string
	toolManager *ToolManager
}

// NewFFmpegImageProcessor 创建图片处理器
func NewFFmpegImageProcessor(ffmpegPath string, toolManager *ToolManager) *FFmpegImageProcessor {
	return &FFmpegImageProcessor{ffmpegPath: ffmpegPath, toolManager: toolManager}
}

// Process 转换图片并覆盖输出文件
func (p *FFmpegImageProcessor) Process(ctx context.Context, input, output string, spec ImageSpec) error {
	out, err := p.toolManager.Execute(ctx, p.ffmpegPath, buildImageArgs(input, output, spec)...)
	return WrapErrorWithOutput("image "+string(spec.Format), "", output, err, out)
}

// buildImageArgs 组装图片转换参数
func buildImageArgs(input, output string, spec ImageSpec) []string {
	args := []string{"-hide_banner", "-loglevel", "error", "-i", input}

	if spec.MaxWidth > 0 && spec.MaxHeight > 0 {
		args = append(args, "-vf", boundingBoxFilter(spec.MaxWidth, spec.MaxHeight))
	}

	switch spec.Format {
	case FormatWebP:
		args = append(args,
			"-c:v", "libwebp",
			"-quality", strconv.Itoa(spec.Quality),
			"-compression_level", strconv.Itoa(spec.Effort))
	case FormatJPEG:
		args = append(args, "-q:v", strconv.Itoa(jpegQScale(spec.Quality)))
	}

	args = append(args, "-frames:v", "1", "-update", "1")
	return append(args, "-y", output)
}

// boundingBoxFilter 等比缩放进盒子，盒子先与原尺寸取小，保证不放大
func boundingBoxFilter(maxWidth, maxHeight int) string {
	w := strconv.Itoa(maxWidth)
	h := strconv.Itoa(maxHeight)
	return "scale='min(" + w + ",iw)':'min(" + h + ",ih)':force_original_aspect_ratio=decrease"
}

// jpegQScale 将 1-100 的质量映射到 mjpeg 的 2-31（越小越好）
func jpegQScale(quality int) int {
	if quality < 1 {
		quality = 1
	}
	if quality > 100 {
		quality = 100
	}
	return 2 + (100-quality)*29/99
}
