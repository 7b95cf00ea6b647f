package converter

import (
	"context"
	"strconv"
)

// VideoSpec 单个视频产物的编码参数
type VideoSpec struct {
	VideoCodec   string
	CRF          int
	Preset       string
	MaxWidth     int // 0 表示保持原宽度
	AudioCodec   string
	AudioBitrate string
	Profile      string
	Level        string
	Faststart    bool
	ExtraArgs    []string
}

// FrameSpec 从视频截取单帧图片
type FrameSpec struct {
	At    string // ffmpeg 时间戳，如 00:00:02
	Width int
}

// Transcoder 视频转码能力
type Transcoder interface {
	Transcode(ctx context.Context, input, output string, spec VideoSpec) error
	ExtractFrame(ctx context.Context, input, output string, spec FrameSpec) error
}

// FFmpegTranscoder 基于 ffmpeg 的 Transcoder
type FFmpegTranscoder struct {
	ffmpegPath  string
	toolManager *ToolManager
}

// NewFFmpegTranscoder 创建 ffmpeg 转码器
func NewFFmpegTranscoder(ffmpegPath string, toolManager *ToolManager) *FFmpegTranscoder {
	return &FFmpegTranscoder{ffmpegPath: ffmpegPath, toolManager: toolManager}
}

// Transcode 按 spec 编码视频并覆盖输出文件
func (t *FFmpegTranscoder) Transcode(ctx context.Context, input, output string, spec VideoSpec) error {
	out, err := t.toolManager.Execute(ctx, t.ffmpegPath, buildVideoArgs(input, output, spec)...)
	return WrapErrorWithOutput("video transcode", "", output, err, out)
}

// ExtractFrame 截取单帧并缩放到指定宽度
func (t *FFmpegTranscoder) ExtractFrame(ctx context.Context, input, output string, spec FrameSpec) error {
	out, err := t.toolManager.Execute(ctx, t.ffmpegPath, buildFrameArgs(input, output, spec)...)
	return WrapErrorWithOutput("frame extraction", "", output, err, out)
}

// buildVideoArgs 组装 ffmpeg 编码参数
func buildVideoArgs(input, output string, spec VideoSpec) []string {
	args := []string{"-hide_banner", "-loglevel", "error", "-i", input}

	if spec.VideoCodec != "" {
		args = append(args, "-c:v", spec.VideoCodec)
	}
	args = append(args, "-crf", strconv.Itoa(spec.CRF))
	if spec.Preset != "" {
		args = append(args, "-preset", spec.Preset)
	}
	if spec.MaxWidth > 0 {
		args = append(args, "-vf", widthCapFilter(spec.MaxWidth))
	}
	if spec.AudioCodec != "" {
		args = append(args, "-c:a", spec.AudioCodec)
	}
	if spec.AudioBitrate != "" {
		args = append(args, "-b:a", spec.AudioBitrate)
	}
	if spec.Faststart {
		args = append(args, "-movflags", "+faststart")
	}
	if spec.Profile != "" {
		args = append(args, "-profile:v", spec.Profile)
	}
	if spec.Level != "" {
		args = append(args, "-level", spec.Level)
	}
	args = append(args, spec.ExtraArgs...)

	return append(args, "-y", output)
}

// buildFrameArgs 组装截帧参数，-ss 放在 -i 之后以精确定位
func buildFrameArgs(input, output string, spec FrameSpec) []string {
	args := []string{"-hide_banner", "-loglevel", "error", "-i", input}
	if spec.At != "" {
		args = append(args, "-ss", spec.At)
	}
	args = append(args, "-frames:v", "1")
	if spec.Width > 0 {
		args = append(args, "-vf", "scale="+strconv.Itoa(spec.Width)+":-1")
	}
	return append(args, "-y", output)
}

// widthCapFilter 限制最大宽度，高度按比例取偶数，不放大
func widthCapFilter(maxWidth int) string {
	return "scale='min(" + strconv.Itoa(maxWidth) + ",iw)':-2"
}
