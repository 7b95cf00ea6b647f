package converter

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"assetopt/core/asset"
	"assetopt/core/profile"
)

// ArtifactKind 产物类型
type ArtifactKind int

const (
	ArtifactVideo ArtifactKind = iota
	ArtifactFrame
	ArtifactImage
)

// Artifact 计划生成的单个输出文件
type Artifact struct {
	Name  string
	Dir   string
	Kind  ArtifactKind
	Video VideoSpec
	Frame FrameSpec
	Image ImageSpec
	Label string
}

// Path 产物完整路径
func (a Artifact) Path() string {
	return filepath.Join(a.Dir, a.Name)
}

// ProcessingResult 单个资产的处理结果，创建后不再修改
type ProcessingResult struct {
	Asset          asset.SourceAsset
	Profile        profile.Profile
	Artifacts      []string
	OriginalBytes  int64
	OptimizedBytes int64
	Success        bool
	Err            error
	Duration       time.Duration
}

// ReductionPercent 相对源文件的体积缩减百分比
func (r ProcessingResult) ReductionPercent() float64 {
	return Reduction(r.OriginalBytes, r.OptimizedBytes)
}

// Reduction (original-optimized)/original*100，original 为 0 时返回 0
func Reduction(original, optimized int64) float64 {
	if original <= 0 {
		return 0
	}
	return float64(original-optimized) / float64(original) * 100
}

// GeneratorConfig 产物目录与图片参数
type GeneratorConfig struct {
	OutputDir string

	// 图片缩放版本的目录，为空时使用 OutputDir
	ResizedDir string

	// 超过此大小的图片额外生成 _opt.jpg
	ResizeThreshold int64
	MaxWidth        int
	MaxHeight       int
	WebPQuality     int
	JPEGQuality     int
}

// Generator 按分类为资产生成全部产物
type Generator struct {
	cfg        GeneratorConfig
	transcoder Transcoder
	images     ImageProcessor
	fileOps    *FileOperationHandler
	logger     *zap.Logger
}

// NewGenerator 创建产物生成器
func NewGenerator(cfg GeneratorConfig, transcoder Transcoder, images ImageProcessor, logger *zap.Logger) *Generator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResizedDir == "" {
		cfg.ResizedDir = cfg.OutputDir
	}
	return &Generator{
		cfg:        cfg,
		transcoder: transcoder,
		images:     images,
		fileOps:    NewFileOperationHandler(logger),
		logger:     logger,
	}
}

// OutputDirs 生成器写入的所有目录（去重）
func (g *Generator) OutputDirs() []string {
	if g.cfg.ResizedDir == g.cfg.OutputDir {
		return []string{g.cfg.OutputDir}
	}
	return []string{g.cfg.OutputDir, g.cfg.ResizedDir}
}

// Plan 资产在该分类下要生成的产物，顺序即执行顺序
func (g *Generator) Plan(a asset.SourceAsset, p profile.Profile) []Artifact {
	base := a.BaseName()
	out := g.cfg.OutputDir

	switch p {
	case profile.HeroVideo:
		return []Artifact{
			{Name: base + ".mp4", Dir: out, Kind: ArtifactVideo, Label: "desktop", Video: VideoSpec{
				VideoCodec: "libx264", CRF: 23, Preset: "medium", MaxWidth: 1920,
				AudioCodec: "aac", AudioBitrate: "128k", Faststart: true,
				Profile: "high", Level: "4.0",
			}},
			{Name: base + "_mobile.mp4", Dir: out, Kind: ArtifactVideo, Label: "mobile", Video: VideoSpec{
				VideoCodec: "libx264", CRF: 28, Preset: "faster", MaxWidth: 720,
				AudioCodec: "aac", AudioBitrate: "96k", Faststart: true,
			}},
			{Name: base + ".webm", Dir: out, Kind: ArtifactVideo, Label: "webm", Video: VideoSpec{
				VideoCodec: "libvpx-vp9", CRF: 30, MaxWidth: 1920,
				AudioCodec: "libopus", AudioBitrate: "128k",
				ExtraArgs: []string{"-b:v", "0", "-speed", "2"},
			}},
		}
	case profile.TutorialVideo:
		return []Artifact{
			{Name: base + ".mp4", Dir: out, Kind: ArtifactVideo, Label: "compressed", Video: VideoSpec{
				VideoCodec: "libx264", CRF: 28, Preset: "faster", MaxWidth: 720,
				AudioCodec: "aac", AudioBitrate: "64k", Faststart: true,
				Profile: "baseline", Level: "3.1",
			}},
			{Name: base + "_thumb.jpg", Dir: out, Kind: ArtifactFrame, Label: "thumbnail",
				Frame: FrameSpec{At: "00:00:02", Width: 400}},
			{Name: base + "_poster.jpg", Dir: out, Kind: ArtifactFrame, Label: "poster",
				Frame: FrameSpec{At: "00:00:01", Width: 800}},
		}
	case profile.BasicVideo:
		return []Artifact{
			{Name: base + a.Ext(), Dir: out, Kind: ArtifactVideo, Label: "compressed", Video: VideoSpec{
				VideoCodec: "libx264", CRF: 25, Preset: "fast",
				AudioCodec: "aac", AudioBitrate: "96k", Faststart: true,
			}},
		}
	case profile.LargeImage, profile.StandardImage:
		var plan []Artifact
		if p == profile.LargeImage || a.Size > g.cfg.ResizeThreshold {
			plan = append(plan, Artifact{Name: base + "_opt.jpg", Dir: g.cfg.ResizedDir, Kind: ArtifactImage, Label: "resized",
				Image: ImageSpec{Format: FormatJPEG, Quality: g.cfg.JPEGQuality, MaxWidth: g.cfg.MaxWidth, MaxHeight: g.cfg.MaxHeight}})
		}
		plan = append(plan, Artifact{Name: base + ".webp", Dir: out, Kind: ArtifactImage, Label: "webp",
			Image: ImageSpec{Format: FormatWebP, Quality: g.cfg.WebPQuality, Effort: 6}})
		return plan
	}
	return nil
}

// Cleanup 删除输出目录中以资产基础名开头的旧文件，返回被删除文件的路径
//
// 删除与写入不是原子的，生成失败时不会恢复旧文件。
func (g *Generator) Cleanup(a asset.SourceAsset) ([]string, error) {
	var removed []string
	var paths []string

	for _, dir := range g.OutputDirs() {
		idx, err := asset.ListOutputs(dir)
		if err != nil {
			return nil, NewAssetError(ErrorTypeFileOperation, "list outputs", a.Name, dir, err)
		}
		for _, name := range idx.WithPrefix(a.BaseName()) {
			paths = append(paths, filepath.Join(dir, name))
		}
	}

	batch := g.fileOps.BatchRemoveFiles(paths)
	for _, p := range paths {
		if _, err := os.Stat(p); os.IsNotExist(err) {
			removed = append(removed, p)
		}
	}
	if batch.Err != nil {
		return removed, NewAssetError(ErrorTypeFileOperation, "cleanup", a.Name, "", batch.Err)
	}
	return removed, nil
}

// Generate 依次生成资产的全部产物；任一产物失败即停止该资产并返回失败结果
func (g *Generator) Generate(ctx context.Context, a asset.SourceAsset, p profile.Profile) ProcessingResult {
	start := time.Now()
	result := ProcessingResult{
		Asset:         a,
		Profile:       p,
		OriginalBytes: a.Size,
	}

	for _, dir := range g.OutputDirs() {
		if err := g.fileOps.SafeCreateDir(dir); err != nil {
			result.Err = err
			result.Duration = time.Since(start)
			return result
		}
	}

	for _, art := range g.Plan(a, p) {
		if err := ctx.Err(); err != nil {
			result.Err = err
			break
		}

		if err := g.produce(ctx, a, art); err != nil {
			result.Err = tagAsset(err, a.Name)
			g.logger.Error("产物生成失败",
				zap.String("asset", a.Name),
				zap.String("artifact", art.Name),
				zap.String("error", describe(err)))
			break
		}

		info, err := os.Stat(art.Path())
		if err != nil {
			result.Err = NewAssetError(ErrorTypeFileOperation, "stat artifact", a.Name, art.Path(), err)
			break
		}
		result.Artifacts = append(result.Artifacts, art.Name)
		result.OptimizedBytes += info.Size()
		g.logger.Debug("产物已生成",
			zap.String("asset", a.Name),
			zap.String("artifact", art.Name),
			zap.Int64("size", info.Size()))
	}

	result.Success = result.Err == nil
	result.Duration = time.Since(start)
	return result
}

// produce 根据产物类型调用外部编码器
func (g *Generator) produce(ctx context.Context, a asset.SourceAsset, art Artifact) error {
	switch art.Kind {
	case ArtifactVideo:
		return g.transcoder.Transcode(ctx, a.Path, art.Path(), art.Video)
	case ArtifactFrame:
		return g.transcoder.ExtractFrame(ctx, a.Path, art.Path(), art.Frame)
	case ArtifactImage:
		return g.images.Process(ctx, a.Path, art.Path(), art.Image)
	}
	return errors.New("unknown artifact kind")
}

// tagAsset 为编码错误补上资产名
func tagAsset(err error, name string) error {
	var ae *AssetError
	if errors.As(err, &ae) {
		if ae.Asset == "" {
			ae.Asset = name
		}
		return ae
	}
	return NewAssetError(ErrorTypeEncoderInvocation, "encode", name, "", err)
}
