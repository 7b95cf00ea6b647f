package profile

import (
	"strings"

	"assetopt/core/asset"
)

// Profile 决定产出哪些文件以及使用哪组编码参数
type Profile int

const (
	HeroVideo Profile = iota
	TutorialVideo
	BasicVideo
	LargeImage
	StandardImage
)

// String 返回分类名称
func (p Profile) String() string {
	switch p {
	case HeroVideo:
		return "hero"
	case TutorialVideo:
		return "tutorial"
	case BasicVideo:
		return "basic"
	case LargeImage:
		return "large-image"
	case StandardImage:
		return "image"
	default:
		return "unknown"
	}
}

// MultiArtifact 多产物分类只按存在性判断是否过期
func (p Profile) MultiArtifact() bool {
	return p == HeroVideo || p == TutorialVideo
}

// Keywords 分类关键字，大小写敏感的子串匹配
type Keywords struct {
	Hero       []string
	Tutorial   []string
	LargeImage []string
}

// Classifier 文件名到分类的纯函数
type Classifier struct {
	keywords Keywords
}

// NewClassifier 创建分类器
func NewClassifier(keywords Keywords) *Classifier {
	return &Classifier{keywords: keywords}
}

// Classify 根据文件名分类；视频先匹配 hero 再匹配 tutorial，均未命中时回退
func (c *Classifier) Classify(a asset.SourceAsset) Profile {
	return c.ClassifyName(a.Name, a.Kind)
}

// ClassifyName 与 Classify 相同，只依赖文件名与媒体类型
func (c *Classifier) ClassifyName(name string, kind asset.Kind) Profile {
	if kind == asset.KindImage {
		if containsAny(name, c.keywords.LargeImage) {
			return LargeImage
		}
		return StandardImage
	}

	switch {
	case containsAny(name, c.keywords.Hero):
		return HeroVideo
	case containsAny(name, c.keywords.Tutorial):
		return TutorialVideo
	default:
		return BasicVideo
	}
}

func containsAny(name string, keywords []string) bool {
	for _, kw := range keywords {
		if kw != "" && strings.Contains(name, kw) {
			return true
		}
	}
	return false
}

// ExpectedArtifacts 资产在该分类下必须存在的输出文件名（有序）
func ExpectedArtifacts(a asset.SourceAsset, p Profile) []string {
	base := a.BaseName()
	switch p {
	case HeroVideo:
		return []string{base + ".mp4", base + "_mobile.mp4", base + ".webm"}
	case TutorialVideo:
		return []string{base + ".mp4", base + "_thumb.jpg", base + "_poster.jpg"}
	case BasicVideo:
		return []string{base + a.Ext()}
	case LargeImage, StandardImage:
		return []string{base + ".webp"}
	default:
		return nil
	}
}
