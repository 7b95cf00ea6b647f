package profile

import "assetopt/core/asset"

// NeedsProcessing 判断资产是否需要重新生成
//
// 多产物分类（hero、tutorial）只检查产物是否齐全，产物齐全后即使源文件更新也不会
// 被判定为过期；单产物分类在输出缺失或源文件修改时间严格晚于输出时返回 true。
// 两种规则的差异是有意保留的，重编码多产物视频代价较高。
func NeedsProcessing(a asset.SourceAsset, p Profile, outputs asset.OutputIndex) bool {
	expected := ExpectedArtifacts(a, p)
	if len(expected) == 0 {
		return true
	}

	if p.MultiArtifact() {
		for _, name := range expected {
			if !outputs.Has(name) {
				return true
			}
		}
		return false
	}

	outTime, ok := outputs.ModTime(expected[0])
	if !ok {
		return true
	}
	return a.ModTime.After(outTime)
}

// Decision 单个资产的分类与是否需要处理
type Decision struct {
	Asset    asset.SourceAsset
	Profile  Profile
	Stale    bool
	Expected []string
}

// Decide 对扫描结果逐个分类并判断是否过期；force 为 true 时全部重新处理
func Decide(c *Classifier, assets []asset.SourceAsset, outputs asset.OutputIndex, force bool) []Decision {
	decisions := make([]Decision, 0, len(assets))
	for _, a := range assets {
		p := c.Classify(a)
		decisions = append(decisions, Decision{
			Asset:    a,
			Profile:  p,
			Stale:    force || NeedsProcessing(a, p, outputs),
			Expected: ExpectedArtifacts(a, p),
		})
	}
	return decisions
}
