package pipeline

import (
	"path/filepath"
	"sort"

	"assetopt/core/asset"
	"assetopt/core/converter"
	"assetopt/core/profile"
)

// FindOrphans 列出源文件已不存在的输出产物（完整路径）
//
// 只认精确的产物名，不使用清理时的前缀规则，避免把 romix 的产物算到 romi 名下。
func (p *Pipeline) FindOrphans() ([]string, error) {
	scanner := asset.NewScanner(p.target.Kind, p.target.Extensions)
	assets, err := scanner.Scan(p.target.SourceDir)
	if err != nil {
		return nil, converter.WrapDirectoryError("scan source", p.target.SourceDir, err)
	}

	owned := make(map[string]bool)
	for _, a := range assets {
		pr := p.classifier.Classify(a)
		for _, art := range p.generator.Plan(a, pr) {
			owned[art.Path()] = true
		}
		// 缩放版本只在超过阈值时生成，无论当前大小都视为有主
		if a.Kind == asset.KindImage {
			for _, dir := range p.generator.OutputDirs() {
				owned[filepath.Join(dir, a.BaseName()+"_opt.jpg")] = true
			}
		}
		for _, name := range profile.ExpectedArtifacts(a, pr) {
			owned[filepath.Join(p.target.OutputDir, name)] = true
		}
	}

	var orphans []string
	for _, dir := range p.generator.OutputDirs() {
		outputs, err := asset.ListOutputs(dir)
		if err != nil {
			return nil, converter.WrapDirectoryError("list outputs", dir, err)
		}
		for _, name := range outputs.Names() {
			path := filepath.Join(dir, name)
			if !owned[path] {
				orphans = append(orphans, path)
			}
		}
	}
	sort.Strings(orphans)
	return orphans, nil
}

// RemoveOrphans 删除孤立产物
func RemoveOrphans(paths []string, fileOps *converter.FileOperationHandler) *converter.BatchFileOperation {
	return fileOps.BatchRemoveFiles(paths)
}
