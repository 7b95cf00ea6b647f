package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"assetopt/core/asset"
)

// DefaultDebounce 连续事件合并窗口
const DefaultDebounce = 2 * time.Second

// Watch 监听各管线源目录，文件变化稳定 debounce 后重新运行对应管线
//
// 只监听源目录本层，嵌套的输出目录写入不会触发事件。
func Watch(ctx context.Context, pipelines []*Pipeline, debounce time.Duration, logger *zap.Logger, run func(context.Context, *Pipeline)) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("创建文件监听器失败: %w", err)
	}
	defer watcher.Close()

	byDir := make(map[string]*Pipeline)
	scanners := make(map[string]*asset.Scanner)
	for _, p := range pipelines {
		dir, err := asset.NormalizePath(p.target.SourceDir)
		if err != nil {
			return err
		}
		if err := watcher.Add(dir); err != nil {
			return fmt.Errorf("监听目录失败 %s: %w", dir, err)
		}
		byDir[dir] = p
		scanners[dir] = asset.NewScanner(p.target.Kind, p.target.Extensions)
		logger.Info("开始监听", zap.String("dir", dir), zap.String("target", p.target.Name))
	}

	pending := make(map[string]bool)
	timer := time.NewTimer(debounce)
	if !timer.Stop() {
		<-timer.C
	}

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			dir := filepath.Dir(event.Name)
			scanner, known := scanners[dir]
			if !known || !scanner.Matches(event.Name) {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			logger.Debug("检测到源文件变化", zap.String("file", event.Name), zap.String("op", event.Op.String()))
			pending[dir] = true
			timer.Reset(debounce)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("文件监听错误", zap.Error(err))

		case <-timer.C:
			for dir := range pending {
				run(ctx, byDir[dir])
			}
			pending = make(map[string]bool)
		}
	}
}
