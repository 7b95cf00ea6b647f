package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shirou/gopsutil/v3/disk"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"assetopt/core/asset"
	"assetopt/core/converter"
	"assetopt/core/profile"
	"assetopt/core/report"
	"assetopt/core/state"
)

// fakeEncoder 写入固定大小的产物；源文件名包含 failOn 时失败
type fakeEncoder struct {
	mu     sync.Mutex
	size   int
	failOn string
	calls  int
}

func (f *fakeEncoder) write(input, output string) error {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.failOn != "" && strings.Contains(filepath.Base(input), f.failOn) {
		return converter.WrapErrorWithOutput("fake encode", "", output, errors.New("exit status 1"), nil)
	}
	return os.WriteFile(output, make([]byte, f.size), 0644)
}

func (f *fakeEncoder) Transcode(_ context.Context, input, output string, _ converter.VideoSpec) error {
	return f.write(input, output)
}

func (f *fakeEncoder) ExtractFrame(_ context.Context, input, output string, _ converter.FrameSpec) error {
	return f.write(input, output)
}

func (f *fakeEncoder) Process(_ context.Context, input, output string, _ converter.ImageSpec) error {
	return f.write(input, output)
}

func (f *fakeEncoder) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// recordingObserver 记录回调
type recordingObserver struct {
	mu      sync.Mutex
	planned int
	started int
	done    []string
}

func (o *recordingObserver) OnPlan(_ string, decisions []profile.Decision) {
	o.mu.Lock()
	o.planned = len(decisions)
	o.mu.Unlock()
}

func (o *recordingObserver) OnAssetStart(asset.SourceAsset, profile.Profile) {
	o.mu.Lock()
	o.started++
	o.mu.Unlock()
}

func (o *recordingObserver) OnAssetDone(r converter.ProcessingResult) {
	o.mu.Lock()
	o.done = append(o.done, r.Asset.Name)
	o.mu.Unlock()
}

func writeSource(t *testing.T, dir, name string, size int) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), make([]byte, size), 0644); err != nil {
		t.Fatalf("创建测试文件失败: %v", err)
	}
}

func videoPipeline(t *testing.T, enc *fakeEncoder, opts ...Option) (*Pipeline, string, string) {
	t.Helper()
	src := t.TempDir()
	out := filepath.Join(src, "optimized")
	logger := zaptest.NewLogger(t)

	gen := converter.NewGenerator(converter.GeneratorConfig{OutputDir: out}, enc, enc, logger)
	classifier := profile.NewClassifier(profile.Keywords{
		Hero:     []string{"romix", "hero"},
		Tutorial: []string{"Voca", "stereo", "romi"},
	})
	target := Target{
		Name:       "videos",
		Kind:       asset.KindVideo,
		SourceDir:  src,
		OutputDir:  out,
		Extensions: []string{".mp4", ".mov", ".avi", ".mkv"},
	}
	return New(target, classifier, gen, logger, opts...), src, out
}

func outputNames(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names
}

func TestRunHeroVideoEndToEnd(t *testing.T) {
	enc := &fakeEncoder{size: 100 << 10}
	p, src, out := videoPipeline(t, enc)
	writeSource(t, src, "hero_demo.mp4", 2<<20)

	summary, err := p.Run(context.Background(), Options{Workers: 1})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	want := []string{"hero_demo.mp4", "hero_demo.webm", "hero_demo_mobile.mp4"}
	if got := outputNames(t, out); strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("outputs = %v, want %v", got, want)
	}
	if summary.Scanned != 1 || summary.Processed != 1 || summary.Failed != 0 {
		t.Errorf("unexpected summary: %+v", summary)
	}
	if summary.SourceBytes != 2<<20 {
		t.Errorf("source size should exclude nested output dir, got %d", summary.SourceBytes)
	}
	if summary.ReductionPercent <= 0 || summary.ReductionPercent >= 100 {
		t.Errorf("reduction %.2f out of range", summary.ReductionPercent)
	}
}

func TestRunIsIdempotent(t *testing.T) {
	enc := &fakeEncoder{size: 10}
	p, src, _ := videoPipeline(t, enc)
	writeSource(t, src, "hero_demo.mp4", 1000)
	writeSource(t, src, "Voca_lesson.mp4", 1000)
	writeSource(t, src, "clip.mov", 1000)

	first, err := p.Run(context.Background(), Options{Workers: 1})
	if err != nil {
		t.Fatal(err)
	}
	if first.Processed != 3 {
		t.Fatalf("first run processed %d", first.Processed)
	}
	calls := enc.callCount()

	second, err := p.Run(context.Background(), Options{Workers: 1})
	if err != nil {
		t.Fatal(err)
	}
	if second.Processed != 0 || second.Skipped != 3 || !second.UpToDate() {
		t.Errorf("second run should skip everything: %+v", second)
	}
	if enc.callCount() != calls {
		t.Errorf("encoder invoked on second run")
	}

	forced, err := p.Run(context.Background(), Options{Workers: 1, Force: true})
	if err != nil {
		t.Fatal(err)
	}
	if forced.Processed != 3 {
		t.Errorf("force should reprocess everything, processed %d", forced.Processed)
	}
}

func TestRunSingleArtifactModTime(t *testing.T) {
	enc := &fakeEncoder{size: 10}
	p, src, out := videoPipeline(t, enc)
	writeSource(t, src, "clip.mov", 1000)

	if _, err := p.Run(context.Background(), Options{}); err != nil {
		t.Fatal(err)
	}

	// 源文件比输出新时重新处理
	past := time.Now().Add(-time.Hour)
	if err := os.Chtimes(filepath.Join(out, "clip.mov"), past, past); err != nil {
		t.Fatal(err)
	}
	summary, err := p.Run(context.Background(), Options{})
	if err != nil {
		t.Fatal(err)
	}
	if summary.Processed != 1 {
		t.Errorf("newer source should be reprocessed: %+v", summary)
	}
}

func TestRunFailureIsolation(t *testing.T) {
	for _, workers := range []int{1, 3} {
		enc := &fakeEncoder{size: 10, failOn: "broken"}
		obs := &recordingObserver{}
		p, src, out := videoPipeline(t, enc, WithObserver(obs))
		writeSource(t, src, "a.mp4", 100)
		writeSource(t, src, "broken.mp4", 100)
		writeSource(t, src, "c.mov", 100)

		summary, err := p.Run(context.Background(), Options{Workers: workers})
		if err != nil {
			t.Fatalf("workers=%d: asset failure should not abort run: %v", workers, err)
		}
		if summary.Processed != 2 || summary.Failed != 1 {
			t.Errorf("workers=%d: unexpected summary %+v", workers, summary)
		}
		failed := summary.FailedResults()
		if len(failed) != 1 || failed[0].Asset.Name != "broken.mp4" {
			t.Errorf("workers=%d: failed = %+v", workers, failed)
		}
		if got := outputNames(t, out); strings.Join(got, ",") != "a.mp4,c.mov" {
			t.Errorf("workers=%d: outputs = %v", workers, got)
		}
		if obs.planned != 3 || obs.started != 3 || len(obs.done) != 3 {
			t.Errorf("workers=%d: observer saw planned=%d started=%d done=%d", workers, obs.planned, obs.started, len(obs.done))
		}
	}
}

func TestRunPrefixCollisionKeepsSiblingOutputs(t *testing.T) {
	enc := &fakeEncoder{size: 10}
	p, src, out := videoPipeline(t, enc)
	writeSource(t, src, "romi.mp4", 100)
	writeSource(t, src, "romix.mp4", 100)

	summary, err := p.Run(context.Background(), Options{Workers: 2})
	if err != nil {
		t.Fatal(err)
	}
	if summary.Processed != 2 {
		t.Fatalf("unexpected summary %+v", summary)
	}

	want := []string{
		"romi.mp4", "romi_poster.jpg", "romi_thumb.jpg",
		"romix.mp4", "romix.webm", "romix_mobile.mp4",
	}
	if got := outputNames(t, out); strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("outputs = %v, want %v", got, want)
	}

	second, err := p.Run(context.Background(), Options{Workers: 2})
	if err != nil {
		t.Fatal(err)
	}
	if second.Processed != 0 {
		t.Errorf("second run should be up to date: %+v", second)
	}
}

func TestRunRegeneratesSiblingHitByPrefixCleanup(t *testing.T) {
	enc := &fakeEncoder{size: 10}
	p, src, out := videoPipeline(t, enc)
	writeSource(t, src, "romi.mp4", 100)
	writeSource(t, src, "romix.mp4", 100)

	if _, err := p.Run(context.Background(), Options{}); err != nil {
		t.Fatal(err)
	}

	// 只让 romi 过期；它的前缀清理会删除 romix 的产物
	if err := os.Remove(filepath.Join(out, "romi_thumb.jpg")); err != nil {
		t.Fatal(err)
	}

	for _, workers := range []int{1, 2} {
		second, err := p.Run(context.Background(), Options{Workers: workers})
		if err != nil {
			t.Fatal(err)
		}
		if workers == 1 && (second.Processed != 2 || second.Skipped != 0) {
			t.Errorf("被波及的资产应在同一次运行中重新生成: %+v", second)
		}

		want := []string{
			"romi.mp4", "romi_poster.jpg", "romi_thumb.jpg",
			"romix.mp4", "romix.webm", "romix_mobile.mp4",
		}
		if got := outputNames(t, out); strings.Join(got, ",") != strings.Join(want, ",") {
			t.Errorf("workers=%d: outputs = %v, want %v", workers, got, want)
		}

		third, err := p.Run(context.Background(), Options{Workers: workers})
		if err != nil {
			t.Fatal(err)
		}
		if third.Processed != 0 || !third.UpToDate() {
			t.Errorf("workers=%d: run without source change should be up to date: %+v", workers, third)
		}
		if err := os.Remove(filepath.Join(out, "romi_thumb.jpg")); err != nil {
			t.Fatal(err)
		}
	}
}

func TestRunMissingSourceDirIsFatal(t *testing.T) {
	p, src, _ := videoPipeline(t, &fakeEncoder{})
	p.target.SourceDir = filepath.Join(src, "missing")

	_, err := p.Run(context.Background(), Options{})
	if err == nil {
		t.Fatal("expected error")
	}
	if !converter.IsType(err, converter.ErrorTypeDirectoryNotFound) || !IsFatal(err) {
		t.Errorf("expected fatal directory error, got %v", err)
	}
	if !errors.Is(err, asset.ErrDirectoryNotFound) {
		t.Errorf("sentinel should be reachable: %v", err)
	}
}

func TestRunDryRunWritesNothing(t *testing.T) {
	enc := &fakeEncoder{size: 10}
	p, src, out := videoPipeline(t, enc)
	writeSource(t, src, "hero.mp4", 100)
	writeSource(t, src, "clip.mov", 100)

	summary, err := p.Run(context.Background(), Options{DryRun: true})
	if err != nil {
		t.Fatal(err)
	}
	if !summary.DryRun || summary.Pending != 2 || summary.Processed != 0 {
		t.Errorf("unexpected dry-run summary %+v", summary)
	}
	if enc.callCount() != 0 {
		t.Error("dry run invoked encoder")
	}
	if _, err := os.Stat(out); !os.IsNotExist(err) {
		t.Errorf("dry run created output dir: %v", err)
	}
}

func TestRunCreatesOutputDirWhenNothingToDo(t *testing.T) {
	p, _, out := videoPipeline(t, &fakeEncoder{})

	summary, err := p.Run(context.Background(), Options{})
	if err != nil {
		t.Fatal(err)
	}
	if summary.Scanned != 0 || !summary.UpToDate() {
		t.Errorf("unexpected summary %+v", summary)
	}
	if info, err := os.Stat(out); err != nil || !info.IsDir() {
		t.Errorf("output dir not created: %v", err)
	}
}

func TestRunPreflightAbortsBeforeGeneration(t *testing.T) {
	enc := &fakeEncoder{size: 10}
	pf := NewPreflight(1024, zap.NewNop())
	pf.usage = func(string) (*disk.UsageStat, error) {
		return &disk.UsageStat{Free: 10 << 20}, nil
	}
	p, src, _ := videoPipeline(t, enc, WithPreflight(pf))
	writeSource(t, src, "clip.mov", 100)

	summary, err := p.Run(context.Background(), Options{})
	if !errors.Is(err, ErrInsufficientDisk) {
		t.Fatalf("expected ErrInsufficientDisk, got %v", err)
	}
	if enc.callCount() != 0 {
		t.Error("encoder should not run after failed preflight")
	}
	if !summary.Aborted || summary.Pending != 1 || summary.Skipped != 0 || summary.UpToDate() {
		t.Errorf("unexpected summary after failed preflight: %+v", summary)
	}

	var b strings.Builder
	if err := report.Render(&b, summary); err != nil {
		t.Fatal(err)
	}
	if strings.Contains(b.String(), "up to date") || !strings.Contains(b.String(), "Run aborted") {
		t.Errorf("预检失败后的汇总输出错误: %q", b.String())
	}
}

func TestPreflightUnavailableDiskInfo(t *testing.T) {
	pf := NewPreflight(1024, zap.NewNop())
	pf.usage = func(string) (*disk.UsageStat, error) {
		return nil, errors.New("not supported")
	}
	if err := pf.Check(t.TempDir()); err != nil {
		t.Errorf("missing disk info should not block: %v", err)
	}
}

func TestAutoWorkersBounds(t *testing.T) {
	w := AutoWorkers(zap.NewNop())
	if w < 1 || w > maxAutoWorkers {
		t.Errorf("AutoWorkers = %d", w)
	}
}

func TestRunCanceledContext(t *testing.T) {
	enc := &fakeEncoder{size: 10}
	p, src, _ := videoPipeline(t, enc)
	writeSource(t, src, "clip.mov", 100)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	summary, err := p.Run(ctx, Options{})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if summary.UpToDate() || summary.Pending != 1 {
		t.Errorf("canceled run should report pending work: %+v", summary)
	}
	if IsFatal(nil) {
		t.Error("nil error is not fatal")
	}
}

func TestRunRecordsHistory(t *testing.T) {
	h, err := state.Open(filepath.Join(t.TempDir(), "history.db"), zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	defer h.Close()

	enc := &fakeEncoder{size: 10, failOn: "bad"}
	p, src, _ := videoPipeline(t, enc, WithRecorder(NewHistoryRecorder(h, zap.NewNop())))
	writeSource(t, src, "ok.mp4", 100)
	writeSource(t, src, "bad.mp4", 100)

	if _, err := p.Run(context.Background(), Options{}); err != nil {
		t.Fatal(err)
	}

	runs, err := h.ListRuns(0)
	if err != nil || len(runs) != 1 {
		t.Fatalf("runs = %v, %v", runs, err)
	}
	if runs[0].Status != state.RunCompleted || runs[0].Processed != 1 || runs[0].Failed != 1 {
		t.Errorf("unexpected run %+v", runs[0])
	}
	records, err := h.Records(runs[0].ID)
	if err != nil || len(records) != 2 {
		t.Fatalf("records = %v, %v", records, err)
	}
}

func TestFindOrphans(t *testing.T) {
	p, src, out := videoPipeline(t, &fakeEncoder{size: 10})
	writeSource(t, src, "romi.mp4", 100)
	if _, err := p.Run(context.Background(), Options{}); err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"romix.mp4", "gone.mov"} {
		if err := os.WriteFile(filepath.Join(out, name), []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
	}

	orphans, err := p.FindOrphans()
	if err != nil {
		t.Fatal(err)
	}
	want := []string{filepath.Join(out, "gone.mov"), filepath.Join(out, "romix.mp4")}
	if strings.Join(orphans, ",") != strings.Join(want, ",") {
		t.Errorf("orphans = %v, want %v", orphans, want)
	}

	res := RemoveOrphans(orphans, converter.NewFileOperationHandler(zap.NewNop()))
	if res.SuccessCount != 2 || res.FailureCount != 0 {
		t.Errorf("unexpected removal result %+v", res)
	}
	if got := outputNames(t, out); len(got) != 3 {
		t.Errorf("outputs after prune = %v", got)
	}
}

func TestSummaryRenderAfterRun(t *testing.T) {
	p, src, _ := videoPipeline(t, &fakeEncoder{size: 10})
	writeSource(t, src, "clip.mov", 100)

	summary, err := p.Run(context.Background(), Options{})
	if err != nil {
		t.Fatal(err)
	}
	var b strings.Builder
	if err := report.Render(&b, summary); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(b.String(), "Processed") {
		t.Errorf("unexpected render output %q", b.String())
	}
}
