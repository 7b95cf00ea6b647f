package deps

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"go.uber.org/zap"

	"assetopt/core/converter"
)

func TestMissingToolsReported(t *testing.T) {
	tm := converter.NewToolManager(zap.NewNop(), 0, 0)
	dm := NewDependencyManager(tm, "no-such-ffmpeg-binary", "no-such-ffprobe-binary")

	dm.CheckDependencies(context.Background())

	ffmpeg := dm.GetTool("ffmpeg")
	if ffmpeg.Installed || ffmpeg.ErrorMessage == "" {
		t.Errorf("missing ffmpeg should be reported: %+v", ffmpeg)
	}
	if dm.IsAllRequiredInstalled() {
		t.Error("required tools missing but reported as installed")
	}

	tools := dm.GetAllTools()
	if len(tools) != 2 || tools[0].Name != "FFmpeg" || tools[1].Name != "FFprobe" {
		t.Errorf("unexpected tool order: %+v", tools)
	}
}

func TestOptionalToolDoesNotBlock(t *testing.T) {
	tm := converter.NewToolManager(zap.NewNop(), 0, 0)
	dm := NewDependencyManager(tm, "ffmpeg", "no-such-ffprobe-binary")

	// 模拟 ffmpeg 已检查通过
	dm.tools["ffmpeg"].Installed = true
	dm.tools["ffprobe"].Installed = false

	if !dm.IsAllRequiredInstalled() {
		t.Error("optional ffprobe should not block")
	}

	dm.tools["ffmpeg"].MissingEncoders = []string{"libwebp"}
	if dm.IsAllRequiredInstalled() {
		t.Error("missing encoder should block")
	}
}

const fakeFFmpeg = `#!/bin/sh
case "$*" in
*-encoders*)
	echo " V....D libx264              libx264 H.264"
	echo " A....D aac                  AAC"
	echo " V....D libwebp              libwebp WebP"
	;;
*)
	echo "ffmpeg version 6.1-test"
	;;
esac
`

func TestMissingEncodersReported(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("需要 sh")
	}
	path := filepath.Join(t.TempDir(), "ffmpeg")
	if err := os.WriteFile(path, []byte(fakeFFmpeg), 0755); err != nil {
		t.Fatal(err)
	}

	tm := converter.NewToolManager(zap.NewNop(), 0, 0)
	dm := NewDependencyManager(tm, path, "no-such-ffprobe-binary")
	dm.CheckDependencies(context.Background())

	ffmpeg := dm.GetTool("ffmpeg")
	if !ffmpeg.Installed || ffmpeg.Version != "ffmpeg version 6.1-test" {
		t.Fatalf("fake ffmpeg not detected: %+v", ffmpeg)
	}
	want := []string{"libvpx-vp9", "libopus", "mjpeg"}
	if strings.Join(ffmpeg.MissingEncoders, ",") != strings.Join(want, ",") {
		t.Errorf("missing encoders = %v, want %v", ffmpeg.MissingEncoders, want)
	}
	if dm.IsAllRequiredInstalled() {
		t.Error("missing encoders should block")
	}
}
