package ui

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/fatih/color"

	"assetopt/core/asset"
	"assetopt/core/converter"
	"assetopt/core/profile"
	"assetopt/core/report"
)

func TestConsolePlanAndResults(t *testing.T) {
	color.NoColor = true

	var buf bytes.Buffer
	c := NewConsole(&buf, true)

	hero := asset.SourceAsset{Name: "hero.mp4", Size: 2048}
	clip := asset.SourceAsset{Name: "clip.mov", Size: 1024}
	c.OnPlan("videos", []profile.Decision{
		{Asset: hero, Profile: profile.HeroVideo, Stale: true},
		{Asset: clip, Profile: profile.BasicVideo},
	})
	c.OnAssetStart(hero, profile.HeroVideo)
	c.OnAssetDone(converter.ProcessingResult{Asset: hero, Profile: profile.HeroVideo, Success: true, OriginalBytes: 2048, OptimizedBytes: 1024})
	c.OnAssetDone(converter.ProcessingResult{Asset: clip, Profile: profile.BasicVideo, Err: errors.New("exit status 1")})

	out := buf.String()
	for _, want := range []string{
		"videos: 2 found, 1 to process",
		"needs processing",
		"up to date",
		"→ hero.mp4 [HeroVideo] (2 KB)",
		"✓ hero.mp4",
		"✗ clip.mov: FAILED",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestConsoleFinishUpToDate(t *testing.T) {
	color.NoColor = true

	var buf bytes.Buffer
	c := NewConsole(&buf, false)
	s := report.Tally(2, nil)
	s.Target = "images"
	if err := c.Finish(s); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "All images up to date") {
		t.Errorf("unexpected output %q", buf.String())
	}
}

func TestGetTerminalInfoDefaults(t *testing.T) {
	info := GetTerminalInfo()
	if info.Width <= 0 || info.Height <= 0 {
		t.Errorf("invalid terminal size %+v", info)
	}
}

func TestPlanNameWidth(t *testing.T) {
	tests := []struct {
		term int
		want int
	}{
		{0, 20},
		{80, 80 - 34},
		{200, 60},
	}
	for _, tt := range tests {
		if got := planNameWidth(tt.term); got != tt.want {
			t.Errorf("planNameWidth(%d) = %d, want %d", tt.term, got, tt.want)
		}
	}
}

func TestConsoleErrorf(t *testing.T) {
	color.NoColor = true

	var buf bytes.Buffer
	c := NewConsole(&buf, false)
	c.Errorf("✗ %s 运行中止: %v", "videos", errors.New("insufficient disk space"))
	if buf.String() != "✗ videos 运行中止: insufficient disk space\n" {
		t.Errorf("unexpected output %q", buf.String())
	}
}
