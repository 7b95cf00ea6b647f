package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/pterm/pterm"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"assetopt/core/converter"
)

// printer 数字分组格式化，如 1,234
var printer = message.NewPrinter(language.English)

// AssetLine 单个资产的结果行："原大小 → 优化后大小 (x% reduced)"
func AssetLine(r converter.ProcessingResult) string {
	if !r.Success {
		return fmt.Sprintf("%s: FAILED (%v)", r.Asset.Name, r.Err)
	}
	return fmt.Sprintf("%s [%s]: %s → %s (%.1f%% reduced)",
		r.Asset.Name, r.Profile, FormatBytes(r.OriginalBytes), FormatBytes(r.OptimizedBytes), r.ReductionPercent())
}

// Render 渲染汇总表格
func Render(w io.Writer, s Summary) error {
	if s.DryRun {
		_, err := fmt.Fprintf(w, "Dry run: %s of %s %s would be processed\n",
			printer.Sprintf("%d", s.Pending), printer.Sprintf("%d", s.Scanned), s.Target)
		return err
	}
	if s.UpToDate() {
		_, err := fmt.Fprintf(w, "All %s up to date (%s scanned)\n", s.Target, printer.Sprintf("%d", s.Scanned))
		return err
	}

	data := pterm.TableData{
		{"Metric", "Value"},
		{"Scanned", printer.Sprintf("%d", s.Scanned)},
		{"Processed", printer.Sprintf("%d", s.Processed)},
		{"Skipped", printer.Sprintf("%d", s.Skipped)},
		{"Failed", printer.Sprintf("%d", s.Failed)},
	}
	if s.Aborted {
		data = append(data, []string{"Not processed", printer.Sprintf("%d", s.Pending)})
	}
	data = append(data, pterm.TableData{
		{"Source size", FormatBytes(s.SourceBytes)},
		{"Output size", FormatBytes(s.OutputBytes)},
		{"Reduction", fmt.Sprintf("%.1f%%", s.ReductionPercent)},
		{"Duration", s.Duration.Round(time.Millisecond).String()},
	}...)

	table, err := pterm.DefaultTable.WithHasHeader().WithBoxed().WithData(data).Srender()
	if err != nil {
		return err
	}

	var b strings.Builder
	if s.Aborted {
		b.WriteString(fmt.Sprintf("Run aborted: %s of %s %s not processed\n",
			printer.Sprintf("%d", s.Pending), printer.Sprintf("%d", s.Scanned), s.Target))
	}
	b.WriteString(table)
	b.WriteString("\n")

	if failed := s.FailedResults(); len(failed) > 0 {
		b.WriteString("Failed assets:\n")
		for _, r := range failed {
			b.WriteString("  - ")
			b.WriteString(AssetLine(r))
			b.WriteString("\n")
		}
	}

	_, err = io.WriteString(w, b.String())
	return err
}
