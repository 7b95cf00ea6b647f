package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"assetopt/core/converter"
	"assetopt/core/deps"
)

var depsCmd = &cobra.Command{
	Use:   "deps",
	Short: "检查 ffmpeg/ffprobe 及所需编码器",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := ready(); err != nil {
			return err
		}

		tm := converter.NewToolManager(log.Named("tools"), cfg.Tools.Timeout, 0)
		dm := deps.NewDependencyManager(tm, cfg.Tools.FFmpegPath, cfg.Tools.FFprobePath)
		dm.CheckDependencies(cmd.Context())

		data := pterm.TableData{{"Tool", "Status", "Path", "Version / Problem"}}
		for _, tool := range dm.GetAllTools() {
			status := "OK"
			detail := tool.Version
			if !tool.Installed || len(tool.MissingEncoders) > 0 {
				status = "MISSING"
				if !tool.Required {
					status = "MISSING (optional)"
				}
				detail = tool.ErrorMessage
			}
			data = append(data, []string{tool.Name, status, tool.Path, truncate(detail, 60)})
		}

		table, err := pterm.DefaultTable.WithHasHeader().WithData(data).Srender()
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), table)

		if !dm.IsAllRequiredInstalled() {
			return errors.New("缺少必需的依赖组件")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(depsCmd)
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len([]rune(s)) <= n {
		return s
	}
	return string([]rune(s)[:n-1]) + "…"
}
