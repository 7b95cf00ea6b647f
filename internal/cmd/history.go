package cmd

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"assetopt/core/report"
	"assetopt/core/state"
)

var (
	historyLimit  int
	historyDelete bool
)

var historyCmd = &cobra.Command{
	Use:   "history [run-id]",
	Short: "查看运行历史",
	Long: `不带参数时列出最近的运行；指定 run-id 时列出该次运行的每个资产。
需要在配置中启用 history.enabled。`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := ready(); err != nil {
			return err
		}
		if !cfg.History.Enabled {
			return errors.New("运行历史未启用 (history.enabled: false)")
		}

		h, err := state.Open(cfg.History.DBPath, log.Named("history"))
		if err != nil {
			return err
		}
		defer h.Close()

		if historyDelete {
			if len(args) != 1 {
				return errors.New("--delete 需要指定 run-id")
			}
			if err := h.DeleteRun(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "已删除运行记录: %s\n", args[0])
			return nil
		}

		var data pterm.TableData
		if len(args) == 1 {
			data, err = recordsTable(h, args[0])
		} else {
			data, err = runsTable(h, historyLimit)
		}
		if err != nil {
			return err
		}

		table, err := pterm.DefaultTable.WithHasHeader().WithData(data).Srender()
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), table)
		return nil
	},
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "最多显示的运行数，0 表示全部")
	historyCmd.Flags().BoolVar(&historyDelete, "delete", false, "删除指定的运行记录")
	rootCmd.AddCommand(historyCmd)
}

func runsTable(h *state.History, limit int) (pterm.TableData, error) {
	runs, err := h.ListRuns(limit)
	if err != nil {
		return nil, err
	}

	data := pterm.TableData{{"ID", "Target", "Status", "Started", "Processed", "Skipped", "Failed", "Output"}}
	for _, r := range runs {
		data = append(data, []string{
			r.ID,
			r.Target,
			string(r.Status),
			r.StartTime.Format("2006-01-02 15:04:05"),
			strconv.Itoa(r.Processed),
			strconv.Itoa(r.Skipped),
			strconv.Itoa(r.Failed),
			report.FormatBytes(r.OutputBytes),
		})
	}
	return data, nil
}

func recordsTable(h *state.History, id string) (pterm.TableData, error) {
	records, err := h.Records(id)
	if err != nil {
		return nil, err
	}

	data := pterm.TableData{{"Asset", "Profile", "Result", "Original", "Optimized", "Error"}}
	for _, r := range records {
		result := "ok"
		if !r.Success {
			result = "failed"
		}
		data = append(data, []string{
			r.Asset,
			r.Profile,
			result,
			report.FormatBytes(r.OriginalBytes),
			report.FormatBytes(r.OptimizedBytes),
			truncate(r.Error, 60),
		})
	}
	return data, nil
}
