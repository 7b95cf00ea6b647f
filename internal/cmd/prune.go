package cmd

import (
	"errors"
	"fmt"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"assetopt/core/converter"
)

var pruneYes bool

var pruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "删除源文件已不存在的产物",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := ready(); err != nil {
			return err
		}

		var orphans []string
		for _, name := range []string{targetVideos, targetImages} {
			p, err := buildPipeline(name, 0)
			if err != nil {
				return err
			}
			found, err := p.FindOrphans()
			if err != nil {
				return err
			}
			orphans = append(orphans, found...)
		}

		out := cmd.OutOrStdout()
		if len(orphans) == 0 {
			fmt.Fprintln(out, "没有孤立的产物")
			return nil
		}
		for _, path := range orphans {
			fmt.Fprintln(out, "  "+path)
		}

		if !pruneYes {
			prompt := promptui.Prompt{
				Label:     fmt.Sprintf("删除以上 %d 个文件", len(orphans)),
				IsConfirm: true,
			}
			if _, err := prompt.Run(); err != nil {
				if errors.Is(err, promptui.ErrAbort) || errors.Is(err, promptui.ErrInterrupt) {
					fmt.Fprintln(out, "已取消")
					return nil
				}
				return err
			}
		}

		result := converter.NewFileOperationHandler(log).BatchRemoveFiles(orphans)
		fmt.Fprintf(out, "已删除 %d 个文件，失败 %d 个\n", result.SuccessCount, result.FailureCount)
		if result.Err != nil {
			log.Warn("部分文件删除失败", zap.Error(result.Err))
		}
		return nil
	},
}

func init() {
	pruneCmd.Flags().BoolVarP(&pruneYes, "yes", "y", false, "不询问直接删除")
	rootCmd.AddCommand(pruneCmd)
}
