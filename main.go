package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/fatih/color"

	"assetopt/config"
	"assetopt/internal/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		var verr *config.ValidationError
		if errors.As(err, &verr) {
			fmt.Fprintln(os.Stderr, color.RedString("配置错误: %v", verr))
		} else {
			fmt.Fprintln(os.Stderr, color.RedString("错误: %v", err))
		}
		os.Exit(1)
	}
}
