package main

import (
	"fmt"

	"github.com/bytedance/sonic"
	"github.com/spf13/cobra"
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "Print the configured model registry",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp(nil)
		if err != nil {
			return err
		}
		defer a.log.Sync()

		out, err := sonic.ConfigStd.MarshalIndent(map[string]interface{}{
			"default": a.registry.DefaultKey(),
			"models":  a.registry.List(),
		}, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(out))
		return nil
	},
}

func SetupModelsCmd() {
	rootCmd.AddCommand(modelsCmd)
}
