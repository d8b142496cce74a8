package main

import (
	"context"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"github.com/spf13/cobra"

	"mindgate/internal/core"
	"mindgate/internal/core/orchestrator"
	"mindgate/internal/pkg/logger"
)

var queryTimeout time.Duration

var queryCmd = &cobra.Command{
	Use:   "query <taskId>",
	Short: "Poll one task once with the first credential",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp(nil)
		if err != nil {
			return err
		}
		defer a.log.Sync()

		cred, err := a.picker.First()
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
		defer cancel()

		orch := orchestrator.New(a.client, orchestrator.WithLogger(logger.Wrap(a.log)))
		snap, err := orch.Poll(ctx, core.TaskHandle{TaskID: args[0], Credential: cred})
		if err != nil {
			return err
		}

		out, err := sonic.ConfigStd.MarshalIndent(snap, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(out))
		return nil
	},
}

func SetupQueryCmd() {
	rootCmd.AddCommand(queryCmd)

	queryCmd.Flags().DurationVar(&queryTimeout, "timeout", 30*time.Second, "Request timeout")
}
