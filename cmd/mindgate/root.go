package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"mindgate/internal/config"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "mindgate",
	Short: "MindVideo generation gateway",
	Long:  `MindGate - an OpenAI-compatible gateway for asynchronous MindVideo image and video generation.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./configs/config.yaml)")
}

func initConfig() {
	config.Init(cfgFile)
}
