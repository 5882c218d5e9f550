package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

var (
	// 全局日志级别，配置加载后调整
	logLevel = new(slog.LevelVar)

	configPath string
	identity   string
)

var rootCmd = &cobra.Command{
	Use:   "client",
	Short: "Chat client with local conversation sync",
	Long: `Logs in to a polled chat backend, replays history once, then keeps a
local conversation store current by polling for pending messages.

The store is served over a small HTTP API and can be mirrored to Redis,
announced over NATS and archived to PostgreSQL.`,
	SilenceUsage: true,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Log in and keep conversations in sync until interrupted",
	RunE:  runClient,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "configs/config.yaml", "path to config file")
	runCmd.Flags().StringVarP(&identity, "identity", "u", "", "username to log in as (overrides session.identity)")
	rootCmd.AddCommand(runCmd)
}

func main() {
	// 初始化日志
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
