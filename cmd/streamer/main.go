// streamer connects to the market-data broker and keeps a live view of
// tickers and one focused market.
//
// Usage:
//
//	streamer run --config configs/streamer.yaml
//	streamer tail /sub/coin/trade
//	streamer chat KRW-BTC "hello"
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/rickgao/coin-stream/internal/version"
)

type globalFlags struct {
	configPath string
	envFile    string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}

	root := &cobra.Command{
		Use:           "streamer",
		Short:         "Real-time market data over STOMP",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return loadEnv(flags.envFile)
		},
	}

	root.PersistentFlags().StringVar(&flags.configPath, "config", "configs/streamer.yaml", "path to config file")
	root.PersistentFlags().StringVar(&flags.envFile, "env-file", "", "optional .env file loaded before the config")

	root.AddCommand(
		newRunCmd(flags),
		newTailCmd(flags),
		newChatCmd(flags),
		newVersionCmd(),
	)
	return root
}

// loadEnv loads path into the environment. A missing default .env is fine.
func loadEnv(path string) error {
	if path == "" {
		if _, err := os.Stat(".env"); err != nil {
			return nil
		}
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load env file: %w", err)
	}
	return nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.String())
		},
	}
}
