package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/rickgao/coin-stream/internal/codec"
	"github.com/rickgao/coin-stream/internal/config"
	"github.com/rickgao/coin-stream/internal/connection"
	"github.com/rickgao/coin-stream/internal/subscription"
)

func newTailCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "tail TOPIC...",
		Short: "Subscribe to raw topics and print each message body",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadAndValidate(flags.configPath)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return tail(ctx, cfg, args, cmd.OutOrStdout())
		},
	}
}

func tail(ctx context.Context, cfg *config.StreamerConfig, topics []string, out io.Writer, opts ...connection.Option) error {
	var mu sync.Mutex
	printer := func(topic string) subscription.Handler {
		return subscription.On[json.RawMessage](codec.Raw, func(body json.RawMessage) {
			mu.Lock()
			defer mu.Unlock()
			fmt.Fprintf(out, "%s %s\n", topic, body)
		})
	}

	opts = append([]connection.Option{connection.WithLogger(stderrLogger(cfg))}, opts...)
	conn := connection.New(cfg.Connection(), opts...)
	defer conn.Close()

	for _, t := range topics {
		conn.Subscribe(t, printer(t))
	}
	conn.Connect()

	<-ctx.Done()
	conn.Disconnect()
	return nil
}
