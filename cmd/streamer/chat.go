package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/rickgao/coin-stream/internal/board"
	"github.com/rickgao/coin-stream/internal/config"
	"github.com/rickgao/coin-stream/internal/connection"
)

func newChatCmd(flags *globalFlags) *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "chat MARKET MESSAGE...",
		Short: "Send one chat message to a market room",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadAndValidate(flags.configPath)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			return sendChat(ctx, cfg, args[0], strings.Join(args[1:], " "))
		},
	}

	cmd.Flags().DurationVar(&timeout, "timeout", 15*time.Second, "time allowed to connect and send")
	return cmd
}

func sendChat(ctx context.Context, cfg *config.StreamerConfig, market, content string, opts ...connection.Option) error {
	ready := make(chan struct{}, 1)
	opts = append([]connection.Option{
		connection.WithLogger(stderrLogger(cfg)),
		connection.WithOnConnect(func() {
			select {
			case ready <- struct{}{}:
			default:
			}
		}),
	}, opts...)

	conn := connection.New(cfg.Connection(), opts...)
	defer conn.Close()

	b := board.New(conn, cfg.Board(), nil)
	conn.Connect()

	select {
	case <-ready:
	case <-ctx.Done():
		return fmt.Errorf("connect: %w", ctx.Err())
	}

	if err := b.SendChat(market, content); err != nil {
		return fmt.Errorf("send chat: %w", err)
	}

	// Disconnect runs after the queued SEND on the event loop.
	conn.Disconnect()
	return nil
}
