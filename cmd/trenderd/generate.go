package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mohammad-safakhou/trender/config"
	"github.com/mohammad-safakhou/trender/internal/server"
)

func generateCmd() *cobra.Command {
	var sessionID string
	cmd := &cobra.Command{
		Use:   "generate [prompt]",
		Short: "Answer a prompt through the model chain, with web search tooling",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return err
			}
			ctx, stop := signalContext()
			defer stop()
			stack, err := server.BuildStack(ctx, cfg)
			if err != nil {
				return err
			}
			res, err := stack.Generator.Generate(ctx, strings.Join(args, " "), sessionID)
			if err != nil {
				return err
			}
			out, err := json.MarshalIndent(res, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			return nil
		},
	}
	cmd.Flags().StringVar(&sessionID, "session", "", "session id (new when empty)")
	return cmd
}
