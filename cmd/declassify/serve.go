package main

import (
	"github.com/spf13/cobra"

	mcpserver "github.com/gnana997/declassify/pkg/mcp"
	"github.com/gnana997/declassify/pkg/mcplog"
)

func newServeCmd(global *globalOptions) *cobra.Command {
	var callLog string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP server on stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd, global)
			if err != nil {
				return err
			}
			defer a.close()

			if !cmd.Flags().Changed("call-log") {
				callLog = a.cfg.MCP.CallLog
			}
			calls, err := mcplog.NewLogger(callLog)
			if err != nil {
				return err
			}
			defer calls.Close()

			srv := mcpserver.NewServer(a.runner(false), version, calls, a.logger)
			return srv.ServeStdio()
		},
	}
	cmd.Flags().StringVar(&callLog, "call-log", "", "append a JSONL record of every tool call to this file")
	return cmd
}
