package main

import (
	"fmt"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/gnana997/declassify/pkg/runner"
)

func newWatchCmd(global *globalOptions) *cobra.Command {
	var (
		write    bool
		debounce time.Duration
	)
	cmd := &cobra.Command{
		Use:   "watch <dir>",
		Short: "Convert files again whenever they change",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, global)
			if err != nil {
				return err
			}
			defer a.close()

			var mu sync.Mutex
			out := cmd.OutOrStdout()
			w, err := runner.NewWatcher(a.runner(write), runner.WatchOptions{
				Include:  a.include,
				Exclude:  a.exclude,
				Debounce: debounce,
				OnReport: func(r runner.FileReport) {
					if len(r.Classes) == 0 && r.Error == "" {
						return
					}
					mu.Lock()
					defer mu.Unlock()
					printFileReport(out, &r)
				},
			}, a.logger)
			if err != nil {
				return err
			}
			if err := w.Start(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Watching %s (Ctrl+C to stop)\n", args[0])

			<-cmd.Context().Done()
			return w.Stop()
		},
	}
	cmd.Flags().BoolVarP(&write, "write", "w", false, "write converted files in place")
	cmd.Flags().DurationVar(&debounce, "debounce", 200*time.Millisecond, "delay before a changed file is converted")
	return cmd
}
