package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/gnana997/declassify/pkg/runner"
)

type convertOptions struct {
	write         bool
	diff          bool
	json          bool
	stdinFilename string
}

func newConvertCmd(global *globalOptions) *cobra.Command {
	opts := &convertOptions{}
	cmd := &cobra.Command{
		Use:   "convert [paths...]",
		Short: "Convert class components in files or directories",
		Long: `Convert React class components into function components with hooks.

Without --write nothing is modified and a per-file report is printed.
Components that cannot be converted safely get a leading comment that
explains why; later runs skip them.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.write && opts.diff {
				return fmt.Errorf("--write and --diff are mutually exclusive")
			}
			a, err := newApp(cmd, global)
			if err != nil {
				return err
			}
			defer a.close()

			if opts.stdinFilename != "" {
				return convertStdin(cmd, a, opts.stdinFilename)
			}

			reports, runErr := a.run(cmd, args, opts.write)
			if reports == nil {
				return runErr
			}
			if err := printReports(cmd.OutOrStdout(), reports, opts, "changed"); err != nil {
				return err
			}
			return runErr
		},
	}
	cmd.Flags().BoolVarP(&opts.write, "write", "w", false, "write converted files in place")
	cmd.Flags().BoolVarP(&opts.diff, "diff", "d", false, "print unified diffs instead of reports")
	cmd.Flags().BoolVar(&opts.json, "json", false, "print reports as JSON")
	cmd.Flags().StringVar(&opts.stdinFilename, "stdin-filename", "", "read source from stdin, write the result to stdout; the name picks the dialect")
	return cmd
}

func newCheckCmd(global *globalOptions) *cobra.Command {
	opts := &convertOptions{}
	cmd := &cobra.Command{
		Use:   "check [paths...]",
		Short: "Report files that still contain convertible class components",
		Long: `Run the conversion without writing anything. The command fails when
any file would change, which makes it usable as a CI gate.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, global)
			if err != nil {
				return err
			}
			defer a.close()

			reports, runErr := a.run(cmd, args, false)
			if reports == nil {
				return runErr
			}
			if err := printReports(cmd.OutOrStdout(), reports, opts, "need conversion"); err != nil {
				return err
			}
			if runErr != nil {
				return runErr
			}
			if runner.Summarize(reports).Changed > 0 {
				return errPendingChanges
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&opts.diff, "diff", "d", false, "print unified diffs instead of reports")
	cmd.Flags().BoolVar(&opts.json, "json", false, "print reports as JSON")
	return cmd
}

// run discovers the files under paths and converts them. Reports are nil
// only when nothing ran; per-file failures come with the reports.
func (a *app) run(cmd *cobra.Command, paths []string, write bool) ([]runner.FileReport, error) {
	if len(paths) == 0 {
		paths = []string{"."}
	}
	files, err := runner.DiscoverAll(paths, a.include, a.exclude)
	if err != nil {
		return nil, err
	}
	a.logger.Info("Converting files", "files", len(files), "write", write)

	reports, err := a.runner(write).Run(cmd.Context(), files)
	if err != nil {
		return nil, err
	}
	if s := runner.Summarize(reports); s.Errors > 0 {
		return reports, fmt.Errorf("%d of %d files failed", s.Errors, s.Files)
	}
	return reports, nil
}

func printReports(w io.Writer, reports []runner.FileReport, opts *convertOptions, verb string) error {
	switch {
	case opts.json:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			Files   []runner.FileReport `json:"files"`
			Summary runner.Summary      `json:"summary"`
		}{reports, runner.Summarize(reports)})

	case opts.diff:
		for i := range reports {
			r := &reports[i]
			if !r.Changed {
				continue
			}
			diff, err := unifiedDiff(r)
			if err != nil {
				return fmt.Errorf("failed to diff %s: %w", r.Path, err)
			}
			fmt.Fprint(w, diff)
		}
		return nil
	}

	for i := range reports {
		r := &reports[i]
		if len(r.Classes) == 0 && r.Error == "" {
			continue
		}
		printFileReport(w, r)
	}
	printSummary(w, runner.Summarize(reports), verb)
	return nil
}

func convertStdin(cmd *cobra.Command, a *app, filename string) error {
	source, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return fmt.Errorf("failed to read stdin: %w", err)
	}
	res, err := a.runner(false).TransformSource(filename, source)
	if err != nil {
		return err
	}
	_, err = cmd.OutOrStdout().Write(res.Output)
	return err
}
