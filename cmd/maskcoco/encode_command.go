package main

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/model-collapse/maskcoco/internal/pipeline"
)

func newEncodeCommand(ctx *commandContext) *cobra.Command {
	var (
		assumeYes bool
		workers   int
		tolerance float64
		subset    string
	)

	cmd := &cobra.Command{
		Use:   "encode <root>",
		Short: "Encode a dataset root into an annotation document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			base, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			cfg := *base
			flags := cmd.Flags()
			if flags.Changed("workers") {
				cfg.Encode.Workers = workers
			}
			if flags.Changed("tolerance") {
				cfg.Encode.Tolerance = tolerance
			}
			if flags.Changed("subset") {
				cfg.Dataset.Subset = subset
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			logger, err := ctx.logger(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			layout, err := ctx.layout(args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			opts := pipeline.Options{
				Root:   layout.Root,
				Config: &cfg,
				Logger: logger,
			}
			if !assumeYes {
				opts.Confirm = func(l pipeline.Layout) (bool, error) {
					fmt.Fprint(out, l.Explain())
					return confirm(cmd.InOrStdin(), out, "Is this correct?")
				}
			}
			bar := newProgress(cmd.ErrOrStderr())
			if bar != nil {
				opts.Progress = func(done, total int) {
					bar.ChangeMax(total)
					_ = bar.Set(done)
				}
			}

			runner, err := pipeline.New(opts)
			if err != nil {
				return err
			}
			sum, err := runner.Run(cmd.Context())
			if bar != nil {
				_ = bar.Finish()
			}
			if err != nil {
				return err
			}
			if sum.Declined {
				fmt.Fprintln(out, "Aborted; nothing was changed.")
				return nil
			}
			fmt.Fprintln(out, renderSummary(sum))
			fmt.Fprintf(out, "Wrote %s\n", sum.DocumentPath)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "Skip the layout confirmation prompt")
	cmd.Flags().IntVarP(&workers, "workers", "w", 1, "Number of concurrent mask encoders")
	cmd.Flags().Float64VarP(&tolerance, "tolerance", "t", 2, "Polygon simplification tolerance in pixels")
	cmd.Flags().StringVar(&subset, "subset", "", "Subset name used in the document file name (default: root directory name)")
	return cmd
}

// newProgress returns a progress bar on terminals and nil elsewhere.
func newProgress(w io.Writer) *progressbar.ProgressBar {
	if !isTerminal(w) {
		return nil
	}
	return progressbar.NewOptions(-1,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription("encoding"),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionThrottle(100*time.Millisecond),
	)
}

func renderSummary(sum pipeline.Summary) string {
	rows := [][]string{
		{"Images found", strconv.Itoa(sum.Images)},
		{"Images accepted", strconv.Itoa(sum.Accepted)},
		{"Images quarantined", strconv.Itoa(sum.Quarantined)},
		{"Annotations", strconv.Itoa(sum.Annotations)},
	}
	if sum.Collisions > 0 {
		rows = append(rows, []string{"Quarantine collisions", strconv.Itoa(sum.Collisions)})
	}
	if sum.QuarantineErrors > 0 {
		rows = append(rows, []string{"Quarantine errors", strconv.Itoa(sum.QuarantineErrors)})
	}
	rows = append(rows,
		[]string{"Elapsed", sum.Elapsed.Round(time.Millisecond).String()},
		[]string{"Run", sum.RunID},
	)
	return renderTable([]string{"Metric", "Value"}, rows, 1)
}
