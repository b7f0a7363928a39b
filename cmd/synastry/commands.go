package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ZanzyTHEbar/synastry-o-meter/internal/batch"
	"github.com/ZanzyTHEbar/synastry-o-meter/internal/chart"
	apperrors "github.com/ZanzyTHEbar/synastry-o-meter/internal/errors"
	"github.com/ZanzyTHEbar/synastry-o-meter/internal/synastry"
	"github.com/ZanzyTHEbar/synastry-o-meter/internal/types"
)

// pairFlags select where a pair comes from: a whole request document, or
// one chart file per side plus profile flags
type pairFlags struct {
	input       string
	leftChart   string
	rightChart  string
	leftGender  string
	rightGender string
	leftBirth   string
	rightBirth  string
}

func newPairCmd(opts *options, mode string) *cobra.Command {
	pf := &pairFlags{}

	cmd := &cobra.Command{
		Use:     "report",
		Aliases: []string{"score"},
		Short:   "Symmetric compatibility report for a pair",
		Args:    cobra.NoArgs,
	}
	if mode == types.ModeDirectional {
		cmd.Use = "directional"
		cmd.Aliases = nil
		cmd.Short = "Compatibility as seen from the left party"
	}

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		in, err := pf.read(cmd.InOrStdin())
		if err != nil {
			return err
		}
		a, err := opts.analyzer()
		if err != nil {
			return err
		}

		start := time.Now()
		if mode == types.ModeDirectional {
			res, err := a.Directional(in)
			if err != nil {
				return err
			}
			slog.Info("Evaluation completed", "kind", mode, "percent", res.Percent, "duration", time.Since(start))
			resp := types.DirectionalResponse{RulesetVersion: a.Rules().Version, Result: res}
			return render(cmd.OutOrStdout(), opts.format, resp, func(w io.Writer) {
				writeScore(w, res.Percent, res.BasePercent, res.Penalty, res.Bonus, res.Orientation, res.Modules)
				writeNotes(w, "Notes", res.Notes)
			})
		}

		rep, err := a.Report(in)
		if err != nil {
			return err
		}
		slog.Info("Evaluation completed", "kind", mode, "percent", rep.Percent, "duration", time.Since(start))
		resp := types.ReportResponse{RulesetVersion: a.Rules().Version, Report: rep}
		return render(cmd.OutOrStdout(), opts.format, resp, func(w io.Writer) {
			writeScore(w, rep.Percent, rep.BasePercent, rep.Penalty, rep.Bonus, rep.Orientation, rep.Modules)
			writeNotes(w, "House overlays", rep.OverlayNotes)
			writeNotes(w, "Notes", rep.Notes)
		})
	}

	f := cmd.Flags()
	f.StringVarP(&pf.input, "input", "i", "", "Pair document in the API request shape; - reads stdin")
	f.StringVar(&pf.leftChart, "left-chart", "", "Chart JSON file of the left party")
	f.StringVar(&pf.rightChart, "right-chart", "", "Chart JSON file of the right party")
	f.StringVar(&pf.leftGender, "left-gender", "", "Gender of the left party (male|female)")
	f.StringVar(&pf.rightGender, "right-gender", "", "Gender of the right party (male|female)")
	f.StringVar(&pf.leftBirth, "left-birth", "", "Birth date of the left party (DD.MM.YYYY or RFC3339)")
	f.StringVar(&pf.rightBirth, "right-birth", "", "Birth date of the right party (DD.MM.YYYY or RFC3339)")
	cmd.MarkFlagsMutuallyExclusive("input", "left-chart")
	cmd.MarkFlagsMutuallyExclusive("input", "right-chart")

	return cmd
}

// read assembles the pair. Profile flags override values from --input.
func (pf *pairFlags) read(stdin io.Reader) (synastry.Input, error) {
	var in synastry.Input

	switch {
	case pf.input != "":
		data, err := readSource(pf.input, stdin)
		if err != nil {
			return in, err
		}
		if err := json.Unmarshal(data, &in); err != nil {
			return in, apperrors.ToAppError(err)
		}
	case pf.leftChart != "" && pf.rightChart != "":
		left, err := readChart(pf.leftChart)
		if err != nil {
			return in, err
		}
		right, err := readChart(pf.rightChart)
		if err != nil {
			return in, err
		}
		in.Left.Chart, in.Right.Chart = left, right
	default:
		return in, apperrors.NewValidationError("no pair given", map[string]string{
			"input": "pass --input, or both --left-chart and --right-chart",
		})
	}

	if pf.leftGender != "" {
		in.Left.Profile.Gender = synastry.ParseGender(pf.leftGender)
	}
	if pf.rightGender != "" {
		in.Right.Profile.Gender = synastry.ParseGender(pf.rightGender)
	}
	if pf.leftBirth != "" {
		in.Left.Profile.BirthDateTime = pf.leftBirth
	}
	if pf.rightBirth != "" {
		in.Right.Profile.BirthDateTime = pf.rightBirth
	}
	return in, nil
}

func newBatchCmd(opts *options) *cobra.Command {
	var (
		input       string
		mode        string
		concurrency int
	)

	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Rank many candidates against one subject",
		Long: `batch reads a document in the shape of the batch API request
({"subject": ..., "candidates": [{"id": ..., "party": ...}], "mode": ...})
and prints the candidates ranked by descending percent. Candidates that
fail to score are listed last with their error.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readSource(input, cmd.InOrStdin())
			if err != nil {
				return err
			}
			var req types.BatchRequest
			if err := json.Unmarshal(data, &req); err != nil {
				return apperrors.ToAppError(err)
			}
			if len(req.Candidates) == 0 {
				return apperrors.NewValidationError("no candidates given", map[string]string{"candidates": "empty"})
			}
			if mode != "" {
				req.Mode = mode
			}
			if req.Mode == "" {
				req.Mode = types.ModeReport
			}
			if req.Mode != types.ModeReport && req.Mode != types.ModeDirectional {
				return apperrors.NewValidationError("unknown mode", map[string]string{"mode": req.Mode})
			}

			a, err := opts.analyzer()
			if err != nil {
				return err
			}

			start := time.Now()
			items, err := batch.NewRunner(a, concurrency, nil).Run(cmd.Context(), req.Subject, req.Candidates, req.Mode)
			if err != nil {
				return err
			}
			failed := batch.Failed(items)
			slog.Info("Batch completed", "candidates", len(items), "failed", failed, "duration", time.Since(start))

			resp := types.BatchResponse{
				RulesetVersion: a.Rules().Version,
				Mode:           req.Mode,
				Count:          len(items),
				Failed:         failed,
				DurationMs:     time.Since(start).Milliseconds(),
				Results:        items,
			}
			return render(cmd.OutOrStdout(), opts.format, resp, func(w io.Writer) {
				writeRanking(w, items)
			})
		},
	}

	f := cmd.Flags()
	f.StringVarP(&input, "input", "i", "-", "Batch document; - reads stdin")
	f.StringVarP(&mode, "mode", "m", "", "Evaluation mode (report|directional), overrides the document")
	f.IntVarP(&concurrency, "concurrency", "c", 4, "Candidates scored in parallel")

	return cmd
}

func newTablesCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "tables",
		Short: "Describe the loaded rule set",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rs, err := opts.rules()
			if err != nil {
				return err
			}
			tables := types.NewTablesResponse(rs)
			return render(cmd.OutOrStdout(), opts.format, tables, func(w io.Writer) {
				writeTables(w, tables)
			})
		},
	}
}

// readSource reads a file, or stdin for "-"
func readSource(path string, stdin io.Reader) ([]byte, error) {
	if path == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, apperrors.NewValidationError("cannot read input file", map[string]string{path: err.Error()})
	}
	return data, nil
}

func readChart(path string) (chart.Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, apperrors.NewValidationError("cannot read chart file", map[string]string{path: err.Error()})
	}
	rec, err := chart.Decode(data)
	if err != nil {
		return nil, apperrors.NewValidationError("chart file is not a JSON object", map[string]string{path: err.Error()})
	}
	return rec, nil
}
