package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	apperrors "github.com/ZanzyTHEbar/synastry-o-meter/internal/errors"
	"github.com/ZanzyTHEbar/synastry-o-meter/internal/monitoring"
	"github.com/ZanzyTHEbar/synastry-o-meter/internal/ruleset"
	"github.com/ZanzyTHEbar/synastry-o-meter/internal/synastry"
	"github.com/ZanzyTHEbar/synastry-o-meter/internal/types"
)

var version = "dev"

const (
	formatJSON = "json"
	formatText = "text"
)

// options are the persistent flags shared by every subcommand
type options struct {
	rulesDir string
	logLevel string
	format   string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		appErr := apperrors.ToAppError(err)
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(exitCode(appErr))
	}
}

// exitCode is 2 for bad input and 1 for everything else
func exitCode(err *apperrors.AppError) int {
	if err.Category == apperrors.CategoryValidation {
		return 2
	}
	return 1
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:     "synastry",
		Short:   "Score astrological compatibility between two natal charts",
		Version: version,
		Long: `synastry scores the compatibility of chart pairs with the same analyzer
the HTTP service uses. Pairs are read as JSON in the API request shape, or
assembled from one chart file per side.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			handler := slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{
				Level: monitoring.ParseLevel(opts.logLevel),
			})
			slog.SetDefault(slog.New(handler))

			switch opts.format {
			case formatJSON, formatText:
				return nil
			}
			return apperrors.NewValidationError("unknown output format", map[string]string{
				"format": opts.format + " (expected json or text)",
			})
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&opts.rulesDir, "rules", os.Getenv("RULESET_PATH"), "Directory with rule set overrides (default: built-in tables)")
	pf.StringVar(&opts.logLevel, "log-level", "warn", "Log level (debug|info|warn|error)")
	pf.StringVarP(&opts.format, "format", "f", formatJSON, "Output format (json|text)")

	rootCmd.AddCommand(
		newPairCmd(opts, types.ModeReport),
		newPairCmd(opts, types.ModeDirectional),
		newBatchCmd(opts),
		newTablesCmd(opts),
	)
	return rootCmd
}

// rules loads the rule set named by --rules
func (o *options) rules() (*synastry.RuleSet, error) {
	if o.rulesDir == "" {
		return ruleset.LoadDefault()
	}
	slog.Debug("Loading rule set overrides", "dir", o.rulesDir)
	return ruleset.LoadDir(o.rulesDir)
}

func (o *options) analyzer() (*synastry.Analyzer, error) {
	rs, err := o.rules()
	if err != nil {
		return nil, err
	}
	return synastry.NewAnalyzer(rs)
}
