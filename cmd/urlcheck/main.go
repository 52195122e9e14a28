package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/lurewatch/lurewatch/internal/classify"
	"github.com/lurewatch/lurewatch/internal/config"
	"github.com/lurewatch/lurewatch/internal/features"
	"github.com/lurewatch/lurewatch/internal/heuristics"
)

var version = "dev"

// Factors shown per URL in text output.
const (
	shownRiskFactors  = 3
	shownTrustFactors = 2
)

func main() {
	if err := newRootCmd(os.Stdout).Execute(); err != nil {
		color.New(color.FgRed).Fprintf(os.Stderr, "[!] Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd(out io.Writer) *cobra.Command {
	var (
		jsonOutput bool
		modelURL   string
	)

	rootCmd := &cobra.Command{
		Use:           "urlcheck",
		Short:         "Score URLs for phishing with lexical heuristics",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.SetOut(out)
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "JSON output format")

	checkCmd := &cobra.Command{
		Use:   "check URL...",
		Short: "Classify one or more URLs",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var model classify.Model
			if modelURL != "" {
				cfg := config.Defaults().Model
				cfg.URL = modelURL
				model = classify.NewRemoteModel(cmd.Context(), cfg)
			}
			logger := slog.New(slog.NewTextHandler(io.Discard, nil))
			return runCheck(cmd.Context(), out, classify.NewPipeline(model, nil, logger), args, jsonOutput)
		},
	}
	checkCmd.Flags().StringVar(&modelURL, "model", "", "Model endpoint for a statistical second opinion")
	rootCmd.AddCommand(checkCmd)

	featuresCmd := &cobra.Command{
		Use:   "features URL",
		Short: "Print the numeric feature vector for a URL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFeatures(out, args[0], jsonOutput)
		},
	}
	rootCmd.AddCommand(featuresCmd)

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(out, "urlcheck %s\n", version)
		},
	}
	rootCmd.AddCommand(versionCmd)

	return rootCmd
}

func runCheck(ctx context.Context, out io.Writer, p *classify.Pipeline, urls []string, jsonOutput bool) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()

	enc := json.NewEncoder(out)
	for _, raw := range urls {
		res, err := p.Check(ctx, raw)
		if err != nil {
			return fmt.Errorf("check %q: %w", raw, err)
		}
		if jsonOutput {
			if err := enc.Encode(res); err != nil {
				return err
			}
			continue
		}
		printResult(out, res)
	}
	return nil
}

func printResult(out io.Writer, res *classify.Result) {
	fmt.Fprintf(out, "URL: %s\n", res.URL)
	verdictColor(res.Result).Fprintf(out, "  %s", res.Result)
	fmt.Fprintf(out, " (phishing %.2f%%, legitimate %.2f%%)\n", res.Confidence.Phishing, res.Confidence.Legitimate)

	if len(res.RiskFactors) > 0 {
		fmt.Fprintf(out, "  Risk:  %s\n", strings.Join(head(res.RiskFactors, shownRiskFactors), "; "))
	}
	if len(res.TrustFactors) > 0 {
		fmt.Fprintf(out, "  Trust: %s\n", strings.Join(head(res.TrustFactors, shownTrustFactors), "; "))
	}
	if res.Model != nil {
		fmt.Fprintf(out, "  Model: %s (phishing %.2f%%)\n", res.Model.Result, res.Model.PhishingProb)
	}
}

func runFeatures(out io.Writer, raw string, jsonOutput bool) error {
	if strings.TrimSpace(raw) == "" {
		return heuristics.ErrInvalidURL
	}
	m := features.Extract(classify.NormalizeURL(raw))
	if jsonOutput {
		ordered := make([]map[string]any, 0, len(features.Names))
		for _, name := range features.Names {
			ordered = append(ordered, map[string]any{"name": name, "value": m[name]})
		}
		return json.NewEncoder(out).Encode(ordered)
	}
	for _, name := range features.Names {
		fmt.Fprintf(out, "%-28s %g\n", name, m[name])
	}
	return nil
}

func verdictColor(v heuristics.Verdict) *color.Color {
	switch v {
	case heuristics.Phishing:
		return color.New(color.FgRed, color.Bold)
	case heuristics.Legitimate:
		return color.New(color.FgGreen, color.Bold)
	default:
		return color.New(color.FgYellow, color.Bold)
	}
}

func head(s []string, n int) []string {
	if len(s) > n {
		return s[:n]
	}
	return s
}
