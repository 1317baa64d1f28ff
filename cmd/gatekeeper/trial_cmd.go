package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/pkgflow/gatekeeper/pkg/audit"
	"github.com/pkgflow/gatekeeper/pkg/config"
	"github.com/pkgflow/gatekeeper/pkg/hints"
	"github.com/pkgflow/gatekeeper/pkg/observability"
	"github.com/pkgflow/gatekeeper/pkg/permissions"
	"github.com/pkgflow/gatekeeper/pkg/policy"
	"github.com/pkgflow/gatekeeper/pkg/trial"
)

// runTrialCmd runs a single trial directive from the command line against a
// static evaluator, the offline equivalent of britney's hint tester. The
// directive text is parsed exactly like a hint file line.
func runTrialCmd(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("trial", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "gatekeeper.yaml", "run configuration file")
	candidatesPath := fs.String("candidates", "", "YAML file mapping item name to pending candidate version")
	health := fs.String("health", "equal", "static evaluator verdict: worse, equal or better")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() < 2 {
		fmt.Fprintln(stderr, "Usage: gatekeeper trial [flags] <easy|hint|force-hint> <item/version>...")
		return 2
	}

	var result trial.HealthComparison
	switch *health {
	case "worse":
		result = trial.Worse
	case "equal":
		result = trial.Equal
	case "better":
		result = trial.Better
	default:
		fmt.Fprintf(stderr, "invalid -health value %q\n", *health)
		return 2
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	logger := newLogger(cfg.LogLevel, stderr)

	ctx := context.Background()
	obs, err := observability.New(ctx, &observability.Config{
		ServiceName:    "gatekeeper",
		ServiceVersion: "1.0.0",
		OTLPEndpoint:   cfg.Telemetry.Endpoint,
		Enabled:        cfg.Telemetry.Enabled,
		Insecure:       cfg.Telemetry.Insecure,
	})
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	defer func() { _ = obs.Shutdown(ctx) }()

	table, err := permissions.LoadFile(cfg.Permissions)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}

	files, err := readHintFiles(cfg, logger)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	pol, diags := policy.ResolveHints(files, table, policy.ResolveOptions{Baseline: cfg.Baseline})
	for _, d := range diags {
		logger.Warn("diagnostic", "class", string(d.Class), "detail", d.String())
	}

	directive, ok := parseDirectiveLine(fs.Args(), stderr)
	if !ok {
		return 2
	}

	baseline, err := loadBaseline(*candidatesPath)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}

	engine := trial.NewEngine(trial.StaticEvaluator{Result: result}, pol, baseline)
	ctx, done := obs.TrackOperation(ctx, "gatekeeper.trial")
	outcome, err := engine.RunTrial(ctx, directive)
	done(err)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	obs.CountTrial(ctx, string(outcome.State))

	auditLog := audit.NewLoggerWithWriter(uuid.New().String(), stderr)
	recordEvent(ctx, logger, auditLog, audit.EventTrial, "run_trial", string(directive.Kind), map[string]any{
		"outcome_id": outcome.ID,
		"state":      string(outcome.State),
		"accepted":   outcome.Accepted,
	})
	for _, d := range outcome.Diagnostics {
		recordEvent(ctx, logger, auditLog, audit.EventDiagnostic, string(d.Class), d.Message, nil)
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(outcome); err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	if !outcome.Accepted {
		return 1
	}
	return 0
}

// parseDirectiveLine runs the command-line tokens through the regular file
// parser and validator with a wildcard grant, so the trial command accepts
// exactly what a hint file would.
func parseDirectiveLine(tokens []string, stderr io.Writer) (hints.Hint, bool) {
	table, err := permissions.New(map[string][]string{"hint-tester": {permissions.Wildcard}})
	if err != nil {
		fmt.Fprintln(stderr, err)
		return hints.Hint{}, false
	}

	parsed, parseDiags := hints.ParseFile(hints.File{
		Path:   "<cmd-line>",
		Issuer: "hint-tester",
		Text:   strings.Join(tokens, " "),
	})
	valid, validateDiags := hints.Validate(parsed, table)
	for _, d := range append(parseDiags, validateDiags...) {
		fmt.Fprintln(stderr, d.String())
	}
	if len(valid) != 1 {
		return hints.Hint{}, false
	}

	h := valid[0]
	switch h.Kind {
	case hints.KindEasy, hints.KindHint, hints.KindForceHint:
		return h, true
	default:
		fmt.Fprintf(stderr, "%s is not a trial directive\n", h.Kind)
		return hints.Hint{}, false
	}
}

func loadBaseline(path string) (trial.Baseline, error) {
	baseline := trial.Baseline{
		Candidates: make(map[string]string),
		Migrated:   make(map[string]bool),
	}
	if path == "" {
		return baseline, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return baseline, fmt.Errorf("read candidates %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &baseline.Candidates); err != nil {
		return baseline, fmt.Errorf("parse candidates %s: %w", path, err)
	}
	return baseline, nil
}
