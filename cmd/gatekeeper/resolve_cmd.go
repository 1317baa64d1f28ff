package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/pkgflow/gatekeeper/pkg/audit"
	"github.com/pkgflow/gatekeeper/pkg/config"
	"github.com/pkgflow/gatekeeper/pkg/hints"
	"github.com/pkgflow/gatekeeper/pkg/observability"
	"github.com/pkgflow/gatekeeper/pkg/permissions"
	"github.com/pkgflow/gatekeeper/pkg/policy"
)

func runResolveCmd(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("resolve", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "gatekeeper.yaml", "run configuration file")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	ctx := context.Background()
	runID := uuid.New().String()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	logger := newLogger(cfg.LogLevel, stderr)

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

	for _, f := range files {
		parsed, _ := hints.ParseFile(f)
		obs.CountHints(ctx, len(parsed), attribute.String("issuer", f.Issuer))
	}

	ctx, done := obs.TrackOperation(ctx, "gatekeeper.resolve")
	pol, diags := policy.ResolveHints(files, table, policy.ResolveOptions{Baseline: cfg.Baseline})
	done(nil)

	hash, err := pol.Hash()
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	logger.Info("hints resolved", "run_id", runID, "snapshot_hash", hash, "diagnostics", len(diags))

	auditLog := audit.NewLoggerWithWriter(runID, stderr)
	recordEvent(ctx, logger, auditLog, audit.EventResolve, "resolve_hints", "policy", map[string]any{
		"snapshot_hash": hash,
		"files":         len(files),
		"diagnostics":   len(diags),
	})
	for _, d := range diags {
		obs.CountDiagnostic(ctx, string(d.Class))
		logger.Warn("diagnostic", "class", string(d.Class), "detail", d.String())
		recordEvent(ctx, logger, auditLog, audit.EventDiagnostic, string(d.Class), d.Message, nil)
	}

	if cfg.AuditDB != "" {
		trail, err := audit.OpenTrail(cfg.AuditDB)
		if err != nil {
			fmt.Fprintln(stderr, err)
			return 1
		}
		defer func() { _ = trail.Close() }()
		if err := trail.RecordRun(ctx, runID, hash, diags); err != nil {
			fmt.Fprintln(stderr, err)
			return 1
		}
	}

	out := struct {
		RunID        string          `json:"run_id"`
		SnapshotHash string          `json:"snapshot_hash"`
		Policy       policy.Snapshot `json:"policy"`
	}{runID, hash, pol.Snapshot()}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	return 0
}

func readHintFiles(cfg *config.Config, logger interface {
	Info(msg string, args ...any)
	Error(msg string, args ...any)
}) ([]hints.File, error) {
	var files []hints.File
	for _, hf := range cfg.HintFiles {
		data, err := os.ReadFile(hf.Path)
		if err != nil {
			// Matching the long-standing behavior for hint directories: a
			// missing file is logged and skipped, not fatal.
			logger.Error("cannot read hints list", "path", hf.Path, "error", err)
			continue
		}
		logger.Info("loading hints list", "path", hf.Path, "issuer", hf.Issuer)
		files = append(files, hints.File{Path: hf.Path, Issuer: hf.Issuer, Text: string(data)})
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no readable hint files")
	}
	return files, nil
}

// recordEvent appends one audit event. A failing audit sink is reported but
// never aborts the run.
func recordEvent(ctx context.Context, logger *slog.Logger, auditLog audit.Logger,
	eventType audit.EventType, action, subject string, metadata map[string]any) {
	if err := auditLog.Record(ctx, eventType, action, subject, metadata); err != nil {
		logger.Warn("audit event not recorded", "error", err)
	}
}

func runCheckPermissionsCmd(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("check-permissions", flag.ContinueOnError)
	fs.SetOutput(stderr)
	path := fs.String("file", "permissions.json", "permissions file to validate")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	if _, err := permissions.LoadFile(*path); err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	fmt.Fprintf(stdout, "%s: ok\n", *path)
	return 0
}
