package cmd

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/attribute"

	"github.com/felixgeelhaar/timeline/internal/config"
	"github.com/felixgeelhaar/timeline/internal/domain"
	"github.com/felixgeelhaar/timeline/internal/editor"
	"github.com/felixgeelhaar/timeline/internal/errors"
	"github.com/felixgeelhaar/timeline/internal/log"
	"github.com/felixgeelhaar/timeline/internal/metrics"
	"github.com/felixgeelhaar/timeline/internal/model"
	"github.com/felixgeelhaar/timeline/internal/project"
	"github.com/felixgeelhaar/timeline/internal/telemetry"
	"github.com/felixgeelhaar/timeline/internal/tui"
	"github.com/felixgeelhaar/timeline/internal/version"
)

// app carries the state shared by every command of one invocation.
type app struct {
	projectPath string
	configPath  string
	logLevel    string
	logFormat   string
	metricsOut  string

	cfg      *config.Config
	log      *log.Logger
	registry *prometheus.Registry
	metrics  *metrics.Metrics
	shutdown func(context.Context) error

	// prompt reports whether interactive prompts may be shown
	prompt func() bool
}

// setup loads configuration and wires logging, metrics and tracing.
func (a *app) setup(cmd *cobra.Command, args []string) error {
	path := a.configPath
	if path == "" {
		path = config.DefaultPath(filepath.Dir(a.projectPath))
	}
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		if _, err := log.ParseLevelStrict(a.logLevel); err != nil {
			return errors.Wrap(errors.ErrCodeConfigInvalid, "invalid --log-level", err)
		}
		cfg.Log.Level = a.logLevel
	}
	if a.logFormat != "" {
		cfg.Log.Format = a.logFormat
	}
	a.cfg = cfg

	info := version.GetInfo()
	logCfg := cfg.LoggerConfig()
	logCfg.Output = log.NewOutput(cmd.ErrOrStderr())
	logCfg.ServiceVersion = info.Version
	a.log = log.New(logCfg)

	a.registry, a.metrics = metrics.NewRegistry()

	telemCfg := telemetry.DefaultConfig()
	telemCfg.Enabled = cfg.Telemetry.Enabled
	telemCfg.SampleRate = cfg.Telemetry.SampleRate
	telemCfg.ServiceVersion = info.Version
	telemCfg.Logger = a.log
	if a.shutdown, err = telemetry.InitProvider(cmd.Context(), telemCfg); err != nil {
		return errors.Wrap(errors.ErrCodeConfigInvalid, "initialize tracing", err)
	}
	if a.prompt == nil {
		a.prompt = tui.ShouldPrompt
	}

	a.log.Debug("configuration loaded", "config", cfg.Path(), "project", a.projectPath)
	return nil
}

// teardown flushes traces and writes the metrics file when requested.
func (a *app) teardown(ctx context.Context) error {
	if a.shutdown != nil {
		if err := a.shutdown(ctx); err != nil {
			a.log.WithError(err).Warn("tracer shutdown failed")
		}
	}
	if a.metricsOut == "" || a.registry == nil {
		return nil
	}
	var buf bytes.Buffer
	if err := metrics.WriteText(&buf, a.registry); err != nil {
		return errors.Wrap(errors.ErrCodeFileMarshal, "encode metrics", err)
	}
	if err := os.WriteFile(a.metricsOut, buf.Bytes(), 0o644); err != nil {
		return errors.Wrap(errors.ErrCodeFileWriteFailed, fmt.Sprintf("write %s", a.metricsOut), err)
	}
	return nil
}

// runE wraps a command body with a span, command metrics and error logging.
func (a *app) runE(name string, fn func(ctx context.Context, cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx, span := telemetry.StartCommandSpan(cmd.Context(), name)
		defer span.End()

		start := time.Now()
		err := fn(ctx, cmd, args)
		a.metrics.RecordCommand(name, err == nil, time.Since(start).Seconds())
		if err != nil {
			telemetry.RecordError(span, err)
			code := errors.CodeOf(err)
			a.metrics.RecordCommandError(name, string(code))
			if code != "" {
				a.metrics.RecordError(string(code), "cli")
			}
			return err
		}
		telemetry.RecordSuccess(span, attribute.String("project", a.projectPath))
		return nil
	}
}

// session is a project file opened in an editor.
type session struct {
	path    string
	project *project.Project
	editor  *editor.Editor
}

// open loads the project file and builds an editor configured from the
// loaded settings.
func (a *app) open(ctx context.Context) (*session, error) {
	_, span := telemetry.StartOperationSpan(ctx, "open")
	defer span.End()

	p, err := project.Load(a.projectPath)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	ed, err := a.newEditor(p.Tasks, p.Dependencies)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	for _, id := range p.Collapsed {
		if _, err := ed.SetExpanded(id, false); err != nil {
			a.log.WithError(err).Warn("ignoring collapsed row")
		}
	}
	telemetry.RecordCounts(span, map[string]int64{
		"tasks":        int64(len(p.Tasks)),
		"dependencies": int64(len(p.Dependencies)),
	})
	return &session{path: a.projectPath, project: p, editor: ed}, nil
}

// newEditor builds an editor configured from the loaded settings.
func (a *app) newEditor(tasks []model.Task, deps []model.Dependency) (*editor.Editor, error) {
	policy, err := editor.ParsePolicy(a.cfg.ViolationPolicy)
	if err != nil {
		return nil, err
	}
	return editor.Open(tasks, deps,
		editor.WithLogger(a.log),
		editor.WithMetrics(a.metrics),
		editor.WithViolationPolicy(policy),
		editor.WithMaxDepth(a.cfg.MaxDepth),
		editor.WithMaxSettleRounds(a.cfg.MaxSettleRounds),
	)
}

// openOrCreate is open, except that a missing project file yields an
// empty session that save will create.
func (a *app) openOrCreate(ctx context.Context, name string) (*session, error) {
	s, err := a.open(ctx)
	if !stderrors.Is(err, errors.Code(errors.ErrCodeFileNotFound)) {
		return s, err
	}
	ed, err := a.newEditor(nil, nil)
	if err != nil {
		return nil, err
	}
	return &session{path: a.projectPath, project: &project.Project{Name: name}, editor: ed}, nil
}

// restore replaces the session's schedule with snap and saves it, keeping
// a checkpoint of what was there.
func (a *app) restore(cmd *cobra.Command, s *session, snap model.Snapshot, label string) error {
	before := s.editor.CaptureState()
	if err := s.editor.RestoreState(snap); err != nil {
		return err
	}
	if len(before.Tasks) > 0 {
		a.checkpoint(before, label)
	}
	if err := a.save(s); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✓ %s: %d tasks, %d dependencies\n", label, snap.TaskCount(), len(snap.Dependencies))
	return nil
}

// save writes the editor state back to the project file.
func (a *app) save(s *session) error {
	state := s.editor.CaptureState()
	if len(state.Tasks) == 0 {
		return errors.New(errors.ErrCodeInvalidTaskField, "a project needs at least one task").
			WithSuggestion("Delete the project file instead")
	}
	p := &project.Project{
		Name:         s.project.Name,
		Tasks:        state.Tasks,
		Dependencies: state.Dependencies,
		Collapsed:    collapsed(s.editor),
	}
	if err := project.Save(p, s.path); err != nil {
		return err
	}
	s.project = p
	a.log.Info("project saved", "path", s.path, "tasks", len(p.Tasks))
	return nil
}

// collapsed lists the parents that are folded in the outline.
func collapsed(ed *editor.Editor) []domain.TaskID {
	var out []domain.TaskID
	for _, t := range ed.Tasks() {
		if !ed.Expanded(t.ID) && len(ed.GetChildren(t.ID)) > 0 {
			out = append(out, t.ID)
		}
	}
	return out
}
