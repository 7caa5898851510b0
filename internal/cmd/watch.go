package cmd

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/timeline/internal/errors"
	"github.com/felixgeelhaar/timeline/internal/log"
)

func newWatchCmd(a *app) *cobra.Command {
	var (
		strict   bool
		debounce time.Duration
	)
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Re-validate the project file whenever it changes",
		Long: `Validate the project once, then again each time the file is written.
Runs until interrupted.`,
		Args: cobra.NoArgs,
		RunE: a.runE("watch", func(ctx context.Context, cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			check := func() {
				if err := a.validate(ctx, cmd, strict); err != nil {
					fmt.Fprintf(out, "✗ %v\n", err)
				}
			}
			check()
			return watchFile(ctx, a.projectPath, debounce, a.log.WithComponent("watch"), out, check)
		}),
	}
	cmd.Flags().BoolVar(&strict, "strict", false, "report anomalies and missed deadlines as failures")
	cmd.Flags().DurationVar(&debounce, "debounce", 200*time.Millisecond, "wait this long for writes to settle")
	return cmd
}

// watchFile calls onChange after path is created or written, once writes
// have been quiet for debounce. It returns nil when ctx is done.
func watchFile(ctx context.Context, path string, debounce time.Duration, logger *log.Logger, out io.Writer, onChange func()) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(errors.ErrCodeFileReadFailed, "start file watcher", err)
	}
	defer w.Close()

	// Editors replace files by rename, which drops a watch on the file
	// itself, so the directory is watched instead.
	abs, err := filepath.Abs(path)
	if err != nil {
		return errors.Wrap(errors.ErrCodeFileReadFailed, "resolve project path", err)
	}
	if err := w.Add(filepath.Dir(abs)); err != nil {
		return errors.Wrap(errors.ErrCodeFileReadFailed, fmt.Sprintf("watch %s", filepath.Dir(abs)), err)
	}
	logger.Info("watching project", "path", abs, "debounce", debounce)

	var (
		timer *time.Timer
		fire  <-chan time.Time
	)
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ev.Name != abs || !ev.Has(fsnotify.Write|fsnotify.Create) {
				continue
			}
			logger.Debug("project changed", "op", ev.Op.String())
			if timer == nil {
				timer = time.NewTimer(debounce)
			} else {
				timer.Reset(debounce)
			}
			fire = timer.C
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.WithError(err).Warn("watcher error")
		case <-fire:
			fire = nil
			fmt.Fprintf(out, "↻ %s changed\n", filepath.Base(abs))
			onChange()
		}
	}
}
