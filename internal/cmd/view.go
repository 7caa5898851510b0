package cmd

import (
	"context"
	"slices"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/timeline/internal/errors"
	"github.com/felixgeelhaar/timeline/internal/tui"
)

func newViewCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "view",
		Short: "Browse and reorder the outline interactively",
		Long: `Open the project in a terminal outline. Rows can be folded, moved up and
down, indented and outdented. Accepted edits and fold changes are written back
to the project file on exit.`,
		Args: cobra.NoArgs,
		RunE: a.runE("view", func(ctx context.Context, cmd *cobra.Command, args []string) error {
			if !tui.IsInteractive() {
				return errors.New(errors.ErrCodeConfigInvalid, "view needs an interactive terminal").
					WithSuggestion("Use 'timeline show' in scripts")
			}
			s, err := a.open(ctx)
			if err != nil {
				return err
			}
			folded := collapsed(s.editor)
			before := s.editor.CaptureState()

			res, err := tui.RunOutline(s.editor)
			if err != nil {
				return err
			}
			if res.Commits == 0 && slices.Equal(folded, collapsed(s.editor)) {
				return nil
			}
			if res.Commits > 0 {
				a.checkpoint(before, "view")
			}
			return a.save(s)
		}),
	}
}
