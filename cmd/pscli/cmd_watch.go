// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/pscli/pscli/internal/watch"
)

// runWatcher reloads svc's dispatcher whenever a scanned folder, the
// metadata folder or the settings folder changes. It blocks until ctx is
// done; failures are logged and end watching without ending the session.
func runWatcher(ctx context.Context, app *App, svc *services) {
	st := svc.d.State()
	w, err := watch.New(watch.Config{
		Dirs:     watch.Targets(st.Paths),
		Patterns: watch.SourcePatterns(),
		Debounce: time.Duration(st.Settings.Watch.DebounceMS) * time.Millisecond,
		Logger:   svc.logger.With("component", "watch"),
		OnChange: func(ctx context.Context, changed []string) error {
			if err := svc.d.Reload(ctx); err != nil {
				return err
			}
			fmt.Fprintf(app.stderr, "\n%s Reloaded after %d change(s): %d commands\n",
				VerboseHighlightStyle.Render("→"), len(changed), svc.d.State().Registry.Len())
			return nil
		},
	})
	if err != nil {
		svc.logger.Warn("watching disabled", "error", err)
		return
	}
	svc.logger.Debug("watching for changes", "dirs", w.Watched())
	if err := w.Run(ctx); err != nil {
		svc.logger.Warn("watching stopped", "error", err)
	}
}
