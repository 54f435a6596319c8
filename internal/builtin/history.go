// SPDX-License-Identifier: MPL-2.0

package builtin

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/pscli/pscli/internal/command"
)

// DefaultHistoryLimit is the number of entries history prints without an
// argument.
const DefaultHistoryLimit = 20

type historyCmd struct {
	reader HistoryReader
	loc    *time.Location
}

func (h *historyCmd) run(ctx context.Context, inv *command.Invocation) error {
	limit := DefaultHistoryLimit
	if len(inv.Args) > 0 {
		n, err := strconv.Atoi(inv.Args[0])
		if err != nil || n < 1 {
			return fmt.Errorf("history expects a positive count, got %q: %w", inv.Args[0], ErrUsage)
		}
		limit = n
	}

	entries, err := h.reader.Recent(ctx, limit)
	if err != nil {
		return err
	}
	w := inv.Stdout
	if w == nil {
		w = io.Discard
	}
	if len(entries) == 0 {
		fmt.Fprintln(w, "No history yet.")
		return nil
	}
	for _, e := range entries {
		target := e.Trigger
		if e.Name != "" && e.Name != strings.ToLower(e.Trigger) {
			target = fmt.Sprintf("%s (%s)", e.Trigger, e.Name)
		}
		line := fmt.Sprintf("%s  %-8s %s", e.StartedAt.In(h.loc).Format(time.DateTime), e.Outcome, target)
		if len(e.Args) > 0 {
			line += " " + strings.Join(e.Args, " ")
		}
		fmt.Fprintln(w, line)
	}
	return nil
}
