// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/pscli/pscli/internal/history"
	"github.com/pscli/pscli/internal/render"
)

func TestWriteHistory(t *testing.T) {
	t.Parallel()

	entries := []history.Entry{
		{ID: "2", Trigger: "calc", Name: "calc", Args: []string{"2", "3"}, Outcome: "ran", StartedAt: time.Unix(200, 0)},
		{ID: "1", Trigger: "nope", Outcome: "unknown", Error: "unknown command: nope", StartedAt: time.Unix(100, 0)},
	}

	t.Run("plain", func(t *testing.T) {
		t.Parallel()
		var buf bytes.Buffer
		if err := writeHistory(&buf, render.FormatPlain, entries); err != nil {
			t.Fatal(err)
		}
		out := buf.String()
		for _, want := range []string{"calc 2 3", "unknown", "unknown command: nope"} {
			if !strings.Contains(out, want) {
				t.Errorf("output missing %q:\n%s", want, out)
			}
		}
		if strings.Index(out, "calc") > strings.Index(out, "nope") {
			t.Error("entries not printed in the given order")
		}
	})

	t.Run("json", func(t *testing.T) {
		t.Parallel()
		var buf bytes.Buffer
		if err := writeHistory(&buf, render.FormatJSON, entries); err != nil {
			t.Fatal(err)
		}
		var got []history.Entry
		if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
			t.Fatalf("invalid json: %v", err)
		}
		if len(got) != 2 || got[0].Trigger != "calc" {
			t.Errorf("decoded = %+v", got)
		}
	})

	t.Run("yaml", func(t *testing.T) {
		t.Parallel()
		var buf bytes.Buffer
		if err := writeHistory(&buf, render.FormatYAML, entries); err != nil {
			t.Fatal(err)
		}
		var got []map[string]any
		if err := yaml.Unmarshal(buf.Bytes(), &got); err != nil {
			t.Fatalf("invalid yaml: %v", err)
		}
		if len(got) != 2 || got[1]["outcome"] != "unknown" {
			t.Errorf("decoded = %v", got)
		}
	})

	t.Run("empty", func(t *testing.T) {
		t.Parallel()
		var buf bytes.Buffer
		if err := writeHistory(&buf, render.FormatPlain, nil); err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(buf.String(), "No history yet.") {
			t.Errorf("output = %q", buf.String())
		}
	})
}

func TestWriteHistoryTOML(t *testing.T) {
	t.Parallel()

	entries := []history.Entry{{ID: "1", Trigger: "calc", Args: []string{"1"}, Outcome: "ran", StartedAt: time.Unix(100, 0).UTC()}}
	var buf bytes.Buffer
	if err := writeHistory(&buf, render.FormatTOML, entries); err != nil {
		t.Fatal(err)
	}
	var doc struct {
		Entries []history.Entry `toml:"entries"`
	}
	if err := toml.Unmarshal(buf.Bytes(), &doc); err != nil {
		t.Fatalf("invalid toml: %v\n%s", err, buf.String())
	}
	if len(doc.Entries) != 1 || doc.Entries[0].Trigger != "calc" {
		t.Errorf("decoded = %+v", doc.Entries)
	}
}
