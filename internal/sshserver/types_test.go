// SPDX-License-Identifier: MPL-2.0

package sshserver

import (
	"errors"
	"testing"
	"time"
)

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{name: "default", cfg: DefaultConfig()},
		{name: "all interfaces", cfg: Config{Address: ":2323"}},
		{name: "missing port", cfg: Config{Address: "127.0.0.1"}, wantErr: true},
		{name: "port out of range", cfg: Config{Address: "127.0.0.1:70000"}, wantErr: true},
		{name: "non-numeric port", cfg: Config{Address: "127.0.0.1:ssh"}, wantErr: true},
		{name: "blank host", cfg: Config{Address: "  :22"}, wantErr: true},
		{name: "negative idle", cfg: Config{Address: ":22", IdleTimeout: -time.Second}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("error %v does not wrap ErrInvalidConfig", err)
			}
		})
	}
}

func TestConfigValidate_CollectsAll(t *testing.T) {
	t.Parallel()

	err := Config{Address: "x", IdleTimeout: -1, ShutdownTimeout: -1}.Validate()
	var cfgErr *InvalidConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("Validate() = %v, want *InvalidConfigError", err)
	}
	if len(cfgErr.FieldErrors) != 3 {
		t.Errorf("FieldErrors = %v, want 3", cfgErr.FieldErrors)
	}
}

func TestStateString(t *testing.T) {
	t.Parallel()

	for s, want := range map[State]string{
		StateCreated:  "created",
		StateStarting: "starting",
		StateRunning:  "running",
		StateStopping: "stopping",
		StateStopped:  "stopped",
		StateFailed:   "failed",
		State(42):     "unknown",
	} {
		if got := s.String(); got != want {
			t.Errorf("State(%d).String() = %q, want %q", int(s), got, want)
		}
	}
}
