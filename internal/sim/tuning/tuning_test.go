package tuning

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tuning.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	return path
}

func TestDefaultsValidate(t *testing.T) {
	if err := Defaults().Validate(); err != nil {
		t.Fatalf("defaults invalid: %v", err)
	}
}

func TestLoad_OverridesDefaults(t *testing.T) {
	path := writeFile(t, `
tick_rate_hz: 20
max_links: 64
observer:
  max_queue: 32
  loopback_only: false
index: false
`)
	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.TickRateHz != 20 || got.MaxLinks != 64 || got.Observer.MaxQueue != 32 || got.Observer.LoopbackOnly || got.Index {
		t.Fatalf("got %+v", got)
	}
	def := Defaults()
	if got.SnapshotEveryTicks != def.SnapshotEveryTicks || got.Observer.WriteTimeoutMs != def.Observer.WriteTimeoutMs || !got.EventLog {
		t.Fatalf("missing keys lost their defaults: %+v", got)
	}
}

func TestLoad_Rejects(t *testing.T) {
	cases := []struct {
		name, body, want string
	}{
		{"tick rate", "tick_rate_hz: 0\n", "tick_rate_hz"},
		{"max links", "max_links: -1\n", "max_links"},
		{"queue", "observer:\n  max_queue: 0\n", "max_queue"},
		{"send wait", "observer:\n  send_wait_ms: -1\n", "send_wait_ms"},
		{"syntax", "tick_rate_hz: [\n", "tuning.yaml"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeFile(t, tc.body))
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("err=%v want mention of %q", err, tc.want)
			}
		})
	}
}
