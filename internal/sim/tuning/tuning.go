package tuning

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Tuning struct {
	ProtocolVersion string `yaml:"protocol_version"`

	TickRateHz         int `yaml:"tick_rate_hz"`
	SnapshotEveryTicks int `yaml:"snapshot_every_ticks"`

	// MaxLinks caps linkset size for link requests. 0 disables the cap.
	MaxLinks int `yaml:"max_links"`

	Observer Observer `yaml:"observer"`

	EventLog bool `yaml:"event_log"`
	Index    bool `yaml:"index"`
}

type Observer struct {
	MaxQueue       int `yaml:"max_queue"`
	WriteTimeoutMs int `yaml:"write_timeout_ms"`

	// SendWaitMs bounds how long a send waits on a full observer queue.
	SendWaitMs   int  `yaml:"send_wait_ms"`
	LoopbackOnly bool `yaml:"loopback_only"`
}

func Defaults() Tuning {
	return Tuning{
		ProtocolVersion:    "1",
		TickRateHz:         10,
		SnapshotEveryTicks: 3000,
		MaxLinks:           256,
		Observer: Observer{
			MaxQueue:       256,
			WriteTimeoutMs: 5000,
			SendWaitMs:     2000,
			LoopbackOnly:   true,
		},
		EventLog: true,
		Index:    true,
	}
}

func (t Tuning) Validate() error {
	var errs []error
	if t.TickRateHz <= 0 || t.TickRateHz > 1000 {
		errs = append(errs, fmt.Errorf("tick_rate_hz %d out of range (1..1000)", t.TickRateHz))
	}
	if t.SnapshotEveryTicks < 0 {
		errs = append(errs, fmt.Errorf("snapshot_every_ticks %d is negative", t.SnapshotEveryTicks))
	}
	if t.MaxLinks < 0 {
		errs = append(errs, fmt.Errorf("max_links %d is negative", t.MaxLinks))
	}
	if t.Observer.MaxQueue <= 0 {
		errs = append(errs, fmt.Errorf("observer.max_queue must be positive"))
	}
	if t.Observer.WriteTimeoutMs <= 0 {
		errs = append(errs, fmt.Errorf("observer.write_timeout_ms must be positive"))
	}
	if t.Observer.SendWaitMs < 0 {
		errs = append(errs, fmt.Errorf("observer.send_wait_ms %d is negative", t.Observer.SendWaitMs))
	}
	return errors.Join(errs...)
}

// Load reads path over Defaults; keys missing from the file keep their
// default values.
func Load(path string) (Tuning, error) {
	t := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}
