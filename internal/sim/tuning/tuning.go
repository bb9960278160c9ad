package tuning

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Tuning struct {
	ProtocolVersion int `yaml:"protocol_version"`

	TickRateHz int `yaml:"tick_rate_hz"`
	// SyncEveryTicks is how often advancement deltas are pulsed to clients.
	SyncEveryTicks        int `yaml:"sync_every_ticks"`
	SaveEveryTicks        int `yaml:"save_every_ticks"`
	KeepAliveEveryTicks   int `yaml:"keepalive_every_ticks"`
	KeepAliveTimeoutTicks int `yaml:"keepalive_timeout_ticks"`

	MaxPlayers           int      `yaml:"max_players"`
	AnnounceAdvancements bool     `yaml:"announce_advancements"`
	Operators            []string `yaml:"operators"`
	DefaultLocale        string   `yaml:"default_locale"`
	// TravelStepBlocks is the distance walked per travelled trigger.
	TravelStepBlocks float64 `yaml:"travel_step_blocks"`

	Codec         Codec      `yaml:"codec"`
	OutboundQueue int        `yaml:"outbound_queue"`
	RateLimits    RateLimits `yaml:"rate_limits"`
}

type Codec struct {
	MaxFrameBytes int `yaml:"max_frame_bytes"`
	MaxNBTDepth   int `yaml:"max_nbt_depth"`
	MaxNBTBytes   int `yaml:"max_nbt_bytes"`
}

type RateLimits struct {
	ChatWindowTicks int `yaml:"chat_window_ticks"`
	ChatMax         int `yaml:"chat_max"`
}

func Defaults() Tuning {
	return Tuning{
		ProtocolVersion:       340,
		TickRateHz:            20,
		SyncEveryTicks:        10,
		SaveEveryTicks:        1200,
		KeepAliveEveryTicks:   300,
		KeepAliveTimeoutTicks: 600,
		MaxPlayers:            64,
		AnnounceAdvancements:  true,
		DefaultLocale:         "en-US",
		TravelStepBlocks:      10,
		Codec: Codec{
			MaxFrameBytes: 2 << 20,
			MaxNBTDepth:   512,
			MaxNBTBytes:   2 << 20,
		},
		OutboundQueue: 256,
		RateLimits: RateLimits{
			ChatWindowTicks: 20,
			ChatMax:         5,
		},
	}
}

// Load overlays the file on Defaults. Keys missing from the file keep their
// default value.
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

func (t Tuning) Validate() error {
	switch {
	case t.TickRateHz <= 0:
		return errors.New("tick_rate_hz must be positive")
	case t.SyncEveryTicks <= 0:
		return errors.New("sync_every_ticks must be positive")
	case t.KeepAliveTimeoutTicks > 0 && t.KeepAliveTimeoutTicks <= t.KeepAliveEveryTicks:
		return errors.New("keepalive_timeout_ticks must exceed keepalive_every_ticks")
	case t.OutboundQueue <= 0:
		return errors.New("outbound_queue must be positive")
	case t.Codec.MaxFrameBytes <= 0:
		return errors.New("codec.max_frame_bytes must be positive")
	}
	return nil
}
