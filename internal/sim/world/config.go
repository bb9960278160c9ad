package world

type WorldConfig struct {
	ID         string
	TickRateHz int

	// Advancement deltas are pulsed to every player this often.
	SyncEveryTicks int
	// Connected players are saved this often; 0 saves only on leave.
	SaveEveryTicks int

	KeepAliveEveryTicks   int
	KeepAliveTimeoutTicks int

	MaxPlayers           int
	AnnounceAdvancements bool
	// Operators may run /advancement.
	Operators []string

	// TravelStepBlocks is the horizontal distance per travelled trigger.
	TravelStepBlocks float64
	// Moves longer than this in one packet are teleports and not counted.
	MaxMoveBlocks float64

	RateLimits RateLimitConfig
}

type RateLimitConfig struct {
	ChatWindowTicks int
	ChatMax         int
}

func (c *WorldConfig) applyDefaults() {
	if c.ID == "" {
		c.ID = "overworld"
	}
	if c.TickRateHz <= 0 {
		c.TickRateHz = 20
	}
	if c.SyncEveryTicks <= 0 {
		c.SyncEveryTicks = 10
	}
	if c.SaveEveryTicks < 0 {
		c.SaveEveryTicks = 0
	}
	if c.KeepAliveEveryTicks <= 0 {
		c.KeepAliveEveryTicks = 15 * c.TickRateHz
	}
	if c.KeepAliveTimeoutTicks <= c.KeepAliveEveryTicks {
		c.KeepAliveTimeoutTicks = 2 * c.KeepAliveEveryTicks
	}
	if c.MaxPlayers <= 0 {
		c.MaxPlayers = 64
	}
	if c.TravelStepBlocks <= 0 {
		c.TravelStepBlocks = 10
	}
	if c.MaxMoveBlocks <= 0 {
		c.MaxMoveBlocks = 100
	}
	if c.RateLimits.ChatWindowTicks <= 0 {
		c.RateLimits.ChatWindowTicks = c.TickRateHz
	}
	if c.RateLimits.ChatMax <= 0 {
		c.RateLimits.ChatMax = 5
	}
}
