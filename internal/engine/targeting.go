package engine

import (
	"fmt"

	"gramnerd/internal/browser"
	"gramnerd/internal/config"
)

// DecideTarget applies the follower-count gate to a discovered profile.
// Accounts below the floor are too small to be real businesses and
// accounts above the ceiling are too large to read DMs from strangers.
func DecideTarget(p *browser.Profile, cfg config.TargetingConfig) (bool, string) {
	if p.Followers < cfg.MinFollowers {
		return false, fmt.Sprintf("only %d followers (minimum %d)", p.Followers, cfg.MinFollowers)
	}
	if p.Followers > cfg.MaxFollowers {
		return false, fmt.Sprintf("%d followers exceeds maximum %d", p.Followers, cfg.MaxFollowers)
	}
	if p.HasWebsite {
		return true, "in range, has a website (redesign candidate)"
	}
	if p.IsBusiness {
		return true, "in range, business signals in bio"
	}
	return true, "in range"
}
