package drift

import (
	"context"
	"fmt"
	"math/rand/v2"

	"drift-control-core/utils"
)

// Kicker launches the car into a full-lock circle in a random direction so
// the law starts from an established drift rather than from rest.
type Kicker struct {
	cfg      KickConfig
	platform Platform
	clock    Clock
	log      *utils.Logger
	rng      *rand.Rand
}

func NewKicker(cfg KickConfig, p Platform, clock Clock, log *utils.Logger) *Kicker {
	return &Kicker{
		cfg:      cfg,
		platform: p,
		clock:    clock,
		log:      log,
		rng:      rand.New(rand.NewPCG(cfg.Seed, cfg.Seed)),
	}
}

// Run picks a side, holds full lock for the kick duration and reports the
// side chosen.
func (k *Kicker) Run(ctx context.Context) (TurnDirection, error) {
	dir := Right
	steer := 1.0
	if k.rng.IntN(2) == 0 {
		dir, steer = Left, -1.0
	}

	k.log.Event(utils.INFO, "kick", "direction", dir.String(), "hold", k.cfg.Duration)

	cmd := Command{Steering: steer, Throttle: k.cfg.Throttle, Gear: k.cfg.Gear}.Clamped()
	if err := k.platform.Dispatch(ctx, cmd); err != nil {
		return dir, fmt.Errorf("dispatch kick: %w", err)
	}
	return dir, k.clock.Sleep(ctx, k.cfg.Duration)
}
