package validation

import (
	"github.com/duskhollow/realm/internal/config"
	"github.com/duskhollow/realm/internal/gameerr"
)

// ActionKind identifies a rate-limited action for the tick budget and
// global-cooldown bookkeeping (§4.2.2).
type ActionKind string

// ActionTickCosts is ACTION_TICK_COSTS from §4.2.2: default cost is 1 for
// any kind not listed here.
var ActionTickCosts = map[ActionKind]int{}

// AbilityCooldowns is ABILITY_COOLDOWNS from §4.2.2, in milliseconds.
var AbilityCooldowns = map[string]int64{}

func tickCost(kind ActionKind) int {
	if c, ok := ActionTickCosts[kind]; ok {
		return c
	}
	return 1
}

// ActionBucket is the per-character rate-limit state named in §4.2.2.
type ActionBucket struct {
	Tick              int64
	ActionsThisTick    int
	PrayerSwitchesTick int
	Suspicion          int
	LastActionAtMs     map[ActionKind]int64
	AbilityReadyAtMs   map[string]int64
}

func NewActionBucket() *ActionBucket {
	return &ActionBucket{
		LastActionAtMs:   make(map[ActionKind]int64),
		AbilityReadyAtMs: make(map[string]int64),
	}
}

// ActionRequest describes an incoming action (§4.2.2).
type ActionRequest struct {
	Kind       ActionKind
	Ability    string // empty if the action has no cooldown-bearing ability
	IsPrayer   bool
	NowMs      int64
}

// ActionOutcome is the rate limiter's verdict.
type ActionOutcome struct {
	Accepted            bool
	Err                 *gameerr.GameError
	SuspicionIncreased  bool
}

// RateLimiter implements the §4.2.2 action-budget pipeline.
type RateLimiter struct {
	cfg config.ValidationConfig
}

func NewRateLimiter(cfg config.ValidationConfig) *RateLimiter {
	return &RateLimiter{cfg: cfg}
}

// Check runs the six §4.2.2 steps against a bucket for one incoming action.
func (rl *RateLimiter) Check(bucket *ActionBucket, req ActionRequest) ActionOutcome {
	currentTick := req.NowMs / int64(rl.cfg.TickDurationMs)
	if currentTick > bucket.Tick {
		bucket.Tick = currentTick
		bucket.ActionsThisTick = 0
		bucket.PrayerSwitchesTick = 0
	}

	if req.IsPrayer {
		if bucket.PrayerSwitchesTick+1 > rl.cfg.MaxPrayerSwitchesPerTick {
			return ActionOutcome{Err: gameerr.New(gameerr.TickBudgetExceeded, "prayer switch budget exceeded")}
		}
	} else {
		cost := tickCost(req.Kind)
		if bucket.ActionsThisTick+cost > rl.cfg.MaxActionsPerTick {
			bucket.Suspicion++
			return ActionOutcome{
				Err:                gameerr.New(gameerr.TickBudgetExceeded, "action tick budget exceeded"),
				SuspicionIncreased: true,
			}
		}
	}

	if last, ok := bucket.LastActionAtMs[req.Kind]; ok {
		if req.NowMs-last < int64(rl.cfg.GlobalCooldownMs) {
			return ActionOutcome{Err: gameerr.New(gameerr.GlobalCooldown, "global cooldown active")}
		}
	}

	if req.Ability != "" {
		readyAt := bucket.AbilityReadyAtMs[req.Ability]
		if req.NowMs < readyAt {
			remaining := readyAt - req.NowMs
			err := gameerr.New(gameerr.AbilityOnCooldown, "ability on cooldown").WithCooldown(remaining)
			outcome := ActionOutcome{Err: err}
			if remaining > 1000 {
				bucket.Suspicion++
				outcome.SuspicionIncreased = true
			}
			return outcome
		}
	}

	if req.IsPrayer {
		bucket.PrayerSwitchesTick++
	} else {
		bucket.ActionsThisTick += tickCost(req.Kind)
	}
	bucket.LastActionAtMs[req.Kind] = req.NowMs
	if req.Ability != "" {
		bucket.AbilityReadyAtMs[req.Ability] = req.NowMs + AbilityCooldowns[req.Ability]
	}
	if bucket.Suspicion > 0 {
		bucket.Suspicion--
	}

	return ActionOutcome{Accepted: true}
}
