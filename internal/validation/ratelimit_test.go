package validation

import "testing"

func TestActionBudgetExceeded(t *testing.T) {
	cfg := testCfg()
	cfg.MaxActionsPerTick = 1
	cfg.GlobalCooldownMs = 0
	rl := NewRateLimiter(cfg)
	bucket := NewActionBucket()

	first := rl.Check(bucket, ActionRequest{Kind: "attack", NowMs: 1000})
	if !first.Accepted {
		t.Fatalf("first action rejected: %+v", first)
	}
	second := rl.Check(bucket, ActionRequest{Kind: "cast", NowMs: 1050})
	if second.Accepted || !second.SuspicionIncreased {
		t.Fatalf("second action in same tick should exceed budget, got %+v", second)
	}
}

func TestNewTickResetsActionBudget(t *testing.T) {
	cfg := testCfg()
	cfg.MaxActionsPerTick = 1
	cfg.GlobalCooldownMs = 0
	rl := NewRateLimiter(cfg)
	bucket := NewActionBucket()

	rl.Check(bucket, ActionRequest{Kind: "attack", NowMs: 1000})
	over := rl.Check(bucket, ActionRequest{Kind: "attack", NowMs: 1050})
	if over.Accepted {
		t.Fatal("expected budget rejection before tick boundary")
	}
	if bucket.Suspicion == 0 {
		t.Fatal("suspicion should have increased")
	}

	next := rl.Check(bucket, ActionRequest{Kind: "attack", NowMs: 1700}) // next 600ms tick
	if !next.Accepted {
		t.Fatalf("action in new tick should be accepted, got %+v", next)
	}
}

func TestGlobalCooldownBlocksRepeat(t *testing.T) {
	cfg := testCfg()
	cfg.MaxActionsPerTick = 100
	cfg.GlobalCooldownMs = 580
	rl := NewRateLimiter(cfg)
	bucket := NewActionBucket()

	rl.Check(bucket, ActionRequest{Kind: "attack", NowMs: 1000})
	blocked := rl.Check(bucket, ActionRequest{Kind: "attack", NowMs: 1100})
	if blocked.Accepted {
		t.Fatal("repeat action within global cooldown should be rejected")
	}
	allowed := rl.Check(bucket, ActionRequest{Kind: "attack", NowMs: 1700})
	if !allowed.Accepted {
		t.Fatalf("action after cooldown elapses should be accepted, got %+v", allowed)
	}
}

func TestAbilityCooldownBypassIncreasesSuspicion(t *testing.T) {
	cfg := testCfg()
	cfg.MaxActionsPerTick = 100
	cfg.GlobalCooldownMs = 0
	rl := NewRateLimiter(cfg)
	bucket := NewActionBucket()
	AbilityCooldowns["fireball"] = 5000

	rl.Check(bucket, ActionRequest{Kind: "cast", Ability: "fireball", NowMs: 1000})
	outcome := rl.Check(bucket, ActionRequest{Kind: "cast", Ability: "fireball", NowMs: 1500})
	if outcome.Accepted {
		t.Fatal("ability still on cooldown should be rejected")
	}
	if !outcome.SuspicionIncreased {
		t.Fatal("attempting with >1000ms remaining should raise suspicion")
	}
}
