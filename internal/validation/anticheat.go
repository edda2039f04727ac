package validation

import (
	"math"

	"github.com/duskhollow/realm/internal/config"
)

// Severity is one of the §4.2.3 flag severities.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Response is the administrative action a flag rate warrants.
type Response string

const (
	ResponseLog      Response = "log"
	ResponseWarn     Response = "warn"
	ResponseKick     Response = "kick"
	ResponseTempBan  Response = "temp_ban"
	ResponsePermBan  Response = "perm_ban"
)

// flagSeverity maps a gameerr-style flag kind to its severity. Unlisted
// kinds default to low.
var flagSeverity = map[string]Severity{
	"SPEED_HACK":           SeverityHigh,
	"TELEPORT_HACK":        SeverityCritical,
	"WALL_CLIP":            SeverityHigh,
	"FLY_HACK":             SeverityCritical,
	"TICK_BUDGET_EXCEEDED": SeverityMedium,
	"COOLDOWN_BYPASS":      SeverityHigh,
	"REPLAY_ATTACK":        SeverityCritical,
	"SIGNATURE_MISMATCH":   SeverityCritical,
}

// SeverityOf classifies a flag kind.
func SeverityOf(kind string) Severity {
	if s, ok := flagSeverity[kind]; ok {
		return s
	}
	return SeverityLow
}

// Flag is one raised anti-cheat flag (§3 FlagRecord).
type Flag struct {
	CharacterID int64
	Kind        string
	Severity    Severity
	AtMs        int64
}

// Classifier evaluates the recent flag history for one character against
// the configured per-severity thresholds (§4.2.3).
type Classifier struct {
	cfg config.ValidationConfig
}

func NewClassifier(cfg config.ValidationConfig) *Classifier {
	return &Classifier{cfg: cfg}
}

// Evaluate is the pure function from §4.2.3: given the flags raised for a
// character in the last hour (recentFlags, already filtered by the
// caller), returns the response to apply. Critical flags escalate
// immediately; otherwise counts are compared against thresholds in
// descending severity order.
func (c *Classifier) Evaluate(recentFlags []Flag) Response {
	var low, medium, high, critical int
	for _, f := range recentFlags {
		switch f.Severity {
		case SeverityCritical:
			critical++
		case SeverityHigh:
			high++
		case SeverityMedium:
			medium++
		case SeverityLow:
			low++
		}
	}

	if critical >= c.cfg.FlagThresholds.Critical {
		return ResponsePermBan
	}
	if high >= c.cfg.FlagThresholds.High {
		return ResponseTempBan
	}
	if medium >= c.cfg.FlagThresholds.Medium {
		return ResponseKick
	}
	if low >= c.cfg.FlagThresholds.Low {
		return ResponseWarn
	}
	return ResponseLog
}

// BotSignals are the §4.2.3 derived analytics, surfaced for administrative
// review rather than acted on automatically.
type BotSignals struct {
	LinearMovement    bool
	MicroMovementHigh bool
	TimingSuspicious  bool
}

// sampledInterval holds one recorded action timestamp. AnalyzeTimingVariance
// takes plain millisecond timestamps and does not use this type.
type sampledInterval struct {
	AtMs int64
}

// AnalyzeLinearity reports whether the angular deviation across a position
// history stays under 0.01 rad, evaluated over at least 10 samples
// (§4.2.3).
func AnalyzeLinearity(history []Position) bool {
	if len(history) < 10 {
		return false
	}
	var maxDeviation float64
	baseAngle, hasBase := 0.0, false
	for i := 1; i < len(history); i++ {
		dx := history[i].X - history[i-1].X
		dy := history[i].Y - history[i-1].Y
		if dx == 0 && dy == 0 {
			continue
		}
		angle := math.Atan2(dy, dx)
		if !hasBase {
			baseAngle = angle
			hasBase = true
			continue
		}
		dev := math.Abs(angle - baseAngle)
		if dev > math.Pi {
			dev = 2*math.Pi - dev
		}
		if dev > maxDeviation {
			maxDeviation = dev
		}
	}
	return hasBase && maxDeviation < 0.01
}

// AnalyzeMicroMovement reports whether more than 30% of consecutive sample
// pairs moved a distance in (0, 1) units (§4.2.3).
func AnalyzeMicroMovement(history []Position) bool {
	if len(history) < 2 {
		return false
	}
	micro := 0
	total := 0
	for i := 1; i < len(history); i++ {
		d := history[i].distanceTo(history[i-1])
		if d == 0 {
			continue
		}
		total++
		if d < 1.0 {
			micro++
		}
	}
	if total == 0 {
		return false
	}
	return float64(micro)/float64(total) > 0.30
}

// AnalyzeTimingVariance reports whether the variance of action-interval
// gaps is under 100 (ms^2) across at least 10 samples (§4.2.3).
func AnalyzeTimingVariance(timestampsMs []int64) bool {
	if len(timestampsMs) < 11 {
		return false
	}
	intervals := make([]float64, 0, len(timestampsMs)-1)
	for i := 1; i < len(timestampsMs); i++ {
		intervals = append(intervals, float64(timestampsMs[i]-timestampsMs[i-1]))
	}
	var mean float64
	for _, v := range intervals {
		mean += v
	}
	mean /= float64(len(intervals))

	var variance float64
	for _, v := range intervals {
		d := v - mean
		variance += d * d
	}
	variance /= float64(len(intervals))

	return variance < 100
}

// Signals runs all three §4.2.3 analytics for administrative surfacing.
func Signals(history []Position, actionTimestampsMs []int64) BotSignals {
	return BotSignals{
		LinearMovement:    AnalyzeLinearity(history),
		MicroMovementHigh: AnalyzeMicroMovement(history),
		TimingSuspicious:  AnalyzeTimingVariance(actionTimestampsMs),
	}
}
