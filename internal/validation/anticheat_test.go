package validation

import "testing"

func TestClassifierEscalation(t *testing.T) {
	cfg := testCfg()
	cfg.FlagThresholds.Low = 3
	cfg.FlagThresholds.Medium = 2
	cfg.FlagThresholds.High = 2
	cfg.FlagThresholds.Critical = 1
	c := NewClassifier(cfg)

	if r := c.Evaluate(nil); r != ResponseLog {
		t.Fatalf("no flags = %v, want log", r)
	}
	if r := c.Evaluate([]Flag{{Severity: SeverityCritical}}); r != ResponsePermBan {
		t.Fatalf("one critical = %v, want perm_ban", r)
	}
	if r := c.Evaluate([]Flag{{Severity: SeverityHigh}, {Severity: SeverityHigh}}); r != ResponseTempBan {
		t.Fatalf("two high = %v, want temp_ban", r)
	}
	if r := c.Evaluate([]Flag{{Severity: SeverityLow}, {Severity: SeverityLow}, {Severity: SeverityLow}}); r != ResponseWarn {
		t.Fatalf("three low = %v, want warn", r)
	}
}

func TestLinearityDetection(t *testing.T) {
	straight := make([]Position, 12)
	for i := range straight {
		straight[i] = Position{X: float64(i), Y: 0, Z: 0}
	}
	if !AnalyzeLinearity(straight) {
		t.Fatal("perfectly straight path should be flagged linear")
	}

	zigzag := []Position{}
	for i := 0; i < 12; i++ {
		y := 0.0
		if i%2 == 1 {
			y = 5
		}
		zigzag = append(zigzag, Position{X: float64(i), Y: y, Z: 0})
	}
	if AnalyzeLinearity(zigzag) {
		t.Fatal("zig-zag path should not be flagged linear")
	}
}

func TestMicroMovementDetection(t *testing.T) {
	history := make([]Position, 0, 20)
	for i := 0; i < 20; i++ {
		if i%2 == 0 {
			history = append(history, Position{X: float64(i) * 0.5, Y: 0, Z: 0})
		} else {
			history = append(history, Position{X: float64(i) * 0.5, Y: 0.1, Z: 0})
		}
	}
	if !AnalyzeMicroMovement(history) {
		t.Fatal("mostly sub-1-unit steps should be flagged")
	}
}

func TestTimingVarianceDetection(t *testing.T) {
	regular := make([]int64, 12)
	for i := range regular {
		regular[i] = int64(i * 500)
	}
	if !AnalyzeTimingVariance(regular) {
		t.Fatal("perfectly regular intervals should be flagged suspicious")
	}

	irregular := []int64{0, 120, 900, 1050, 3000, 3100, 9000, 9050, 15000, 15200, 22000}
	if AnalyzeTimingVariance(irregular) {
		t.Fatal("irregular human-like intervals should not be flagged")
	}
}
