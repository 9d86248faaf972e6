package gate

import (
	"fmt"
	"testing"

	"github.com/citriage/citriage/internal/plan"
	"github.com/citriage/citriage/internal/redact"
)

func actionsTouching(files int, linesEach int) []plan.Action {
	var out []plan.Action
	for i := 0; i < files; i++ {
		out = append(out, plan.Action{
			TargetFile: fmt.Sprintf("file-%d.txt", i),
			LineDelta:  linesEach,
		})
	}
	return out
}

func TestEvaluate_WithinLimitsApplies(t *testing.T) {
	v := Evaluate(actionsTouching(10, 50), nil, DefaultLimits(), false)

	if v.Decision != DecisionApply {
		t.Errorf("expected apply, got %s (reasons: %v)", v.Decision, v.Reasons)
	}
	if v.FileCount != 10 || v.LineCount != 500 {
		t.Errorf("expected counts 10/500 at the boundary, got %d/%d", v.FileCount, v.LineCount)
	}
	if v.LimitsExceeded {
		t.Error("boundary values must not count as exceeded")
	}
}

func TestEvaluate_TooManyFilesDrafts(t *testing.T) {
	v := Evaluate(actionsTouching(11, 1), nil, DefaultLimits(), false)

	if v.Decision != DecisionDraft {
		t.Errorf("expected draft, got %s", v.Decision)
	}
	if !v.LimitsExceeded {
		t.Error("expected LimitsExceeded")
	}
	if len(v.Reasons) == 0 {
		t.Error("expected a triggered-rule reason")
	}
}

func TestEvaluate_TooManyLinesDrafts(t *testing.T) {
	v := Evaluate(actionsTouching(2, 300), nil, DefaultLimits(), false)

	if v.Decision != DecisionDraft {
		t.Errorf("expected draft for 600 lines, got %s", v.Decision)
	}
}

func TestEvaluate_OverrideDisablesScaleRule(t *testing.T) {
	v := Evaluate(actionsTouching(15, 100), nil, DefaultLimits(), true)

	if v.Decision != DecisionApply {
		t.Errorf("expected apply with override, got %s", v.Decision)
	}
	if !v.LimitsExceeded {
		t.Error("override must still record that limits were exceeded")
	}
}

func TestEvaluate_SecretAbortsRegardlessOfOverride(t *testing.T) {
	secrets := []SecretHit{{File: "config.env", Hit: redact.Hit{Pattern: "aws-access-key", Line: 3}}}

	for _, override := range []bool{false, true} {
		v := Evaluate(actionsTouching(1, 1), secrets, DefaultLimits(), override)
		if v.Decision != DecisionAbort {
			t.Errorf("override=%v: expected abort, got %s", override, v.Decision)
		}
		if len(v.Reasons) != 1 {
			t.Errorf("override=%v: expected 1 secret reason, got %v", override, v.Reasons)
		}
	}
}

func TestEvaluate_EmptyActionSetApplies(t *testing.T) {
	v := Evaluate(nil, nil, DefaultLimits(), false)

	if v.Decision != DecisionApply {
		t.Errorf("expected apply for empty set, got %s", v.Decision)
	}
	if v.FileCount != 0 || v.LineCount != 0 {
		t.Errorf("expected 0/0 counts, got %d/%d", v.FileCount, v.LineCount)
	}
}

func TestEvaluate_DistinctFilesCountedOnce(t *testing.T) {
	actions := []plan.Action{
		{TargetFile: "requirements.txt", LineDelta: 1},
		{TargetFile: "requirements.txt", LineDelta: 1},
	}
	v := Evaluate(actions, nil, DefaultLimits(), false)

	if v.FileCount != 1 {
		t.Errorf("expected 1 distinct file, got %d", v.FileCount)
	}
	if v.LineCount != 2 {
		t.Errorf("expected summed line delta 2, got %d", v.LineCount)
	}
}

func TestEvaluate_CustomLimits(t *testing.T) {
	limits := Limits{MaxFiles: 1, MaxLines: 5}

	if v := Evaluate(actionsTouching(1, 5), nil, limits, false); v.Decision != DecisionApply {
		t.Errorf("at boundary: expected apply, got %s", v.Decision)
	}
	if v := Evaluate(actionsTouching(2, 1), nil, limits, false); v.Decision != DecisionDraft {
		t.Errorf("over file limit: expected draft, got %s", v.Decision)
	}
	if v := Evaluate(actionsTouching(1, 6), nil, limits, false); v.Decision != DecisionDraft {
		t.Errorf("over line limit: expected draft, got %s", v.Decision)
	}
}
