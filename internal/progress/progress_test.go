package progress

import "testing"

func TestReport_MapsStageLocalIntoGlobalRange(t *testing.T) {
	var gotStatus string
	var gotPct int
	a := New(func(status string, pct int) {
		gotStatus = status
		gotPct = pct
	})

	a.Report(StageTranslating, 50)
	if gotStatus != string(StageTranslating) {
		t.Fatalf("status = %q, want %q", gotStatus, StageTranslating)
	}
	// 25-50 band, 50% local -> 25 + 0.5*25 = 37
	if gotPct != 37 {
		t.Fatalf("progress = %d, want 37", gotPct)
	}
}

func TestReport_NeverRegresses(t *testing.T) {
	a := New(nil)
	a.Report(StageTranslating, 100) // -> 50
	a.Report(StageTranscribing, 100) // band (0,25) but already at 50
	_, pct := a.Status()
	if pct != 50 {
		t.Fatalf("progress regressed to %d, want 50", pct)
	}
}

func TestReport_FailedFreezesProgress(t *testing.T) {
	a := New(nil)
	a.Report(StageSynthesizing, 40) // 50 + 0.4*25 = 60
	a.Report(StageFailed, 0)
	status, pct := a.Status()
	if status != StageFailed {
		t.Fatalf("status = %q, want FAILED", status)
	}
	if pct != 60 {
		t.Fatalf("progress = %d, want frozen at 60", pct)
	}
}

func TestStageCallback_ReportsBoundStage(t *testing.T) {
	var seen []int
	a := New(func(status string, pct int) { seen = append(seen, pct) })
	cb := a.StageCallback(StageMuxing)
	cb(0)
	cb(100)
	if len(seen) != 2 {
		t.Fatalf("expected 2 reports, got %d", len(seen))
	}
	if seen[0] != 75 || seen[1] != 95 {
		t.Fatalf("got %v, want [75 95]", seen)
	}
}
