package toolbridge

import "testing"

func TestNormalizeToolCallIDConvertsBetweenStyles(t *testing.T) {
	if got := NormalizeToolCallID("toolu_abc123", IDStyleOpenAI, nil); got != "call_abc123" {
		t.Fatalf("got %q, want call_abc123", got)
	}

	if got := NormalizeToolCallID("call_abc123", IDStyleAnthropic, nil); got != "toolu_abc123" {
		t.Fatalf("got %q, want toolu_abc123", got)
	}
}

func TestNormalizeToolCallIDIsIdempotent(t *testing.T) {
	if got := NormalizeToolCallID("toolu_abc123", IDStyleAnthropic, nil); got != "toolu_abc123" {
		t.Fatalf("got %q, want unchanged toolu_abc123", got)
	}
}

func TestNormalizeToolCallIDRepairsDoublePrefix(t *testing.T) {
	var diag []string

	got := NormalizeToolCallID("toolu_toolu_xxx", IDStyleOpenAI, &diag)
	if got != "call_xxx" {
		t.Fatalf("got %q, want call_xxx", got)
	}

	if len(diag) != 1 {
		t.Fatalf("expected one diagnostic note, got %d", len(diag))
	}
}

func TestNormalizeToolCallIDRepairsDoubleCallPrefix(t *testing.T) {
	got := NormalizeToolCallID("call_call_yyy", IDStyleAnthropic, nil)
	if got != "toolu_yyy" {
		t.Fatalf("got %q, want toolu_yyy", got)
	}
}
