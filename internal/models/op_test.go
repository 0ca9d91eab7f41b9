package models

import "testing"

func TestOpStringRoundTrip(t *testing.T) {
	for _, op := range AllOps {
		parsed, err := ParseOp(op.String())
		if err != nil {
			t.Fatalf("ParseOp(%q) returned error: %v", op.String(), err)
		}
		if parsed != op {
			t.Errorf("ParseOp(%q) = %v, want %v", op.String(), parsed, op)
		}
	}
}

func TestParseOpUnknown(t *testing.T) {
	if _, err := ParseOp("TRUNCATE"); err == nil {
		t.Error("expected an error for an unknown operation")
	}
}

func TestOutcomeMatchesExpectation(t *testing.T) {
	cases := []struct {
		outcome  Outcome
		expect   Expectation
		expected bool
	}{
		{Allow, ExpectAllow, true},
		{Allow, ExpectDeny, false},
		{Deny, ExpectDeny, true},
		{Deny, ExpectAllow, false},
		{ErrorOutcome, ExpectAllow, false},
		{Skipped, ExpectDeny, false},
	}
	for _, c := range cases {
		if got := c.outcome.MatchesExpectation(c.expect); got != c.expected {
			t.Errorf("%v.MatchesExpectation(%v) = %v, want %v", c.outcome, c.expect, got, c.expected)
		}
	}
}

func TestOutcomeJSONRoundTrip(t *testing.T) {
	for _, o := range []Outcome{Allow, Deny, ErrorOutcome, Skipped} {
		data, err := o.MarshalJSON()
		if err != nil {
			t.Fatalf("MarshalJSON: %v", err)
		}
		var got Outcome
		if err := got.UnmarshalJSON(data); err != nil {
			t.Fatalf("UnmarshalJSON: %v", err)
		}
		if got != o {
			t.Errorf("round trip of %v produced %v", o, got)
		}
	}
}
