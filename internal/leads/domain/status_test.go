package domain

import "testing"

func TestMapOutcomeIdentityEdges(t *testing.T) {
	cases := []struct {
		outcome CallOutcome
		want    LeadStatus
	}{
		{OutcomeBooked, LeadStatusBooked},
		{OutcomeNotAnswered, LeadStatusNotAnswered},
		{OutcomeCallback, LeadStatusCallback},
		{OutcomeFailed, LeadStatusFailed},
	}
	for _, tc := range cases {
		if got := MapOutcome(tc.outcome); got != tc.want {
			t.Errorf("MapOutcome(%q) = %q, want %q", tc.outcome, got, tc.want)
		}
	}
}

func TestMapOutcomeCompletedWithoutBookingIsNotAnswered(t *testing.T) {
	if got := MapOutcome(OutcomeCompleted); got != LeadStatusNotAnswered {
		t.Fatalf("MapOutcome(completed) = %q, want %q", got, LeadStatusNotAnswered)
	}
	if got := MapOutcome(OutcomeBusy); got != LeadStatusNotAnswered {
		t.Fatalf("MapOutcome(busy) = %q, want %q", got, LeadStatusNotAnswered)
	}
}

func TestDialableRetryLoop(t *testing.T) {
	for _, s := range []LeadStatus{LeadStatusNew, LeadStatusCallback, LeadStatusNotAnswered} {
		if !Dialable(s) {
			t.Errorf("expected %q to be dialable", s)
		}
	}
	for _, s := range []LeadStatus{LeadStatusCalled, LeadStatusBooked, LeadStatusFailed} {
		if Dialable(s) {
			t.Errorf("expected %q to not be dialable", s)
		}
	}
}

func TestValidOutcomeRejectsUnknownValue(t *testing.T) {
	if ValidOutcome("voicemail") {
		t.Fatal("expected voicemail to be rejected")
	}
	if !ValidOutcome(OutcomeBusy) {
		t.Fatal("expected busy to be accepted")
	}
}
