// momo-gateway/internal/momo/status_test.go
package momo

import (
	"testing"

	"github.com/example/momo-gateway/internal/intent"
)

func TestMapProviderStatus(t *testing.T) {
	cases := map[string]intent.Status{
		"SUCCESSFUL": intent.StatusSuccessful,
		"successful": intent.StatusSuccessful,
		"FAILED":     intent.StatusFailed,
		"REJECTED":   intent.StatusFailed,
		"TIMEOUT":    intent.StatusFailed,
		"PENDING":    intent.StatusPending,
		"CREATED":    intent.StatusPending,
		"ONGOING":    intent.StatusPending,
	}
	for in, want := range cases {
		if got := MapProviderStatus(in); got != want {
			t.Errorf("MapProviderStatus(%q) = %s, want %s", in, got, want)
		}
	}
}

// Vocabulary drift must never become terminal on either ingress path.
func TestUnrecognizedStatusNeverTerminal(t *testing.T) {
	for _, weird := range []string{"", "SETTLED", "IN_PROGRESS", "OK", "💸"} {
		got := MapProviderStatus(weird)
		if got != intent.StatusPending {
			t.Errorf("MapProviderStatus(%q) = %s, want PENDING", weird, got)
		}
		if got.Terminal() {
			t.Errorf("unrecognized %q mapped to terminal %s", weird, got)
		}
	}
}

// The webhook path and the polling path share one mapping function; this
// pins the agreement for an unrecognized word end to end.
func TestWebhookAndPollAgreeOnUnknownVocabulary(t *testing.T) {
	wp := NewWebhookProcessor("shh")
	payload := []byte(`{"referenceId":"ref-1","externalId":"ext-1","status":"SOMETHING_NEW","amount":"5"}`)
	ev, err := wp.Handle(payload, wp.Sign(payload))
	if err != nil { t.Fatal(err) }

	if ev.NewStatus != MapProviderStatus("SOMETHING_NEW") {
		t.Fatalf("webhook mapped %s, poll maps %s", ev.NewStatus, MapProviderStatus("SOMETHING_NEW"))
	}
	if ev.NewStatus.Terminal() {
		t.Fatal("unknown vocabulary must not settle an intent")
	}
}
