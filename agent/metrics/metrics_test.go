package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/tanpawarit/chative-guildbot/agent/agents/orchestrator"
)

var _ orchestrator.Recorder = (*Metrics)(nil)

func TestObservations(t *testing.T) {
	t.Parallel()

	m := New()
	m.ObserveTurn()
	m.ObserveTurn()
	m.ObserveAction("sendMessage", true, 20*time.Millisecond)
	m.ObserveAction("sendMessage", false, time.Millisecond)
	m.ObserveAction("sendMessage", true, time.Millisecond)
	m.ObserveConversation("response", time.Second)

	if got := testutil.ToFloat64(m.turns); got != 2 {
		t.Fatalf("turns = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.actions.WithLabelValues("sendMessage", "true")); got != 2 {
		t.Fatalf("successful sendMessage = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.actions.WithLabelValues("sendMessage", "false")); got != 1 {
		t.Fatalf("failed sendMessage = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.conversations.WithLabelValues("response")); got != 1 {
		t.Fatalf("conversations = %v, want 1", got)
	}
}

func TestHandlerExposesMetrics(t *testing.T) {
	t.Parallel()

	m := New()
	m.ObserveConversation("no_calls", 100*time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)

	for _, want := range []string{
		`guildbot_conversations_total{reason="no_calls"} 1`,
		"guildbot_conversation_duration_seconds_bucket",
		"go_goroutines",
	} {
		if !strings.Contains(string(body), want) {
			t.Fatalf("metrics output missing %q", want)
		}
	}
}
