package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func newTestRecorder() *Recorder {
	return NewWithRegisterer(prometheus.NewRegistry())
}

func TestObserveConversationIncrementsCounterForStatus(t *testing.T) {
	r := newTestRecorder()
	r.ObserveConversation("COMPLETED", 2*time.Second)
	r.ObserveConversation("COMPLETED", time.Second)
	r.ObserveConversation("FAILED", time.Second)

	if got := testutil.ToFloat64(r.conversationsTotal.WithLabelValues("COMPLETED")); got != 2 {
		t.Errorf("got %v completed conversations, want 2", got)
	}
	if got := testutil.ToFloat64(r.conversationsTotal.WithLabelValues("FAILED")); got != 1 {
		t.Errorf("got %v failed conversations, want 1", got)
	}
}

func TestObserveIndexRunAccumulatesByChangeKind(t *testing.T) {
	r := newTestRecorder()
	r.ObserveIndexRun(3, 1, 2, 500*time.Millisecond)

	if got := testutil.ToFloat64(r.indexedFilesTotal.WithLabelValues("added")); got != 3 {
		t.Errorf("got %v added files, want 3", got)
	}
	if got := testutil.ToFloat64(r.indexedFilesTotal.WithLabelValues("deleted")); got != 2 {
		t.Errorf("got %v deleted files, want 2", got)
	}
}

func TestObserveRetrievalTracksHitsByKind(t *testing.T) {
	r := newTestRecorder()
	r.ObserveRetrieval("hybrid", 5, 10*time.Millisecond)
	r.ObserveRetrieval("hybrid", 3, 20*time.Millisecond)

	if got := testutil.ToFloat64(r.retrievalHitsTotal.WithLabelValues("hybrid")); got != 8 {
		t.Errorf("got %v hybrid hits, want 8", got)
	}
}
