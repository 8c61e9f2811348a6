package dataflow

import (
	"testing"
	"time"
)

func TestNodeStats_RecordTracksAverageAndMax(t *testing.T) {
	s := NewNodeStats("object-detector", nil)
	s.Record(func() { time.Sleep(2 * time.Millisecond) })
	s.Record(func() { time.Sleep(5 * time.Millisecond) })

	if s.AvgProcessingTimeMs() <= 0 {
		t.Fatalf("expected a positive average processing time")
	}
	if s.MaxProcessingTimeMs() < s.AvgProcessingTimeMs() {
		t.Fatalf("expected max >= average")
	}
}

func TestNodeStats_QueueSizeReflectsMailbox(t *testing.T) {
	mb := NewMailbox(4)
	mb.Send(Message{Kind: PayloadJSON})
	s := NewNodeStats("test-node", mb)
	if s.QueueSize() != 1 {
		t.Fatalf("expected queue size 1, got %d", s.QueueSize())
	}
}
