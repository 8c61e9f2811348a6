package fleet

import "testing"

func TestFanIn_ReturnsFromWhicheverChannelIsReady(t *testing.T) {
	a := make(chan TopicEnvelope, 1)
	b := make(chan TopicEnvelope, 1)
	stop := make(chan struct{})

	b <- TopicEnvelope{EntityID: "rover-b", Topic: TopicMetrics}

	entityID, env, ok := FanIn([]NamedChan{{EntityID: "rover-a", Ch: a}, {EntityID: "rover-b", Ch: b}}, stop)
	if !ok {
		t.Fatalf("expected FanIn to return a value")
	}
	if entityID != "rover-b" || env.Topic != TopicMetrics {
		t.Fatalf("expected envelope from rover-b, got entity=%s topic=%s", entityID, env.Topic)
	}
}

func TestFanIn_ReturnsFalseOnStop(t *testing.T) {
	stop := make(chan struct{})
	close(stop)
	_, _, ok := FanIn(nil, stop)
	if ok {
		t.Fatalf("expected FanIn to return false when there are no channels and stop is closed")
	}
}

func TestFanIn_ReturnsFalseWhenChannelCloses(t *testing.T) {
	a := make(chan TopicEnvelope)
	close(a)
	stop := make(chan struct{})
	_, _, ok := FanIn([]NamedChan{{EntityID: "rover-a", Ch: a}}, stop)
	if ok {
		t.Fatalf("expected FanIn to return false when the only channel is closed")
	}
}
