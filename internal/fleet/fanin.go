package fleet

import "reflect"

// NamedChan pairs a rover's entity id with one of its subscription channels,
// so a caller can tell which rover an envelope arrived from.
type NamedChan struct {
	EntityID string
	Ch       <-chan TopicEnvelope
}

// FanIn blocks until one of the given channels yields a value or stop fires,
// returning ok=false on stop or when the chosen channel is closed, and
// rebuilding its reflect.Select case list fresh on every call — the Go
// analogue of receive_from_rovers()'s futures::future::select_all, which the
// original also rebuilds every loop pass so that a rover activated or
// deactivated mid-flight is picked up on the very next iteration.
func FanIn(chans []NamedChan, stop <-chan struct{}) (entityID string, env TopicEnvelope, ok bool) {
	if len(chans) == 0 {
		<-stop
		return "", TopicEnvelope{}, false
	}

	cases := make([]reflect.SelectCase, 0, len(chans)+1)
	for _, nc := range chans {
		cases = append(cases, reflect.SelectCase{Dir: reflect.SelectRecv, Chan: reflect.ValueOf(nc.Ch)})
	}
	cases = append(cases, reflect.SelectCase{Dir: reflect.SelectRecv, Chan: reflect.ValueOf(stop)})

	chosen, recv, recvOK := reflect.Select(cases)
	if chosen == len(chans) || !recvOK {
		return "", TopicEnvelope{}, false
	}

	return chans[chosen].EntityID, recv.Interface().(TopicEnvelope), true
}
