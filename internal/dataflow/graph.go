package dataflow

import (
	"context"
	"log"
	"reflect"
	"sync"
	"time"
)

// EventKind distinguishes the three events a node's Handle may observe.
type EventKind int

const (
	EventInput EventKind = iota
	EventInputClosed
	EventStop
)

// Event wraps one occurrence delivered to a node. Message (including its
// param map) carries the originating message when Kind is EventInput.
type Event struct {
	Kind    EventKind
	PortID  string
	Message Message
}

// Emitter is how a node's Handle pushes outputs. A node may emit zero or more
// times per event observed.
type Emitter interface {
	Emit(portID string, m Message)
}

// Node is implemented by every dataflow component. Handle must not block for
// longer than one control period; heavy work belongs in a worker goroutine
// fed by the node's own inbox.
type Node interface {
	ID() string
	Handle(ctx context.Context, ev Event, out Emitter) error
}

// TickSource, if implemented by a Node, causes the graph to drive a "tick"
// input port at the given period.
type TickSource interface {
	TickPeriod() time.Duration
}

type edge struct {
	fromNode, fromPort string
	toNode, toPort     string
	mailbox            *Mailbox
}

// Graph wires nodes together by named ports and runs each node in its own
// goroutine. Delivery across an edge is FIFO and back-pressured by dropping,
// never by blocking the producer.
type Graph struct {
	mu    sync.Mutex
	nodes map[string]Node
	edges []*edge
	// outEdges[nodeID][portID] -> edges sourced from that output port
	outEdges map[string]map[string][]*edge
	// inEdges[nodeID][portID] -> the single edge feeding that input port
	inEdges map[string]map[string]*edge

	mailboxCapacity int
}

func NewGraph(mailboxCapacity int) *Graph {
	if mailboxCapacity <= 0 {
		mailboxCapacity = 16
	}
	return &Graph{
		nodes:           make(map[string]Node),
		outEdges:        make(map[string]map[string][]*edge),
		inEdges:         make(map[string]map[string]*edge),
		mailboxCapacity: mailboxCapacity,
	}
}

func (g *Graph) AddNode(n Node) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.nodes[n.ID()] = n
}

// Connect wires fromNode's output port to toNode's input port. Frame-sized
// payloads should pass a smaller capacity (the spec defaults to 4 vs 16).
func (g *Graph) Connect(fromNode, fromPort, toNode, toPort string, capacity int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if capacity <= 0 {
		capacity = g.mailboxCapacity
	}
	e := &edge{fromNode: fromNode, fromPort: fromPort, toNode: toNode, toPort: toPort, mailbox: NewMailbox(capacity)}
	g.edges = append(g.edges, e)

	if g.outEdges[fromNode] == nil {
		g.outEdges[fromNode] = make(map[string][]*edge)
	}
	g.outEdges[fromNode][fromPort] = append(g.outEdges[fromNode][fromPort], e)

	if g.inEdges[toNode] == nil {
		g.inEdges[toNode] = make(map[string]*edge)
	}
	g.inEdges[toNode][toPort] = e
}

type nodeEmitter struct {
	g      *Graph
	nodeID string
}

func (e nodeEmitter) Emit(portID string, m Message) {
	e.g.mu.Lock()
	edges := e.g.outEdges[e.nodeID][portID]
	e.g.mu.Unlock()
	for _, edge := range edges {
		edge.mailbox.Send(m)
	}
}

// Run starts every node goroutine and blocks until ctx is cancelled, then
// gives each node a bounded drain budget before returning.
func (g *Graph) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for id, n := range g.nodes {
		wg.Add(1)
		go func(id string, n Node) {
			defer wg.Done()
			g.runNode(ctx, id, n)
		}(id, n)
	}
	wg.Wait()
}

func (g *Graph) runNode(ctx context.Context, id string, n Node) {
	out := nodeEmitter{g: g, nodeID: id}

	var ticker *time.Ticker
	var tickC <-chan time.Time
	if ts, ok := n.(TickSource); ok {
		ticker = time.NewTicker(ts.TickPeriod())
		defer ticker.Stop()
		tickC = ticker.C
	}

	g.mu.Lock()
	ins := make(map[string]*edge, len(g.inEdges[id]))
	for portID, e := range g.inEdges[id] {
		ins[portID] = e
	}
	g.mu.Unlock()
	ports := make([]string, 0, len(ins))
	for portID := range ins {
		ports = append(ports, portID)
	}

	for {
		result, portID, m := selectReady(ctx, ins, ports, tickC)
		switch result {
		case selCtxDone:
			g.drain(id, n, out, ins, ports)
			return
		case selPortClosed:
			ev := Event{Kind: EventInputClosed, PortID: portID}
			if err := n.Handle(ctx, ev, out); err != nil {
				log.Printf("dataflow: node %q fatal on port %q: %v", id, portID, err)
				g.closeOutputs(id)
				return
			}
			delete(ins, portID)
			ports = removePort(ports, portID)
		default:
			ev := Event{Kind: EventInput, PortID: portID, Message: m}
			if err := n.Handle(ctx, ev, out); err != nil {
				log.Printf("dataflow: node %q fatal on port %q: %v", id, portID, err)
				g.closeOutputs(id)
				return
			}
		}
	}
}

func removePort(ports []string, portID string) []string {
	out := ports[:0]
	for _, p := range ports {
		if p != portID {
			out = append(out, p)
		}
	}
	return out
}

type selectResult int

const (
	selCtxDone selectResult = iota
	selTick
	selPort
	selPortClosed
)

// selectReady blocks until ctx is cancelled, a tick fires, an input edge has
// a message ready, or an input edge's mailbox has been closed by its
// producer's failure, using reflect.Select so an arbitrary, per-node port
// set can be waited on without one case per port hand-written.
func selectReady(ctx context.Context, ins map[string]*edge, ports []string, tickC <-chan time.Time) (result selectResult, portID string, m Message) {
	cases := make([]reflect.SelectCase, 0, len(ports)+2)
	cases = append(cases, reflect.SelectCase{Dir: reflect.SelectRecv, Chan: reflect.ValueOf(ctx.Done())})
	tickIdx := -1
	if tickC != nil {
		tickIdx = len(cases)
		cases = append(cases, reflect.SelectCase{Dir: reflect.SelectRecv, Chan: reflect.ValueOf(tickC)})
	}
	portBase := len(cases)
	for _, p := range ports {
		cases = append(cases, reflect.SelectCase{Dir: reflect.SelectRecv, Chan: reflect.ValueOf(ins[p].mailbox.Recv())})
	}

	chosen, recv, recvOK := reflect.Select(cases)
	if chosen == 0 {
		return selCtxDone, "", Message{}
	}
	if chosen == tickIdx {
		return selTick, "tick", Message{}
	}
	p := ports[chosen-portBase]
	if !recvOK {
		return selPortClosed, p, Message{}
	}
	return selPort, p, recv.Interface().(Message)
}

func (g *Graph) drain(id string, n Node, out Emitter, ins map[string]*edge, ports []string) {
	deadline := time.Now().Add(100 * time.Millisecond)
	for time.Now().Before(deadline) && len(ports) > 0 {
		cases := make([]reflect.SelectCase, len(ports))
		for i, p := range ports {
			cases[i] = reflect.SelectCase{Dir: reflect.SelectRecv, Chan: reflect.ValueOf(ins[p].mailbox.Recv())}
		}
		cases = append(cases, reflect.SelectCase{Dir: reflect.SelectRecv, Chan: reflect.ValueOf(time.After(time.Until(deadline)))})
		chosen, recv, _ := reflect.Select(cases)
		if chosen == len(ports) {
			break
		}
		_ = n.Handle(context.Background(), Event{Kind: EventInput, PortID: ports[chosen], Message: recv.Interface().(Message)}, out)
	}
	_ = n.Handle(context.Background(), Event{Kind: EventStop}, out)
}

// closeOutputs runs when a node's Handle returns a fatal error: the node is
// isolated and every mailbox it feeds is closed, so each subscriber
// observes EventInputClosed on that port the next time it polls.
func (g *Graph) closeOutputs(nodeID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, byPort := range g.outEdges[nodeID] {
		for _, e := range byPort {
			e.mailbox.Close()
		}
	}
}
