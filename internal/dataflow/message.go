package dataflow

import "github.com/google/uuid"

// PayloadKind is the closed set of message payload shapes a node can emit or
// consume. Dispatch on Kind rather than type assertions, per the tagged-union
// doctrine used throughout this module.
type PayloadKind int

const (
	PayloadBytes PayloadKind = iota
	PayloadFloats
	PayloadImage
	PayloadJSON
)

// Param is a scalar parameter value carried alongside a payload, mirroring
// the original dataflow framework's metadata parameter map (used e.g. to tag
// binary video/audio payloads with their source entity_id without touching
// the payload bytes).
type Param struct {
	Str   string
	Int   int64
	Float float64
	Bool  bool
}

func StrParam(s string) Param   { return Param{Str: s} }
func IntParam(i int64) Param    { return Param{Int: i} }
func FloatParam(f float64) Param { return Param{Float: f} }

// Message is the unit of data carried across an edge. Exactly one of the
// payload fields is meaningful, selected by Kind.
type Message struct {
	ID     string
	Kind   PayloadKind
	Bytes  []byte
	Floats []float32
	Image  *ImagePayload
	JSON   any

	Params map[string]Param
}

type ImagePayload struct {
	Width, Height uint32
	Encoding      string
	Pixels        []byte
}

func NewMessage(kind PayloadKind) Message {
	return Message{ID: uuid.NewString(), Kind: kind, Params: make(map[string]Param)}
}

func BytesMessage(b []byte) Message {
	m := NewMessage(PayloadBytes)
	m.Bytes = b
	return m
}

func FloatsMessage(f []float32) Message {
	m := NewMessage(PayloadFloats)
	m.Floats = f
	return m
}

func ImageMessage(img ImagePayload) Message {
	m := NewMessage(PayloadImage)
	m.Image = &img
	return m
}

func JSONMessage(v any) Message {
	m := NewMessage(PayloadJSON)
	m.JSON = v
	return m
}

func (m Message) WithParam(key string, p Param) Message {
	m.Params[key] = p
	return m
}
