package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/vmihailenco/msgpack/v5"
)

// Common codec errors.
var (
	ErrInvalidMessage = errors.New("invalid message format")
	ErrUnknownCodec   = errors.New("unknown codec type")
)

// Codec handles message encoding/decoding.
type Codec interface {
	Encode(msg *Message) ([]byte, error)
	Decode(data []byte) (*Message, error)
	// Name identifies the codec in the ?codec= query parameter.
	Name() string
	ContentType() string
	// Binary reports whether frames should be sent as binary.
	Binary() bool
}

// JSONCodec implements Codec using JSON encoding.
type JSONCodec struct{}

// NewJSONCodec creates a new JSON codec.
func NewJSONCodec() *JSONCodec {
	return &JSONCodec{}
}

// Encode encodes a message to JSON.
func (c *JSONCodec) Encode(msg *Message) ([]byte, error) {
	return json.Marshal(msg)
}

// Decode decodes JSON to a message.
func (c *JSONCodec) Decode(data []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	if err := validate(&msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

func (c *JSONCodec) Name() string        { return "json" }
func (c *JSONCodec) ContentType() string { return "application/json" }
func (c *JSONCodec) Binary() bool        { return false }

// MsgPackCodec implements Codec using MessagePack encoding.
type MsgPackCodec struct{}

// NewMsgPackCodec creates a new MsgPack codec.
func NewMsgPackCodec() *MsgPackCodec {
	return &MsgPackCodec{}
}

// Encode encodes a message to MsgPack.
func (c *MsgPackCodec) Encode(msg *Message) ([]byte, error) {
	return msgpack.Marshal(msg)
}

// Decode decodes MsgPack to a message.
func (c *MsgPackCodec) Decode(data []byte) (*Message, error) {
	var msg Message
	if err := msgpack.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	if err := validate(&msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

func (c *MsgPackCodec) Name() string        { return "msgpack" }
func (c *MsgPackCodec) ContentType() string { return "application/msgpack" }
func (c *MsgPackCodec) Binary() bool        { return true }

func validate(msg *Message) error {
	if msg.Type > MsgHeartbeat {
		return fmt.Errorf("%w: type %d", ErrInvalidMessage, msg.Type)
	}
	if msg.Type == MsgEvent && msg.Event == "" {
		return fmt.Errorf("%w: event name missing", ErrInvalidMessage)
	}
	return nil
}

// CodecRegistry manages available codecs.
type CodecRegistry struct {
	codecs map[string]Codec
	def    Codec
	mu     sync.RWMutex
}

// NewCodecRegistry creates a registry with JSON (default) and MsgPack.
func NewCodecRegistry() *CodecRegistry {
	r := &CodecRegistry{codecs: make(map[string]Codec)}
	r.Register(NewJSONCodec())
	r.Register(NewMsgPackCodec())
	r.def = r.codecs["json"]
	return r
}

// Register adds a codec to the registry.
func (r *CodecRegistry) Register(codec Codec) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.codecs[codec.Name()] = codec
}

// Get retrieves a codec by name.
func (r *CodecRegistry) Get(name string) (Codec, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.codecs[name]
	return c, ok
}

// Lookup returns the named codec, the default for an empty name, and
// ErrUnknownCodec otherwise.
func (r *CodecRegistry) Lookup(name string) (Codec, error) {
	if name == "" {
		return r.Default(), nil
	}
	if c, ok := r.Get(name); ok {
		return c, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownCodec, name)
}

// Default returns the default codec.
func (r *CodecRegistry) Default() Codec {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.def
}

// SetDefault sets the default codec.
func (r *CodecRegistry) SetDefault(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.codecs[name]
	if !ok {
		return ErrUnknownCodec
	}
	r.def = c
	return nil
}

// DefaultCodecRegistry is the global codec registry.
var DefaultCodecRegistry = NewCodecRegistry()
