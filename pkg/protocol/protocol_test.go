package protocol

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gabrielmiguelok/formwizard/pkg/logging"
)

func TestCodecs(t *testing.T) {
	msg := EventMessage("7", EventInput, map[string]string{"name": "firstName", "value": "Ada"})

	for _, codec := range []Codec{NewJSONCodec(), NewMsgPackCodec()} {
		t.Run(codec.Name(), func(t *testing.T) {
			data, err := codec.Encode(msg)
			require.NoError(t, err)

			got, err := codec.Decode(data)
			require.NoError(t, err)
			if diff := cmp.Diff(msg, got); diff != "" {
				t.Errorf("decode mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestJSONCodec_WireShape(t *testing.T) {
	data, err := NewJSONCodec().Encode(RenderMessage("3", "<p>hi</p>"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"t":1,"ref":"3","event":"render","payload":{"html":"<p>hi</p>"}}`, string(data))
}

func TestCodecs_RejectInvalid(t *testing.T) {
	c := NewJSONCodec()
	for _, in := range []string{``, `{malformed`, `[]`, `{"t":0}`, `{"t":9,"event":"x"}`} {
		_, err := c.Decode([]byte(in))
		assert.ErrorIs(t, err, ErrInvalidMessage, in)
	}

	_, err := NewMsgPackCodec().Decode([]byte{0xc1})
	assert.ErrorIs(t, err, ErrInvalidMessage)
}

func TestCodecRegistry(t *testing.T) {
	r := NewCodecRegistry()

	c, err := r.Lookup("")
	require.NoError(t, err)
	assert.Equal(t, "json", c.Name())

	c, err = r.Lookup("msgpack")
	require.NoError(t, err)
	assert.True(t, c.Binary())

	_, err = r.Lookup("phoenix")
	assert.ErrorIs(t, err, ErrUnknownCodec)

	require.NoError(t, r.SetDefault("msgpack"))
	assert.Equal(t, "msgpack", r.Default().Name())
	assert.ErrorIs(t, r.SetDefault("xml"), ErrUnknownCodec)
}

func TestMessage_Payload(t *testing.T) {
	msg := EventMessage("1", EventNext, map[string]string{"target": "3"})
	assert.Equal(t, 3, msg.Int("target"))
	assert.Equal(t, 0, msg.Int("missing"))
	assert.Equal(t, "", (&Message{}).Get("x"))
	assert.Equal(t, "render", MsgRender.String())
}

func TestRouter(t *testing.T) {
	r := NewRouter()
	r.Use(RecoveryMiddleware(nil))
	r.Use(LoggingMiddleware(logging.NopLogger{}))

	r.OnFunc(EventNext, func(ctx context.Context, msg *Message) (*Message, error) {
		return RenderMessage(msg.Ref, "step"), nil
	})
	r.OnFunc(EventBlur, func(ctx context.Context, msg *Message) (*Message, error) {
		panic("boom")
	})

	reply, err := r.HandleMessage(context.Background(), EventMessage("1", EventNext, nil))
	require.NoError(t, err)
	assert.Equal(t, "step", reply.Get("html"))
	assert.Equal(t, "1", reply.Ref)

	_, err = r.HandleMessage(context.Background(), EventMessage("2", EventBlur, nil))
	assert.ErrorIs(t, err, ErrHandlerPanic)

	_, err = r.HandleMessage(context.Background(), EventMessage("3", "dance", nil))
	assert.ErrorIs(t, err, ErrHandlerNotFound)

	reply, err = r.HandleMessage(context.Background(), HeartbeatMessage("4"))
	require.NoError(t, err)
	assert.Equal(t, MsgHeartbeat, reply.Type)
}

func FuzzJSONDecode(f *testing.F) {
	f.Add([]byte(`{"t":0,"ref":"1","event":"next","payload":{"target":"2"}}`))
	f.Add([]byte(`{"t":3}`))
	f.Add([]byte(`{}`))
	f.Add([]byte(`null`))
	f.Add([]byte(`{"payload":{"a":1}}`))

	codec := NewJSONCodec()
	f.Fuzz(func(t *testing.T, data []byte) {
		msg, err := codec.Decode(data)
		if err != nil {
			return
		}
		out, err := codec.Encode(msg)
		if err != nil {
			t.Fatalf("re-encode failed: %v", err)
		}
		again, err := codec.Decode(out)
		if err != nil {
			t.Fatalf("decode of re-encoded message failed: %v", err)
		}
		if diff := cmp.Diff(msg, again, cmpopts.EquateEmpty()); diff != "" {
			t.Fatalf("round trip mismatch:\n%s", diff)
		}
	})
}
