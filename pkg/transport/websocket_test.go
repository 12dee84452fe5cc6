package transport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gabrielmiguelok/formwizard/pkg/protocol"
)

func TestIsOriginAllowed(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		origin  string
		host    string
		allowed bool
	}{
		{"same-origin allowed", Config{}, "https://example.com", "example.com", true},
		{"no origin allowed", Config{}, "", "example.com", true},
		{"explicit origin allowed", Config{AllowedOrigins: []string{"https://allowed.com"}}, "https://allowed.com", "example.com", true},
		{"origin not in list blocked", Config{AllowedOrigins: []string{"https://allowed.com"}}, "https://attacker.com", "example.com", false},
		{"wildcard allows all", Config{AllowedOrigins: []string{"*"}}, "https://any-site.com", "example.com", true},
		{"insecure dev mode allows all", Config{InsecureDevMode: true}, "https://attacker.com", "example.com", true},
		{"cross-origin blocked by default", Config{}, "https://other-site.com", "example.com", false},
		{"garbage origin blocked", Config{}, "::not a url", "example.com", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.allowed, isOriginAllowed(tt.cfg, tt.origin, tt.host))
		})
	}
}

func TestOriginPatterns(t *testing.T) {
	patterns, skip := originPatterns(Config{AllowedOrigins: []string{"https://allowed.com", "*.example.org"}})
	assert.False(t, skip)
	assert.Equal(t, []string{"allowed.com", "*.example.org"}, patterns)

	_, skip = originPatterns(Config{AllowedOrigins: []string{"*"}})
	assert.True(t, skip)
}

func TestAccept_RejectsInvalidOrigin(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/live", nil)
	req.Header.Set("Origin", "https://attacker.com")
	req.Host = "example.com"
	rec := httptest.NewRecorder()

	_, err := Accept(rec, req, Config{AllowedOrigins: []string{"https://allowed.com"}}, protocol.NewJSONCodec())
	assert.ErrorIs(t, err, ErrOriginNotAllowed)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func newEchoServer(t *testing.T, codecs *protocol.CodecRegistry) (*httptest.Server, chan error) {
	t.Helper()
	router := protocol.NewRouter()
	router.OnFunc(protocol.EventInput, func(ctx context.Context, msg *protocol.Message) (*protocol.Message, error) {
		return protocol.RenderMessage(msg.Ref, strings.ToUpper(msg.Get("value"))), nil
	})

	done := make(chan error, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		codec, err := codecs.Lookup(r.URL.Query().Get("codec"))
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		conn, err := Accept(w, r, Config{PingInterval: 10 * time.Millisecond}, codec)
		if err != nil {
			done <- err
			return
		}
		done <- conn.Serve(r.Context(), router)
	}))
	t.Cleanup(srv.Close)
	return srv, done
}

func dial(t *testing.T, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	ws, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http")+"/live"+query, nil)
	require.NoError(t, err)
	return ws
}

func TestConn_ServeRoundTrip(t *testing.T) {
	codecs := protocol.NewCodecRegistry()
	srv, done := newEchoServer(t, codecs)

	for _, name := range []string{"json", "msgpack"} {
		t.Run(name, func(t *testing.T) {
			codec, err := codecs.Lookup(name)
			require.NoError(t, err)
			ws := dial(t, srv, "?codec="+name)

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			send := func(msg *protocol.Message) *protocol.Message {
				data, err := codec.Encode(msg)
				require.NoError(t, err)
				typ := websocket.MessageText
				if codec.Binary() {
					typ = websocket.MessageBinary
				}
				require.NoError(t, ws.Write(ctx, typ, data))
				_, reply, err := ws.Read(ctx)
				require.NoError(t, err)
				out, err := codec.Decode(reply)
				require.NoError(t, err)
				return out
			}

			reply := send(protocol.EventMessage("1", protocol.EventInput, map[string]string{"value": "ada"}))
			assert.Equal(t, protocol.MsgRender, reply.Type)
			assert.Equal(t, "ADA", reply.Get("html"))

			reply = send(protocol.EventMessage("2", "unknown", nil))
			assert.Equal(t, protocol.MsgError, reply.Type)
			assert.Equal(t, "2", reply.Ref)

			reply = send(protocol.HeartbeatMessage("3"))
			assert.Equal(t, protocol.MsgHeartbeat, reply.Type)

			require.NoError(t, ws.Close(websocket.StatusNormalClosure, "bye"))
			select {
			case err := <-done:
				assert.NoError(t, err)
			case <-time.After(5 * time.Second):
				t.Fatal("server did not return after client close")
			}
		})
	}
}

func TestConn_InvalidFrameKeepsConnection(t *testing.T) {
	srv, done := newEchoServer(t, protocol.NewCodecRegistry())
	ws := dial(t, srv, "")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, ws.Write(ctx, websocket.MessageText, []byte("{not json")))
	_, data, err := ws.Read(ctx)
	require.NoError(t, err)
	assert.Contains(t, string(data), "invalid message")

	require.NoError(t, ws.Write(ctx, websocket.MessageText, []byte(`{"t":0,"ref":"9","event":"input","payload":{"value":"ok"}}`)))
	_, data, err = ws.Read(ctx)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"OK"`)

	require.NoError(t, ws.Close(websocket.StatusNormalClosure, ""))
	<-done
}
