package transport

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/coder/websocket"
	"golang.org/x/sync/errgroup"

	"github.com/gabrielmiguelok/formwizard/pkg/logging"
	"github.com/gabrielmiguelok/formwizard/pkg/protocol"
)

// isOriginAllowed checks if the origin may open a live channel.
func isOriginAllowed(cfg Config, origin, requestHost string) bool {
	if cfg.InsecureDevMode {
		return true
	}
	// No Origin header: not a browser cross-site request.
	if origin == "" {
		return true
	}

	originURL, err := url.Parse(origin)
	if err != nil || originURL.Host == "" {
		return false
	}
	if originURL.Host == requestHost {
		return true
	}

	for _, allowed := range cfg.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
		if allowedURL, err := url.Parse(allowed); err == nil && allowedURL.Host == originURL.Host {
			return true
		}
	}
	return false
}

// originPatterns converts allowed origins into coder/websocket host patterns.
func originPatterns(cfg Config) (patterns []string, skipVerify bool) {
	if cfg.InsecureDevMode {
		return nil, true
	}
	for _, allowed := range cfg.AllowedOrigins {
		if allowed == "*" {
			return nil, true
		}
		if u, err := url.Parse(allowed); err == nil && u.Host != "" {
			patterns = append(patterns, u.Host)
		} else {
			patterns = append(patterns, allowed)
		}
	}
	return patterns, false
}

// Conn is a server-side live channel bound to one codec.
type Conn struct {
	ws     *websocket.Conn
	codec  protocol.Codec
	cfg    Config
	logger logging.Logger
	wmu    sync.Mutex
}

// Accept validates the Origin header and upgrades the request.
func Accept(w http.ResponseWriter, r *http.Request, cfg Config, codec protocol.Codec) (*Conn, error) {
	cfg = cfg.withDefaults()

	if !isOriginAllowed(cfg, r.Header.Get("Origin"), r.Host) {
		http.Error(w, "Forbidden: Origin not allowed", http.StatusForbidden)
		return nil, ErrOriginNotAllowed
	}

	patterns, skip := originPatterns(cfg)
	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns:     patterns,
		InsecureSkipVerify: skip,
	})
	if err != nil {
		return nil, fmt.Errorf("accept websocket: %w", err)
	}
	ws.SetReadLimit(cfg.MaxMessageSize)

	return &Conn{ws: ws, codec: codec, cfg: cfg, logger: logging.L(r.Context())}, nil
}

// Codec returns the negotiated codec.
func (c *Conn) Codec() protocol.Codec {
	return c.codec
}

// Read blocks for the next message. Undecodable frames return
// protocol.ErrInvalidMessage and leave the connection usable.
func (c *Conn) Read(ctx context.Context) (*protocol.Message, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.IdleTimeout)
	defer cancel()

	_, data, err := c.ws.Read(ctx)
	if err != nil {
		if websocket.CloseStatus(err) != -1 {
			return nil, ErrConnectionClosed
		}
		return nil, fmt.Errorf("read frame: %w", err)
	}
	return c.codec.Decode(data)
}

// Write sends a message. Safe for concurrent use.
func (c *Conn) Write(ctx context.Context, msg *protocol.Message) error {
	data, err := c.codec.Encode(msg)
	if err != nil {
		return fmt.Errorf("encode %s: %w", msg.Type, err)
	}
	typ := websocket.MessageText
	if c.codec.Binary() {
		typ = websocket.MessageBinary
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.WriteTimeout)
	defer cancel()

	c.wmu.Lock()
	defer c.wmu.Unlock()
	if err := c.ws.Write(ctx, typ, data); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}

// Close closes the connection with a normal closure.
func (c *Conn) Close(reason string) error {
	return c.ws.Close(websocket.StatusNormalClosure, reason)
}

// Serve answers every inbound message with handler's reply until the client
// disconnects or ctx ends. Handler errors and undecodable frames are
// answered with an error message; the connection stays open.
func (c *Conn) Serve(ctx context.Context, handler protocol.MessageHandler) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		for {
			msg, err := c.Read(ctx)
			switch {
			case errors.Is(err, ErrConnectionClosed):
				return ErrConnectionClosed
			case errors.Is(err, protocol.ErrInvalidMessage):
				c.logger.Debug("dropping invalid frame", logging.Err(err))
				if werr := c.Write(ctx, protocol.ErrorMessage("", "invalid message")); werr != nil {
					return werr
				}
				continue
			case err != nil:
				return err
			}

			reply, err := handler.HandleMessage(ctx, msg)
			if err != nil {
				reply = protocol.ErrorMessage(msg.Ref, err.Error())
			}
			if reply == nil {
				continue
			}
			if err := c.Write(ctx, reply); err != nil {
				return err
			}
		}
	})

	if c.cfg.PingInterval > 0 {
		g.Go(func() error {
			ticker := time.NewTicker(c.cfg.PingInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return nil
				case <-ticker.C:
					pingCtx, cancel := context.WithTimeout(ctx, c.cfg.WriteTimeout)
					err := c.ws.Ping(pingCtx)
					cancel()
					if err != nil {
						// The read loop observes the broken connection.
						c.logger.Debug("ping failed", logging.Err(err))
						return nil
					}
				}
			}
		})
	}

	err := g.Wait()
	if errors.Is(err, ErrConnectionClosed) {
		return nil
	}
	return err
}
