package realtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/go-stomp/stomp/v3"
	"github.com/gorilla/websocket"

	"parkadmin/internal/gateway"
)

var errStreamClosed = errors.New("realtime: subscription closed")

// Handler receives decoded events. It is called from one goroutine per
// topic, so events of one topic arrive in order
type Handler func(Event)

// ChannelConfig holds configuration for a Channel
type ChannelConfig struct {
	// BaseURL is the backend root; http(s) is mapped to ws(s)
	BaseURL string
	// Path is the STOMP WebSocket endpoint, e.g. "/app-data-service/ws/websocket"
	Path           string
	ReconnectDelay time.Duration
	Heartbeat      time.Duration
	// Dialer defaults to websocket.DefaultDialer
	Dialer *websocket.Dialer
	Logger *slog.Logger
}

// Channel is one persistent push connection authenticated with a session's
// bearer token
type Channel struct {
	cfg     ChannelConfig
	tokens  gateway.TokenSource
	handler Handler
	now     func() time.Time
}

// NewChannel creates a channel. Nothing is dialled until Run
func NewChannel(cfg ChannelConfig, tokens gateway.TokenSource, handler Handler) (*Channel, error) {
	if _, err := websocketURL(cfg.BaseURL, cfg.Path, ""); err != nil {
		return nil, err
	}
	if handler == nil {
		return nil, fmt.Errorf("realtime: handler is required")
	}
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = 5 * time.Second
	}
	if cfg.Dialer == nil {
		cfg.Dialer = websocket.DefaultDialer
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Channel{cfg: cfg, tokens: tokens, handler: handler, now: time.Now}, nil
}

// Run keeps the channel connected until ctx is cancelled, waiting
// ReconnectDelay between attempts. It returns nil on cancellation and
// ErrUnauthenticated when the session has no token to connect with
func (c *Channel) Run(ctx context.Context) error {
	for {
		err := c.session(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if errors.Is(err, gateway.ErrUnauthenticated) {
			return err
		}

		c.cfg.Logger.WarnContext(ctx, "realtime connection lost",
			"error", err,
			"retry_in", c.cfg.ReconnectDelay,
		)

		timer := time.NewTimer(c.cfg.ReconnectDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}
	}
}

// session runs one connection until it fails or ctx ends
func (c *Channel) session(ctx context.Context) error {
	token := ""
	if c.tokens != nil {
		token = c.tokens.Token()
	}
	if token == "" {
		return gateway.ErrUnauthenticated
	}

	endpoint, err := websocketURL(c.cfg.BaseURL, c.cfg.Path, token)
	if err != nil {
		return err
	}

	ws, _, err := c.cfg.Dialer.DialContext(ctx, endpoint.String(), nil)
	if err != nil {
		safe := *endpoint
		safe.RawQuery = ""
		return fmt.Errorf("realtime: dial %s: %w", safe.String(), err)
	}
	conn := newWSConn(ws)
	defer conn.Close()
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	client, err := stomp.Connect(conn,
		stomp.ConnOpt.AcceptVersion(stomp.V12),
		stomp.ConnOpt.Host(endpoint.Hostname()),
		stomp.ConnOpt.HeartBeat(c.cfg.Heartbeat, c.cfg.Heartbeat),
	)
	if err != nil {
		return fmt.Errorf("realtime: stomp connect: %w", err)
	}

	errc := make(chan error, len(Topics))
	for _, topic := range Topics {
		sub, err := client.Subscribe(topic.Destination, stomp.AckAuto)
		if err != nil {
			return fmt.Errorf("realtime: subscribe %s: %w", topic.Destination, err)
		}
		go c.consume(ctx, topic, sub, errc)
	}

	c.cfg.Logger.InfoContext(ctx, "realtime connected", "topics", len(Topics))

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-errc:
		return err
	}
}

func (c *Channel) consume(ctx context.Context, topic Topic, sub *stomp.Subscription, errc chan<- error) {
	for msg := range sub.C {
		if msg.Err != nil {
			errc <- msg.Err
			return
		}
		event, err := decodeEvent(topic, msg.Body, c.now())
		if err != nil {
			c.cfg.Logger.WarnContext(ctx, "skipping realtime message", "topic", topic.Destination, "error", err)
			continue
		}
		c.handler(event)
	}
	errc <- errStreamClosed
}

// websocketURL maps the backend root onto the STOMP endpoint, carrying the
// token as a query parameter
func websocketURL(base, path, token string) (*url.URL, error) {
	u, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("realtime: invalid base URL %q: %w", base, err)
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return nil, fmt.Errorf("realtime: unsupported scheme %q", u.Scheme)
	}

	u.Path = strings.TrimRight(u.Path, "/") + path
	if token != "" {
		u.RawQuery = url.Values{"token": {token}}.Encode()
	}
	return u, nil
}
