package stream

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rickgao/lotwatch/internal/events"
)

// FollowConfig holds the follower's reconnect policy.
type FollowConfig struct {
	URL              string
	HandshakeTimeout time.Duration // default: 10s
	ReconnectBase    time.Duration // default: 1s
	ReconnectMax     time.Duration // default: 60s
}

func (c *FollowConfig) applyDefaults() {
	if c.HandshakeTimeout == 0 {
		c.HandshakeTimeout = 10 * time.Second
	}
	if c.ReconnectBase == 0 {
		c.ReconnectBase = time.Second
	}
	if c.ReconnectMax == 0 {
		c.ReconnectMax = 60 * time.Second
	}
}

// Follow streams closings from a remote /ws/closings endpoint into handle
// until ctx is cancelled, reconnecting with exponential backoff. Undecodable
// messages are logged and skipped.
func Follow(ctx context.Context, cfg FollowConfig, handle func(events.Closing), logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	cfg.applyDefaults()

	wait := cfg.ReconnectBase
	for {
		err := followOnce(ctx, cfg, handle, logger)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err == nil {
			// Connection was healthy; start the next backoff from scratch.
			wait = cfg.ReconnectBase
		}
		logger.Warn("stream disconnected", "url", cfg.URL, "error", err, "retry_in", wait)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}

		wait *= 2
		if wait > cfg.ReconnectMax {
			wait = cfg.ReconnectMax
		}
	}
}

var errClosedByServer = errors.New("closed by server")

// followOnce returns nil if at least one message was received before the
// connection dropped.
func followOnce(ctx context.Context, cfg FollowConfig, handle func(events.Closing), logger *slog.Logger) error {
	dialer := websocket.Dialer{HandshakeTimeout: cfg.HandshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, cfg.URL, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	// Unblock ReadMessage when ctx is cancelled.
	stop := context.AfterFunc(ctx, func() {
		conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)
		conn.Close()
	})
	defer stop()

	conn.SetPingHandler(func(data string) error {
		return conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(time.Second))
	})

	logger.Debug("stream connected", "url", cfg.URL)

	received := false
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				err = errClosedByServer
			}
			if received {
				logger.Debug("stream read ended", "error", err)
				return nil
			}
			return err
		}
		received = true

		var c events.Closing
		if err := json.Unmarshal(data, &c); err != nil {
			logger.Warn("undecodable stream message", "error", err)
			continue
		}
		handle(c)
	}
}
