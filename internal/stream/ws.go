package stream

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"solana-launch-sniper/internal/decoder"
)

const wsHandshakeTimeout = 10 * time.Second

// WSFeed subscribes to pump program transactions over an enhanced websocket
// endpoint (Helius-style transactionSubscribe).
type WSFeed struct {
	url    string
	logger *logrus.Logger

	mu   sync.Mutex
	conn *websocket.Conn
}

func NewWSFeed(url string, logger *logrus.Logger) *WSFeed {
	if logger == nil {
		logger = logrus.New()
	}
	return &WSFeed{url: url, logger: logger}
}

func (f *WSFeed) Connect(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: wsHandshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, f.url, nil)
	if err != nil {
		return fmt.Errorf("websocket dial: %w", err)
	}

	subscribeMsg := map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  "transactionSubscribe",
		"params": []interface{}{
			map[string]interface{}{
				"accountInclude": []string{decoder.PumpProgramID},
				"failed":         false,
			},
			map[string]interface{}{
				"commitment":                     "processed",
				"encoding":                       "json",
				"transactionDetails":             "full",
				"showRewards":                    false,
				"maxSupportedTransactionVersion": 0,
			},
		},
	}

	if err := conn.WriteJSON(subscribeMsg); err != nil {
		conn.Close()
		return fmt.Errorf("subscribe: %w", err)
	}

	f.mu.Lock()
	if f.conn != nil {
		f.conn.Close()
	}
	f.conn = conn
	f.mu.Unlock()

	f.logger.WithField("url", redactURL(f.url)).Info("Feed connected")
	return nil
}

func (f *WSFeed) Read(ctx context.Context) ([]byte, error) {
	f.mu.Lock()
	conn := f.conn
	f.mu.Unlock()
	if conn == nil {
		return nil, fmt.Errorf("feed not connected")
	}

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetReadDeadline(deadline)
	}

	_, payload, err := conn.ReadMessage()
	if err != nil {
		return nil, fmt.Errorf("websocket read: %w", err)
	}
	return payload, nil
}

func (f *WSFeed) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.conn == nil {
		return nil
	}
	err := f.conn.Close()
	f.conn = nil
	return err
}

// redactURL strips the query string, which usually carries the API key.
func redactURL(url string) string {
	for i := 0; i < len(url); i++ {
		if url[i] == '?' {
			return url[:i]
		}
	}
	return url
}
