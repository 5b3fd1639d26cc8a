package stream

import "context"

// Feed is a reconnectable source of raw feed messages. Connect establishes a
// session and subscription; Read blocks for the next message of that
// session. After a Read error the driver calls Connect again.
type Feed interface {
	Connect(ctx context.Context) error
	Read(ctx context.Context) ([]byte, error)
	Close() error
}
