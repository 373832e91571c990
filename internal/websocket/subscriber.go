package websocket

import (
	"context"
	"fmt"
	"log/slog"

	ws "github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

// Subscribe dials the feed at url and streams its messages until ctx is done
// or the connection drops. The returned channel is closed then.
func Subscribe(ctx context.Context, url string, logger *slog.Logger) (<-chan Message, error) {
	conn, _, err := ws.Dial(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial feed: %w", err)
	}

	out := make(chan Message, sendBufferSize)
	go func() {
		defer close(out)
		defer conn.CloseNow()

		for {
			var msg Message
			if err := wsjson.Read(ctx, conn, &msg); err != nil {
				if ctx.Err() == nil {
					logger.Debug("feed read ended", "error", err)
				}
				return
			}
			select {
			case out <- msg:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}
