package hub

import (
	"context"
	"encoding/json"
	"fmt"

	gws "github.com/gorilla/websocket"

	"github.com/teslashibe/go-rover/pkg/robot"
)

// Subscribe connects to a hub served at url (ws://host:port/ws/events) and
// calls fn for every event until ctx is done or the connection drops.
func Subscribe(ctx context.Context, url string, fn func(robot.Event)) error {
	conn, _, err := gws.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return fmt.Errorf("hub: dial %s: %w", url, err)
	}
	defer conn.Close()

	go func() {
		<-ctx.Done()
		conn.WriteMessage(gws.CloseMessage, gws.FormatCloseMessage(gws.CloseNormalClosure, ""))
		conn.Close()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil || gws.IsCloseError(err, gws.CloseNormalClosure) {
				return nil
			}
			return fmt.Errorf("hub: read: %w", err)
		}
		var e robot.Event
		if err := json.Unmarshal(data, &e); err != nil {
			continue
		}
		fn(e)
	}
}
