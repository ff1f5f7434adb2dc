package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

const eventBuffer = 256

// DXLinkClient is a Feed over a DXLink-style websocket. The connection is
// scoped to one command invocation: dial, subscribe, drain, Close.
type DXLinkClient struct {
	conn *websocket.Conn

	writeMu sync.Mutex
	closeMu sync.Once
	done    chan struct{}

	channels map[Channel]chan Event
}

type authFrame struct {
	Type  string `json:"type"`
	Token string `json:"token"`
}

type subscriptionFrame struct {
	Type    string   `json:"type"`
	Channel Channel  `json:"channel"`
	Add     []string `json:"add"`
}

type eventFrame struct {
	Type        Channel         `json:"type"`
	EventSymbol string          `json:"eventSymbol"`
	BidPrice    decimal.Decimal `json:"bidPrice"`
	AskPrice    decimal.Decimal `json:"askPrice"`
	Delta       decimal.Decimal `json:"delta"`
}

// DialDXLink connects to the streamer, authenticates with the session's
// streamer token, and starts the read pump.
func DialDXLink(ctx context.Context, url, token string) (*DXLinkClient, error) {
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial streamer %s: %w", url, err)
	}
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}

	c := &DXLinkClient{
		conn: conn,
		done: make(chan struct{}),
		channels: map[Channel]chan Event{
			ChannelQuote:  make(chan Event, eventBuffer),
			ChannelGreeks: make(chan Event, eventBuffer),
		},
	}

	if err := c.writeJSON(authFrame{Type: "AUTH", Token: token}); err != nil {
		conn.Close()
		return nil, fmt.Errorf("streamer auth: %w", err)
	}

	go c.readPump()
	return c, nil
}

// Subscribe adds symbols to a channel's subscription. Safe to call from
// multiple goroutines.
func (c *DXLinkClient) Subscribe(ctx context.Context, channel Channel, symbols []string) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-c.done:
		return fmt.Errorf("streamer connection closed")
	default:
	}
	log.Debugf("streamer: subscribing %d %s symbols", len(symbols), channel)
	return c.writeJSON(subscriptionFrame{Type: "SUBSCRIPTION", Channel: channel, Add: symbols})
}

// Events returns the delivery channel for one event type. The channel is
// closed when the connection shuts down.
func (c *DXLinkClient) Events(channel Channel) <-chan Event {
	return c.channels[channel]
}

// Close tears down the websocket. Idempotent.
func (c *DXLinkClient) Close() error {
	var err error
	c.closeMu.Do(func() {
		close(c.done)
		err = c.conn.Close()
	})
	return err
}

func (c *DXLinkClient) writeJSON(v interface{}) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteJSON(v)
}

func (c *DXLinkClient) readPump() {
	defer func() {
		for _, ch := range c.channels {
			close(ch)
		}
	}()
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			select {
			case <-c.done:
			default:
				log.Errorf("streamer: read: %v", err)
			}
			return
		}
		var frame eventFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			log.Debugf("streamer: skipping unparseable frame: %v", err)
			continue
		}
		ch, ok := c.channels[frame.Type]
		if !ok {
			continue
		}
		ev := Event{
			Symbol: frame.EventSymbol,
			Bid:    frame.BidPrice,
			Ask:    frame.AskPrice,
			Delta:  frame.Delta,
		}
		select {
		case ch <- ev:
		case <-c.done:
			return
		default:
			// Slow consumer: drop the oldest reading in favor of the
			// newest, aggregation is last-wins anyway.
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- ev:
			default:
			}
		}
	}
}
