package stream

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var upgrader = websocket.Upgrader{}

// streamerStub upgrades the connection, records the auth frame, and feeds
// back canned events for every subscription it receives.
func streamerStub(t *testing.T, authSeen *string, events map[string][]eventFrame) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()

		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var frame struct {
				Type    string   `json:"type"`
				Token   string   `json:"token"`
				Channel Channel  `json:"channel"`
				Add     []string `json:"add"`
			}
			require.NoError(t, json.Unmarshal(data, &frame))
			switch frame.Type {
			case "AUTH":
				*authSeen = frame.Token
			case "SUBSCRIPTION":
				for _, sym := range frame.Add {
					for _, ev := range events[sym] {
						ev.Type = frame.Channel
						require.NoError(t, conn.WriteJSON(ev))
					}
				}
			}
		}
	}
}

func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func TestDXLinkSubscribeAndReceive(t *testing.T) {
	var authSeen string
	events := map[string][]eventFrame{
		".SPY240119C450": {{
			EventSymbol: ".SPY240119C450",
			BidPrice:    decimal.NewFromFloat(1.05),
			AskPrice:    decimal.NewFromFloat(1.15),
		}},
	}
	server := httptest.NewServer(streamerStub(t, &authSeen, events))
	defer server.Close()

	client, err := DialDXLink(context.Background(), wsURL(server), "streamer-token")
	require.NoError(t, err)
	defer client.Close()

	require.NoError(t, client.Subscribe(context.Background(), ChannelQuote, []string{".SPY240119C450"}))

	select {
	case ev := <-client.Events(ChannelQuote):
		assert.Equal(t, ".SPY240119C450", ev.Symbol)
		assert.True(t, ev.Bid.Equal(decimal.NewFromFloat(1.05)))
		assert.True(t, ev.Ask.Equal(decimal.NewFromFloat(1.15)))
	case <-time.After(2 * time.Second):
		t.Fatal("no quote event delivered")
	}
	assert.Equal(t, "streamer-token", authSeen)
}

func TestDXLinkGreeksChannel(t *testing.T) {
	var authSeen string
	events := map[string][]eventFrame{
		".SPY240119P440": {{
			EventSymbol: ".SPY240119P440",
			Delta:       decimal.NewFromFloat(-0.16),
		}},
	}
	server := httptest.NewServer(streamerStub(t, &authSeen, events))
	defer server.Close()

	client, err := DialDXLink(context.Background(), wsURL(server), "tok")
	require.NoError(t, err)
	defer client.Close()

	got, err := CollectWithTimeout(context.Background(), client, ChannelGreeks,
		[]string{".SPY240119P440"}, "", 2*time.Second)
	require.NoError(t, err)
	assert.True(t, got[".SPY240119P440"].Delta.Equal(decimal.NewFromFloat(-0.16)))
}

func TestDXLinkCloseIdempotent(t *testing.T) {
	var authSeen string
	server := httptest.NewServer(streamerStub(t, &authSeen, nil))
	defer server.Close()

	client, err := DialDXLink(context.Background(), wsURL(server), "tok")
	require.NoError(t, err)

	require.NoError(t, client.Close())
	assert.NoError(t, client.Close())

	err = client.Subscribe(context.Background(), ChannelQuote, []string{"X"})
	assert.Error(t, err)
}

func TestDXLinkDialFailure(t *testing.T) {
	_, err := DialDXLink(context.Background(), "ws://127.0.0.1:1", "tok")
	require.Error(t, err)
}
