package coinbase

import (
	"errors"
	"testing"

	"coinwatch/types"
)

type recordingConn struct {
	writes  []subscribeRequest
	failAll bool
}

func (c *recordingConn) ReadMessage() ([]byte, error) { return nil, errors.New("not used") }

func (c *recordingConn) WriteJSON(v interface{}) error {
	if c.failAll {
		return errors.New("send rejected")
	}
	c.writes = append(c.writes, v.(subscribeRequest))
	return nil
}

func (c *recordingConn) Ping() error  { return nil }
func (c *recordingConn) Close() error { return nil }

func TestAfterOpenSubscribesTickerChannel(t *testing.T) {
	w := NewWire("")
	conn := &recordingConn{}
	if err := w.AfterOpen(conn, []string{"BTC-USD", "ETH-USD"}); err != nil {
		t.Fatalf("after open: %v", err)
	}
	if len(conn.writes) != 1 {
		t.Fatalf("expected one subscribe message, got %d", len(conn.writes))
	}
	req := conn.writes[0]
	if req.Type != "subscribe" || len(req.ProductIDs) != 2 || req.Channels[0] != "ticker" {
		t.Fatalf("subscribe request = %+v", req)
	}
}

func TestResubscribeSendsDiffOnly(t *testing.T) {
	w := NewWire("")
	conn := &recordingConn{}
	old := []string{"BTC-USD", "ETH-USD"}
	new := []string{"ETH-USD", "SOL-USD"}
	if err := w.Resubscribe(conn, old, new); err != nil {
		t.Fatalf("resubscribe: %v", err)
	}
	if len(conn.writes) != 2 {
		t.Fatalf("expected unsubscribe+subscribe, got %d messages", len(conn.writes))
	}
	unsub, sub := conn.writes[0], conn.writes[1]
	if unsub.Type != "unsubscribe" || len(unsub.ProductIDs) != 1 || unsub.ProductIDs[0] != "BTC-USD" {
		t.Fatalf("unsubscribe = %+v", unsub)
	}
	if sub.Type != "subscribe" || len(sub.ProductIDs) != 1 || sub.ProductIDs[0] != "SOL-USD" {
		t.Fatalf("subscribe = %+v", sub)
	}
}

func TestRejectedSendSurfacesAsError(t *testing.T) {
	w := NewWire("")
	conn := &recordingConn{failAll: true}
	if err := w.AfterOpen(conn, []string{"BTC-USD"}); err == nil {
		t.Fatal("rejected send must return an error")
	}
}

func TestParseTickerFrame(t *testing.T) {
	w := NewWire("")
	frame := []byte(`{"type":"ticker","sequence":123,"product_id":"BTC-USD","price":"50010.50","best_bid":"50010.00"}`)
	msg, err := w.Parse(frame)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if msg.Update == nil {
		t.Fatal("expected a price update")
	}
	if msg.Update.Source != types.SourceCoinbase || msg.Update.Symbol != "BTC-USD" || msg.Update.Price != "50010.50" {
		t.Fatalf("update = %+v", msg.Update)
	}
}

func TestParseTickerWithoutPriceIgnored(t *testing.T) {
	w := NewWire("")
	msg, err := w.Parse([]byte(`{"type":"ticker","product_id":"BTC-USD"}`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if msg.Update != nil {
		t.Fatal("priceless ticker must be ignored")
	}
}

func TestParseErrorFrame(t *testing.T) {
	w := NewWire("")
	msg, err := w.Parse([]byte(`{"type":"error","message":"Failed to subscribe"}`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if msg.Err != "Failed to subscribe" {
		t.Fatalf("error frame: %+v", msg)
	}
}

func TestParseSubscriptionsAndUnknownFramesIgnored(t *testing.T) {
	w := NewWire("")
	for _, frame := range []string{
		`{"type":"subscriptions","channels":[]}`,
		`{"type":"heartbeat"}`,
	} {
		msg, err := w.Parse([]byte(frame))
		if err != nil {
			t.Fatalf("parse %s: %v", frame, err)
		}
		if msg.Update != nil || msg.Err != "" {
			t.Fatalf("frame %s must be ignored", frame)
		}
	}
}
