package binance

import (
	"testing"

	"coinwatch/types"
)

func TestURLEmbedsLowercaseMiniTickerStreams(t *testing.T) {
	w := NewWire("")
	url := w.URL([]string{"BTCUSDT", "ETHUSDT"})
	want := DefaultWSBaseURL + "btcusdt@miniTicker/ethusdt@miniTicker"
	if url != want {
		t.Fatalf("url = %s, want %s", url, want)
	}
}

func TestParseTickerFrame(t *testing.T) {
	w := NewWire("")
	frame := []byte(`{"stream":"btcusdt@miniTicker","data":{"e":"24hrMiniTicker","s":"BTCUSDT","c":"50000.00","o":"49000.00"}}`)
	msg, err := w.Parse(frame)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if msg.Update == nil {
		t.Fatal("expected a price update")
	}
	if msg.Update.Source != types.SourceBinance || msg.Update.Symbol != "BTCUSDT" || msg.Update.Price != "50000.00" {
		t.Fatalf("update = %+v", msg.Update)
	}
}

func TestParseFrameWithoutDataIsIgnored(t *testing.T) {
	w := NewWire("")
	msg, err := w.Parse([]byte(`{"result":null,"id":1}`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if msg.Update != nil || msg.Err != "" {
		t.Fatalf("control frame must be ignored, got %+v", msg)
	}
}

func TestParseMalformedFrameErrors(t *testing.T) {
	w := NewWire("")
	if _, err := w.Parse([]byte(`{not json`)); err == nil {
		t.Fatal("expected parse error")
	}
}
