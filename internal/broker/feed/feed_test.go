package feed

import (
	"testing"

	"martingale-lab/internal/domain"
)

func TestParseTradeMessage(t *testing.T) {
	tests := []struct {
		name    string
		message string
		want    domain.Tick
		wantOK  bool
	}{
		{
			name:    "valid trade",
			message: `{"stream":"btcusdt@trade","data":{"e":"trade","s":"BTCUSDT","p":"42000.50","T":1700000000123}}`,
			want:    domain.Tick{Symbol: "BTCUSDT", Price: 42000.50, TimestampMs: 1700000000123},
			wantOK:  true,
		},
		{
			name:    "non trade event",
			message: `{"stream":"btcusdt@depth","data":{"e":"depthUpdate","s":"BTCUSDT"}}`,
			wantOK:  false,
		},
		{
			name:    "bad price",
			message: `{"stream":"btcusdt@trade","data":{"e":"trade","s":"BTCUSDT","p":"nan?","T":1}}`,
			wantOK:  false,
		},
		{
			name:    "zero price",
			message: `{"stream":"btcusdt@trade","data":{"e":"trade","s":"BTCUSDT","p":"0","T":1}}`,
			wantOK:  false,
		},
		{
			name:    "not json",
			message: `ping`,
			wantOK:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := parseTradeMessage([]byte(tt.message))
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if ok && got != tt.want {
				t.Errorf("tick = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestStreamURL(t *testing.T) {
	got := streamURL("wss://stream.example.com/stream", []string{"BTCUSDT", "ETHUSDT"})
	want := "wss://stream.example.com/stream?streams=btcusdt@trade/ethusdt@trade"
	if got != want {
		t.Errorf("streamURL = %q, want %q", got, want)
	}
}

func TestReplay_DeliversInOrder(t *testing.T) {
	ticks := []domain.Tick{
		{Symbol: "BTCUSDT", Price: 100, TimestampMs: 1},
		{Symbol: "BTCUSDT", Price: 101, TimestampMs: 2},
		{Symbol: "BTCUSDT", Price: 99, TimestampMs: 3},
	}
	r := NewReplay(ticks)

	var got []domain.Tick
	for tick := range r.Ticks() {
		got = append(got, tick)
	}
	if len(got) != len(ticks) {
		t.Fatalf("received %d ticks, want %d", len(got), len(ticks))
	}
	for i := range ticks {
		if got[i] != ticks[i] {
			t.Errorf("tick %d = %+v, want %+v", i, got[i], ticks[i])
		}
	}
	if err := r.Err(); err != nil {
		t.Errorf("Err = %v, want nil", err)
	}
}

func TestReplay_CloseStopsStream(t *testing.T) {
	ticks := make([]domain.Tick, 100)
	for i := range ticks {
		ticks[i] = domain.Tick{Symbol: "BTCUSDT", Price: 100, TimestampMs: int64(i)}
	}
	r := NewReplay(ticks)

	<-r.Ticks()
	if err := r.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	// the channel drains and closes after Close
	for range r.Ticks() {
	}
}
