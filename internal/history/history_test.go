package history

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/FIREguardSPB/spatial-pinwheel/internal/model"
)

func bar(ts int64, close float64) model.Bar {
	d := decimal.NewFromFloat(close)
	return model.Bar{
		Instrument: "TEST",
		Time:       ts,
		Open:       d, High: d, Low: d, Close: d,
		Complete: true,
	}
}

func TestBuffer_FIFOEviction(t *testing.T) {
	b := New(3)

	for i := int64(0); i < 5; i++ {
		b.Append(bar(i*60, float64(100+i)))
	}

	if b.Len() != 3 {
		t.Fatalf("Len()=%d, want 3", b.Len())
	}

	bars := b.Bars()
	wantTimes := []int64{120, 180, 240}
	for i, w := range wantTimes {
		if bars[i].Time != w {
			t.Errorf("bars[%d].Time=%d, want %d", i, bars[i].Time, w)
		}
	}

	last, ok := b.Last()
	if !ok || last.Time != 240 {
		t.Errorf("Last()=%v ok=%v, want time 240", last.Time, ok)
	}
}

func TestBuffer_LenNeverDecreases(t *testing.T) {
	b := New(4)
	prev := 0
	for i := int64(0); i < 10; i++ {
		b.Append(bar(i*60, 100))
		if b.Len() < prev {
			t.Fatalf("Len decreased from %d to %d after append %d", prev, b.Len(), i)
		}
		prev = b.Len()
	}
}

func TestBuffer_SnapshotAppendsFormingBar(t *testing.T) {
	b := New(10)
	b.Append(bar(0, 100))
	b.Append(bar(60, 101))

	forming := bar(120, 102)
	forming.Complete = false

	snap := b.Snapshot(&forming)
	if len(snap) != 3 {
		t.Fatalf("snapshot length %d, want 3", len(snap))
	}
	if snap[2].Time != 120 || snap[2].Complete {
		t.Errorf("last snapshot entry should be the forming bar, got %+v", snap[2])
	}

	// Without a forming bar the snapshot is just the history.
	if got := len(b.Snapshot(nil)); got != 2 {
		t.Errorf("snapshot without forming bar length %d, want 2", got)
	}
}

func TestSeries_Extraction(t *testing.T) {
	bars := []model.Bar{
		{Close: decimal.NewFromFloat(10.5), High: decimal.NewFromFloat(11), Low: decimal.NewFromFloat(10)},
		{Close: decimal.NewFromFloat(10.75), High: decimal.NewFromFloat(11.25), Low: decimal.NewFromFloat(10.25)},
	}

	closes, highs, lows := Series(bars)
	if closes[1] != 10.75 || highs[0] != 11 || lows[1] != 10.25 {
		t.Errorf("unexpected series: closes=%v highs=%v lows=%v", closes, highs, lows)
	}
}
