package jsontime

import (
	"encoding/json"
	"testing"
	"time"
)

func TestMilliRoundTrip(t *testing.T) {
	tm := time.Date(2026, 8, 2, 10, 30, 0, 0, time.UTC)
	data, err := json.Marshal(Milli(tm))
	if err != nil {
		t.Fatalf("Marshal error: %v", err)
	}
	if string(data) != "1785666600000" {
		t.Errorf("Marshal = %s, want 1785666600000", data)
	}

	var restored Milli
	if err := json.Unmarshal(data, &restored); err != nil {
		t.Fatalf("Unmarshal error: %v", err)
	}
	if restored.Time().UnixMilli() != tm.UnixMilli() {
		t.Errorf("round trip: got %v, want %v", restored.Time(), tm)
	}
}

func TestMilliComparisons(t *testing.T) {
	t1 := Milli(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	t2 := t1.Add(time.Hour)

	if !t1.Before(t2) || !t2.After(t1) {
		t.Error("t1 should order before t2")
	}
	if t1.Equal(t2) {
		t.Error("t1 should not equal t2")
	}
	if t2.Sub(t1) != time.Hour {
		t.Errorf("Sub = %v, want 1h", t2.Sub(t1))
	}
	var zero Milli
	if !zero.IsZero() {
		t.Error("zero Milli should report IsZero")
	}
	if NowEpochMilli().IsZero() {
		t.Error("NowEpochMilli should not be zero")
	}
}

func TestUnixRoundTrip(t *testing.T) {
	sec := int64(1785666600)
	data, _ := json.Marshal(sec)

	var ep Unix
	if err := json.Unmarshal(data, &ep); err != nil {
		t.Fatalf("Unmarshal error: %v", err)
	}
	if !ep.Time().Equal(time.Unix(sec, 0)) {
		t.Errorf("Unmarshal = %v, want %v", ep.Time(), time.Unix(sec, 0))
	}

	out, err := json.Marshal(ep)
	if err != nil {
		t.Fatalf("Marshal error: %v", err)
	}
	if string(out) != "1785666600" {
		t.Errorf("Marshal = %s, want 1785666600", out)
	}

	var zero Unix
	if !zero.IsZero() {
		t.Error("zero Unix should report IsZero")
	}
	if NowEpoch().String() == "" {
		t.Error("String should not be empty")
	}
}

func TestDurationMarshal(t *testing.T) {
	data, err := json.Marshal(Duration(90 * time.Minute))
	if err != nil {
		t.Fatalf("Marshal error: %v", err)
	}
	if string(data) != `"1h30m0s"` {
		t.Errorf("Marshal = %s, want \"1h30m0s\"", data)
	}
}

func TestDurationUnmarshal(t *testing.T) {
	tests := []struct {
		json string
		want time.Duration
	}{
		{`"2h30m"`, 2*time.Hour + 30*time.Minute},
		{`5000000000`, 5 * time.Second},
		{`null`, 0},
	}
	for _, tt := range tests {
		var d Duration
		if err := json.Unmarshal([]byte(tt.json), &d); err != nil {
			t.Errorf("Unmarshal(%s) error: %v", tt.json, err)
			continue
		}
		if d.Duration() != tt.want {
			t.Errorf("Unmarshal(%s) = %v, want %v", tt.json, d.Duration(), tt.want)
		}
	}

	var d Duration
	if err := json.Unmarshal([]byte(`"not-a-duration"`), &d); err == nil {
		t.Error("bad duration string should fail")
	}
}

func TestDurationInStruct(t *testing.T) {
	type status struct {
		Idle Duration `json:"idle"`
	}
	data, err := json.Marshal(status{Idle: Duration(30 * time.Second)})
	if err != nil {
		t.Fatalf("Marshal error: %v", err)
	}

	var restored status
	if err := json.Unmarshal(data, &restored); err != nil {
		t.Fatalf("Unmarshal error: %v", err)
	}
	if restored.Idle.Seconds() != 30 {
		t.Errorf("Idle = %v, want 30s", restored.Idle)
	}
}
