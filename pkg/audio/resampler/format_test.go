package resampler

import "testing"

func TestFormatString(t *testing.T) {
	tests := []struct {
		format Format
		want   string
	}{
		{Format{SampleRate: 16000}, "s16le/16000/1"},
		{Format{SampleRate: 48000, Stereo: true}, "s16le/48000/2"},
	}
	for _, tt := range tests {
		if got := tt.format.String(); got != tt.want {
			t.Errorf("%#v.String() = %q, want %q", tt.format, got, tt.want)
		}
	}
}

func TestFormatFrameBytes(t *testing.T) {
	if got := (Format{SampleRate: 16000}).frameBytes(); got != 2 {
		t.Errorf("mono frameBytes = %d, want 2", got)
	}
	if got := (Format{SampleRate: 48000, Stereo: true}).frameBytes(); got != 4 {
		t.Errorf("stereo frameBytes = %d, want 4", got)
	}
	if got := (Format{Stereo: true}).channels(); got != 2 {
		t.Errorf("stereo channels = %d, want 2", got)
	}
}

func TestNewRejectsInvalidRates(t *testing.T) {
	if _, err := New(nil, Format{}, Format{SampleRate: 16000}); err == nil {
		t.Error("zero source rate should fail")
	}
	if _, err := New(nil, Format{SampleRate: 16000}, Format{SampleRate: -1}); err == nil {
		t.Error("negative destination rate should fail")
	}
}
