package main

import (
	"testing"
	"time"
)

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"12.5", 12.5, true},
		{"0", 0, true},
		{"1:05", 65, true},
		{"1:05.250", 65.25, true},
		{"1:00:00", 3600, true},
		{"", 0, false},
		{"abc", 0, false},
		{"-3", 0, false},
		{"1:75", 0, false},
		{"1:2:3:4", 0, false},
		{"NaN", 0, false},
		{"Inf", 0, false},
		{"+Infinity", 0, false},
		{"1:NaN", 0, false},
	}
	for _, tt := range tests {
		got, err := parseTimestamp(tt.in)
		if !tt.ok {
			assert(t, err != nil, "parseTimestamp(%q) = %v, expected an error", tt.in, got)
			continue
		}
		assert(t, err == nil && got == tt.want, "parseTimestamp(%q) = %v, %v; expected %v", tt.in, got, err, tt.want)
	}
}

func TestParseCueRange(t *testing.T) {
	tests := []struct {
		in   string
		want Cue
		ok   bool
	}{
		{"", Cue{}, true},
		{"30", Cue{Start: 30}, true},
		{"30-45.5", Cue{Start: 30, End: 45.5, HasEnd: true}, true},
		{"1:00-2:00", Cue{Start: 60, End: 120, HasEnd: true}, true},
		{"45-30", Cue{}, false},
		{"30-30", Cue{}, false},
		{"x-30", Cue{}, false},
		{"30-", Cue{}, false},
		{"NaN", Cue{}, false},
		{"10-Inf", Cue{}, false},
	}
	for _, tt := range tests {
		got, err := parseCueRange(tt.in)
		if !tt.ok {
			assert(t, err != nil, "parseCueRange(%q) = %+v, expected an error", tt.in, got)
			continue
		}
		assert(t, err == nil && got == tt.want, "parseCueRange(%q) = %+v, %v; expected %+v", tt.in, got, err, tt.want)
	}
}

func TestSecondsToDuration(t *testing.T) {
	assert(t, secondsToDuration(1.5) == 1500*time.Millisecond, "1.5s = %v", secondsToDuration(1.5))
	assert(t, secondsToDuration(0.001) == time.Millisecond, "0.001s = %v", secondsToDuration(0.001))
}
