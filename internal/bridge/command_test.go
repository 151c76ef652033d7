package bridge

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseCommand(t *testing.T) {
	cases := []struct {
		line string
		want CommandLine
	}{
		{"STS", CommandLine{Code: "STS"}},
		{"WRI 12", CommandLine{Code: "WRI", Args: "12"}},
		{"BEG devicex 1234", CommandLine{Code: "BEG", Args: "devicex 1234"}},
		{"FOO  spaced  args", CommandLine{Code: "FOO", Args: " spaced  args"}},
		{"BEG ", CommandLine{Code: "BEG", Args: ""}},
	}
	for _, tc := range cases {
		t.Run(tc.line, func(t *testing.T) {
			assert.Equal(t, tc.want, ParseCommand(tc.line))
		})
	}
}

func TestParseBegin(t *testing.T) {
	cases := []struct {
		args   string
		name   string
		pin    uint32
		wantOK bool
	}{
		{"devicex 1234", "devicex", 1234, true},
		{"devicex 12 34", "devicex", 12, true},
		{"devicex abc", "devicex", 0, true},
		{" 1234", "", 0, false},
		{"name ", "", 0, false},
		{"name", "", 0, false},
		{"", "", 0, false},
	}
	for _, tc := range cases {
		t.Run(tc.args, func(t *testing.T) {
			name, pin, ok := parseBegin(tc.args)
			assert.Equal(t, tc.wantOK, ok)
			assert.Equal(t, tc.name, name)
			assert.Equal(t, tc.pin, pin)
		})
	}
}

func TestParseLength(t *testing.T) {
	cases := []struct {
		args string
		want uint64
	}{
		{"5", 5},
		{"  42", 42},
		{"+7", 7},
		{"17abc", 17},
		{"abc", 0},
		{"", 0},
		{"-1", math.MaxUint64},
		{"99999999999999999999", math.MaxInt64},
	}
	for _, tc := range cases {
		t.Run(tc.args, func(t *testing.T) {
			assert.Equal(t, tc.want, parseLength(tc.args))
		})
	}
}
