package bridge

import (
	"strconv"
	"strings"
)

// CommandLine is one parsed console command.
type CommandLine struct {
	Code string
	Args string
}

// ParseCommand splits a trimmed line at the first space. Without a space the
// whole line is the code. Args are kept verbatim.
func ParseCommand(line string) CommandLine {
	code, args, found := strings.Cut(line, " ")
	if !found {
		return CommandLine{Code: line}
	}
	return CommandLine{Code: code, Args: args}
}

// parseBegin splits BEG arguments into a name and a pin token. ok is false
// when there is no separator or either token is empty.
func parseBegin(args string) (name string, pin uint32, ok bool) {
	name, pinText, found := strings.Cut(args, " ")
	if !found || name == "" || pinText == "" {
		return "", 0, false
	}
	return name, uint32(parseLeadingInt(pinText)), true
}

// parseLength reads a WRI length the way C strtol does, then reinterprets it
// as unsigned so a negative request becomes an impossibly large one.
func parseLength(args string) uint64 {
	return uint64(parseLeadingInt(args))
}

// parseLeadingInt parses optional leading whitespace, an optional sign and
// the longest run of decimal digits. It returns 0 when there are no digits
// and saturates on overflow, matching strtol.
func parseLeadingInt(s string) int64 {
	s = strings.TrimLeft(s, " \t\r\n\v\f")
	end := 0
	if end < len(s) && (s[end] == '+' || s[end] == '-') {
		end++
	}
	digits := end
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == digits {
		return 0
	}
	// on overflow ParseInt returns the saturated value with ErrRange
	v, _ := strconv.ParseInt(s[:end], 10, 64)
	return v
}
