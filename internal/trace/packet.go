// Package trace turns captured ICMPv6 echo traffic into packet records and derives
// sequence and retry statistics from them.
package trace

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrMalformedLine is matched by every *ParseError.
var ErrMalformedLine = errors.New("malformed packet line")

// ParseError reports a capture line that does not follow the expected layout.
type ParseError struct {
	Line   string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: %q", e.Reason, e.Line)
}

func (e *ParseError) Is(target error) bool { return target == ErrMalformedLine }

// Packet is one captured packet. Seq 0 means "no sequence number".
type Packet struct {
	Time        string `json:"time"`
	Source      string `json:"source"`
	Destination string `json:"destination"`
	Seq         int    `json:"seq"`
}

// Field positions (0-based) in the capture tool's whitespace-delimited output.
const (
	timeField        = 2
	sourceField      = 3
	destinationField = 5
	seqMarker        = "seq="
)

// ParseLine extracts a Packet from one line of capture tool output.
func ParseLine(line string) (Packet, error) {
	fields := strings.Fields(line)
	if len(fields) <= destinationField {
		return Packet{}, &ParseError{Line: line, Reason: fmt.Sprintf("want at least %d fields, got %d", destinationField+1, len(fields))}
	}
	seq, err := parseSeq(line)
	if err != nil {
		return Packet{}, err
	}
	return Packet{
		Time:        fields[timeField],
		Source:      fields[sourceField],
		Destination: fields[destinationField],
		Seq:         seq,
	}, nil
}

func parseSeq(line string) (int, error) {
	i := strings.Index(line, seqMarker)
	if i < 0 {
		return 0, &ParseError{Line: line, Reason: "missing " + seqMarker + " marker"}
	}
	rest := line[i+len(seqMarker):]
	if j := strings.IndexByte(rest, ','); j >= 0 {
		rest = rest[:j]
	}
	seq, err := strconv.Atoi(strings.TrimSpace(rest))
	if err != nil || seq < 0 {
		return 0, &ParseError{Line: line, Reason: fmt.Sprintf("bad sequence number %q", rest)}
	}
	return seq, nil
}

// Parse parses every non-blank line. The first malformed line fails the whole trace.
func Parse(lines []string) (Trace, error) {
	out := make(Trace, 0, len(lines))
	for _, l := range lines {
		if strings.TrimSpace(l) == "" {
			continue
		}
		p, err := ParseLine(l)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// Trace is the ordered packet list of one capture.
type Trace []Packet

// Sequences returns the sequence numbers in capture order.
func (t Trace) Sequences() []int {
	out := make([]int, len(t))
	for i, p := range t {
		out[i] = p.Seq
	}
	return out
}

// Times returns the timestamps in capture order.
func (t Trace) Times() []string {
	out := make([]string, len(t))
	for i, p := range t {
		out[i] = p.Time
	}
	return out
}

// Sources returns the source addresses in capture order.
func (t Trace) Sources() []string {
	out := make([]string, len(t))
	for i, p := range t {
		out[i] = p.Source
	}
	return out
}

// Destinations returns the destination addresses in capture order.
func (t Trace) Destinations() []string {
	out := make([]string, len(t))
	for i, p := range t {
		out[i] = p.Destination
	}
	return out
}

// Unique counts distinct sequence numbers.
func (t Trace) Unique() int {
	seen := make(map[int]struct{}, len(t))
	for _, p := range t {
		seen[p.Seq] = struct{}{}
	}
	return len(seen)
}
