// Package topology encodes node layouts as "[x,y,z] [x,y,z] ..." strings and
// scales the inter-node distance along the y axis.
package topology

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrMalformedTopology is matched by every *MalformedTopologyError.
var ErrMalformedTopology = errors.New("malformed topology")

// MalformedTopologyError reports a node group that is not three numeric fields.
type MalformedTopologyError struct {
	Index  int
	Group  string
	Reason string
}

func (e *MalformedTopologyError) Error() string {
	return fmt.Sprintf("node %d %q: %s", e.Index, e.Group, e.Reason)
}

func (e *MalformedTopologyError) Is(target error) bool { return target == ErrMalformedTopology }

// Node is one position. X and Z keep their original text, Y is the axis being scaled.
type Node struct {
	X string
	Y int
	Z string
}

func (n Node) String() string {
	return "[" + n.X + "," + strconv.Itoa(n.Y) + "," + n.Z + "]"
}

// Parse splits a topology string into nodes.
func Parse(s string) ([]Node, error) {
	groups := strings.Fields(s)
	if len(groups) == 0 {
		return nil, &MalformedTopologyError{Index: 0, Group: s, Reason: "no nodes"}
	}
	nodes := make([]Node, 0, len(groups))
	for i, g := range groups {
		n, err := parseNode(i, g)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, n)
	}
	return nodes, nil
}

func parseNode(i int, g string) (Node, error) {
	if !strings.HasPrefix(g, "[") || !strings.HasSuffix(g, "]") {
		return Node{}, &MalformedTopologyError{Index: i, Group: g, Reason: "missing brackets"}
	}
	fields := strings.Split(strings.Trim(g, "[]"), ",")
	if len(fields) != 3 {
		return Node{}, &MalformedTopologyError{Index: i, Group: g, Reason: fmt.Sprintf("want 3 fields, got %d", len(fields))}
	}
	for _, f := range []string{fields[0], fields[2]} {
		if _, err := strconv.ParseFloat(f, 64); err != nil {
			return Node{}, &MalformedTopologyError{Index: i, Group: g, Reason: fmt.Sprintf("field %q is not numeric", f)}
		}
	}
	y, err := strconv.Atoi(fields[1])
	if err != nil {
		return Node{}, &MalformedTopologyError{Index: i, Group: g, Reason: fmt.Sprintf("y %q is not an integer", fields[1])}
	}
	return Node{X: fields[0], Y: y, Z: fields[2]}, nil
}

// Format renders nodes with a single space between groups.
func Format(nodes []Node) string {
	parts := make([]string, len(nodes))
	for i, n := range nodes {
		parts[i] = n.String()
	}
	return strings.Join(parts, " ")
}

// ScaleY returns floor(y * 0.5 * (factor+1)).
func ScaleY(y, factor int) int {
	return int(math.Floor(float64(y) * 0.5 * float64(factor+1)))
}

// Scale stretches every node after the first along y by ScaleY. Node 0 is the
// anchor. Factor 0 bypasses ScaleY, which would halve y, and returns the input
// unchanged so that the baseline is a fixed point. The sweep starts at factor 1.
func Scale(baseline string, factor int) (string, error) {
	if factor < 0 {
		return "", fmt.Errorf("scale factor %d: must not be negative", factor)
	}
	nodes, err := Parse(baseline)
	if err != nil {
		return "", err
	}
	if factor == 0 {
		return baseline, nil
	}
	for i := 1; i < len(nodes); i++ {
		nodes[i].Y = ScaleY(nodes[i].Y, factor)
	}
	return Format(nodes), nil
}
