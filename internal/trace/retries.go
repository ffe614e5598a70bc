package trace

import (
	"errors"
	"sort"
)

// SequenceRetries is the retry count of one unique sequence number.
type SequenceRetries struct {
	Seq     int `json:"seq"`
	Retries int `json:"retries"`
}

// RetriesPerUniqueSequence groups seqs by value; retries = occurrences - 1.
// The result is in ascending sequence order.
func RetriesPerUniqueSequence(seqs []int) []SequenceRetries {
	counts := make(map[int]int, len(seqs))
	for _, s := range seqs {
		counts[s]++
	}
	out := make([]SequenceRetries, 0, len(counts))
	for s, n := range counts {
		out = append(out, SequenceRetries{Seq: s, Retries: n - 1})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out
}

// RetryCounts returns only the retry values of hist, in order.
func RetryCounts(hist []SequenceRetries) []int {
	out := make([]int, len(hist))
	for i, h := range hist {
		out[i] = h.Retries
	}
	return out
}

// RetriesPerPacket walks seqs in capture order and emits the retry count of each
// request once a different request starts. A zero never touches the counter but
// still becomes the previous value, so a request seen again after a zero counts as
// a new one. The request still open at the end of the trace is not emitted.
func RetriesPerPacket(seqs []int) []int {
	var out []int
	count := 0
	open := false
	prev := 0
	for _, cur := range seqs {
		switch {
		case cur == 0:
		case cur == prev:
			count++
		case open:
			out = append(out, count)
			count = 0
		default:
			open = true
		}
		prev = cur
	}
	return out
}

// FilteredResponseSequences splits the relay's replies by destination. Each end
// node is identified by the source address of its first captured packet; replies
// not addressed to node 0 are attributed to node 2.
func FilteredResponseSequences(relay, node0, node2 Trace) (to0, to2 []int, err error) {
	if len(node0) == 0 || len(node2) == 0 {
		return nil, nil, errors.New("end node trace is empty, cannot resolve its address")
	}
	addr0 := node0[0].Source
	to0 = []int{}
	to2 = []int{}
	for _, p := range relay {
		if p.Destination == addr0 {
			to0 = append(to0, p.Seq)
		} else {
			to2 = append(to2, p.Seq)
		}
	}
	return to0, to2, nil
}
