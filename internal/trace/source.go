package trace

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"

	"hnp-sim/internal/shell"
)

// Source loads the ICMPv6 echo packets of one capture file.
type Source interface {
	Packets(ctx context.Context, path string) (Trace, error)
}

// TsharkSource delegates decoding to the tshark command line tool.
type TsharkSource struct {
	Binary string
	Filter string
	Runner shell.Runner
}

// NewTsharkSource creates a source running "tshark -r <file> -Y icmpv6".
func NewTsharkSource(runner shell.Runner) *TsharkSource {
	return &TsharkSource{Binary: "tshark", Filter: "icmpv6", Runner: runner}
}

// Packets runs the display filter over path and parses its summary lines.
func (s *TsharkSource) Packets(ctx context.Context, path string) (Trace, error) {
	out, err := s.Runner.Run(ctx, filepath.Dir(path), s.Binary, "-r", path, "-Y", s.Filter)
	if err != nil {
		return nil, fmt.Errorf("read capture %s: %w", path, err)
	}
	t, err := Parse(shell.Lines(out))
	if err != nil {
		return nil, fmt.Errorf("capture %s: %w", path, err)
	}
	return t, nil
}

// ErrUndecodableCapture is matched by every *UndecodableCaptureError.
var ErrUndecodableCapture = errors.New("capture link layer cannot be decoded to IPv6")

// UndecodableCaptureError reports a capture with records of which none decoded
// to IPv6, e.g. 802.15.4 frames carrying 6LoWPAN.
type UndecodableCaptureError struct {
	LinkType layers.LinkType
	Records  int
}

func (e *UndecodableCaptureError) Error() string {
	return fmt.Sprintf("link type %s (%d): none of %d records decoded to IPv6, use the tshark source",
		e.LinkType, int(e.LinkType), e.Records)
}

func (e *UndecodableCaptureError) Is(target error) bool { return target == ErrUndecodableCapture }

// PcapSource reads classic pcap files in-process. It yields the same records as
// TsharkSource for captures whose link layer gopacket can decode down to ICMPv6
// (Ethernet, raw IP, loopback). Non-echo packets are skipped; a capture in which
// no record reaches IPv6 is an *UndecodableCaptureError.
type PcapSource struct{}

// Packets decodes every ICMPv6 echo request or reply in path. Time is seconds
// since the first packet of the file, like tshark's default time column.
func (PcapSource) Packets(ctx context.Context, path string) (Trace, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadPcap(ctx, f)
}

// ReadPcap decodes a classic pcap stream.
func ReadPcap(ctx context.Context, r io.Reader) (Trace, error) {
	pr, err := pcapgo.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("pcap header: %w", err)
	}
	var (
		out     Trace
		first   gopacket.CaptureInfo
		records int
		ipv6    bool
	)
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		data, ci, err := pr.ReadPacketData()
		if errors.Is(err, io.EOF) {
			if records > 0 && !ipv6 {
				return nil, &UndecodableCaptureError{LinkType: pr.LinkType(), Records: records}
			}
			return out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("pcap record %d: %w", records+1, err)
		}
		if records == 0 {
			first = ci
		}
		records++
		pkt := gopacket.NewPacket(data, pr.LinkType(), gopacket.DecodeOptions{Lazy: true, NoCopy: true})
		if pkt.Layer(layers.LayerTypeIPv6) != nil {
			ipv6 = true
		}
		rec, ok := echoRecord(pkt)
		if !ok {
			continue
		}
		rec.Time = fmt.Sprintf("%.6f", ci.Timestamp.Sub(first.Timestamp).Seconds())
		out = append(out, rec)
	}
}

func echoRecord(pkt gopacket.Packet) (Packet, bool) {
	ip, ok := pkt.Layer(layers.LayerTypeIPv6).(*layers.IPv6)
	if !ok {
		return Packet{}, false
	}
	echo, ok := pkt.Layer(layers.LayerTypeICMPv6Echo).(*layers.ICMPv6Echo)
	if !ok {
		return Packet{}, false
	}
	return Packet{
		Source:      ip.SrcIP.String(),
		Destination: ip.DstIP.String(),
		Seq:         int(echo.SeqNumber),
	}, true
}
