package trace

import (
	"bytes"
	"context"
	"errors"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
)

type fakeRunner struct {
	out  string
	err  error
	dir  string
	args []string
}

func (f *fakeRunner) Run(_ context.Context, dir, name string, args ...string) (string, error) {
	f.dir = dir
	f.args = append([]string{name}, args...)
	return f.out, f.err
}

func TestTsharkSource(t *testing.T) {
	r := &fakeRunner{out: reqLine + "\n" + replyLine + "\n"}
	src := NewTsharkSource(r)
	tr, err := src.Packets(context.Background(), "/tmp/run/pcap_x/pkt-0-0.pcap")
	if err != nil {
		t.Fatalf("Packets: %v", err)
	}
	if len(tr) != 2 {
		t.Fatalf("got %d packets, want 2", len(tr))
	}
	want := []string{"tshark", "-r", "/tmp/run/pcap_x/pkt-0-0.pcap", "-Y", "icmpv6"}
	if diff := cmp.Diff(want, r.args); diff != "" {
		t.Fatalf("command mismatch (-want +got):\n%s", diff)
	}
	if r.dir != "/tmp/run/pcap_x" {
		t.Fatalf("dir = %q", r.dir)
	}
}

func TestTsharkSourceErrors(t *testing.T) {
	boom := errors.New("tshark: not found")
	if _, err := NewTsharkSource(&fakeRunner{err: boom}).Packets(context.Background(), "a.pcap"); !errors.Is(err, boom) {
		t.Fatalf("err = %v, want wrapped runner error", err)
	}
	_, err := NewTsharkSource(&fakeRunner{out: "junk\n"}).Packets(context.Background(), "a.pcap")
	if !errors.Is(err, ErrMalformedLine) {
		t.Fatalf("err = %v, want ErrMalformedLine", err)
	}
}

var (
	mac0 = net.HardwareAddr{0x02, 0, 0, 0, 0, 1}
	mac1 = net.HardwareAddr{0x02, 0, 0, 0, 0, 2}
)

func echoFrame(t *testing.T, src, dst string, typ uint8, seq uint16) []byte {
	t.Helper()
	eth := &layers.Ethernet{SrcMAC: mac0, DstMAC: mac1, EthernetType: layers.EthernetTypeIPv6}
	ip := &layers.IPv6{
		Version:    6,
		NextHeader: layers.IPProtocolICMPv6,
		HopLimit:   64,
		SrcIP:      net.ParseIP(src),
		DstIP:      net.ParseIP(dst),
	}
	icmp := &layers.ICMPv6{TypeCode: layers.CreateICMPv6TypeCode(typ, 0)}
	if err := icmp.SetNetworkLayerForChecksum(ip); err != nil {
		t.Fatal(err)
	}
	echo := &layers.ICMPv6Echo{Identifier: 1, SeqNumber: seq}
	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	if err := gopacket.SerializeLayers(buf, opts, eth, ip, icmp, echo, gopacket.Payload([]byte("ping"))); err != nil {
		t.Fatalf("serialize: %v", err)
	}
	return buf.Bytes()
}

func udpFrame(t *testing.T) []byte {
	t.Helper()
	eth := &layers.Ethernet{SrcMAC: mac0, DstMAC: mac1, EthernetType: layers.EthernetTypeIPv4}
	ip := &layers.IPv4{Version: 4, TTL: 64, Protocol: layers.IPProtocolUDP,
		SrcIP: net.IPv4(10, 0, 0, 1), DstIP: net.IPv4(10, 0, 0, 2)}
	udp := &layers.UDP{SrcPort: 5683, DstPort: 5683}
	if err := udp.SetNetworkLayerForChecksum(ip); err != nil {
		t.Fatal(err)
	}
	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	if err := gopacket.SerializeLayers(buf, opts, eth, ip, udp, gopacket.Payload([]byte("coap"))); err != nil {
		t.Fatalf("serialize: %v", err)
	}
	return buf.Bytes()
}

func writePcap(t *testing.T, frames [][]byte, start time.Time, step time.Duration) []byte {
	t.Helper()
	return writePcapLink(t, layers.LinkTypeEthernet, frames, start, step)
}

func writePcapLink(t *testing.T, link layers.LinkType, frames [][]byte, start time.Time, step time.Duration) []byte {
	t.Helper()
	var b bytes.Buffer
	w := pcapgo.NewWriter(&b)
	if err := w.WriteFileHeader(65535, link); err != nil {
		t.Fatal(err)
	}
	for i, f := range frames {
		ci := gopacket.CaptureInfo{Timestamp: start.Add(time.Duration(i) * step), CaptureLength: len(f), Length: len(f)}
		if err := w.WritePacket(ci, f); err != nil {
			t.Fatal(err)
		}
	}
	return b.Bytes()
}

func TestReadPcap(t *testing.T) {
	frames := [][]byte{
		echoFrame(t, "fd00::1", "fd00::2", layers.ICMPv6TypeEchoRequest, 1),
		udpFrame(t),
		echoFrame(t, "fd00::2", "fd00::1", layers.ICMPv6TypeEchoReply, 1),
		echoFrame(t, "fd00::1", "fd00::2", layers.ICMPv6TypeEchoRequest, 2),
	}
	data := writePcap(t, frames, time.Unix(1700000000, 0), 250*time.Millisecond)

	tr, err := ReadPcap(context.Background(), bytes.NewReader(data))
	if err != nil {
		t.Fatalf("ReadPcap: %v", err)
	}
	want := Trace{
		{Time: "0.000000", Source: "fd00::1", Destination: "fd00::2", Seq: 1},
		{Time: "0.500000", Source: "fd00::2", Destination: "fd00::1", Seq: 1},
		{Time: "0.750000", Source: "fd00::1", Destination: "fd00::2", Seq: 2},
	}
	if diff := cmp.Diff(want, tr); diff != "" {
		t.Fatalf("trace mismatch (-want +got):\n%s", diff)
	}
}

func TestPcapSourceFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pkt-1-0.pcap")
	data := writePcap(t, [][]byte{
		echoFrame(t, "fd00::2", "fd00::3", layers.ICMPv6TypeEchoReply, 9),
	}, time.Unix(1700000000, 0), time.Second)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	tr, err := PcapSource{}.Packets(context.Background(), path)
	if err != nil {
		t.Fatalf("Packets: %v", err)
	}
	if len(tr) != 1 || tr[0].Seq != 9 || tr[0].Destination != "fd00::3" {
		t.Fatalf("unexpected trace %+v", tr)
	}
	if _, err := (PcapSource{}).Packets(context.Background(), filepath.Join(dir, "missing.pcap")); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("missing file err = %v", err)
	}
}

func TestReadPcapRejectsGarbageAndCancel(t *testing.T) {
	if _, err := ReadPcap(context.Background(), strings.NewReader("not a pcap file at all")); err == nil {
		t.Fatalf("expected header error")
	}
	data := writePcap(t, [][]byte{udpFrame(t)}, time.Unix(0, 0), time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := ReadPcap(ctx, bytes.NewReader(data)); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

// linkTypeIEEE802154 is DLT_IEEE802_15_4_WITHFCS, the link type of Whitefield captures.
const linkTypeIEEE802154 = layers.LinkType(195)

func TestReadPcapUndecodableLinkType(t *testing.T) {
	frame := []byte{0x41, 0xd8, 0x01, 0xcd, 0xab, 0xff, 0xff, 0x01, 0x00, 0x7b, 0x33, 0x3a, 0x80, 0x00}
	data := writePcapLink(t, linkTypeIEEE802154, [][]byte{frame, frame}, time.Unix(1700000000, 0), time.Second)

	_, err := ReadPcap(context.Background(), bytes.NewReader(data))
	if !errors.Is(err, ErrUndecodableCapture) {
		t.Fatalf("err = %v, want ErrUndecodableCapture", err)
	}
	var ue *UndecodableCaptureError
	if !errors.As(err, &ue) || ue.Records != 2 || ue.LinkType != linkTypeIEEE802154 {
		t.Fatalf("unexpected error %#v", err)
	}
}

func TestReadPcapEmptyAndIPv4OnlyCaptures(t *testing.T) {
	empty := writePcap(t, nil, time.Unix(1700000000, 0), time.Second)
	if tr, err := ReadPcap(context.Background(), bytes.NewReader(empty)); err != nil || len(tr) != 0 {
		t.Fatalf("empty capture = %v, %v", tr, err)
	}
	ipv4 := writePcap(t, [][]byte{udpFrame(t), udpFrame(t)}, time.Unix(1700000000, 0), time.Second)
	if _, err := ReadPcap(context.Background(), bytes.NewReader(ipv4)); !errors.Is(err, ErrUndecodableCapture) {
		t.Fatalf("ipv4-only capture err = %v, want ErrUndecodableCapture", err)
	}
}
