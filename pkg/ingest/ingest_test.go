package ingest

import (
	"bytes"
	"net"
	"testing"
	"time"

	"github.com/pion/rtp"
)

type received struct {
	session string
	chunk   []byte
}

func startReceiver(t *testing.T, cfg Config) (*Receiver, *net.UDPConn, chan received) {
	t.Helper()
	ch := make(chan received, 16)
	r := NewReceiver(cfg, func(session string, chunk []byte) {
		ch <- received{session: session, chunk: chunk}
	})
	if err := r.Start(); err != nil {
		t.Fatalf("Start error: %v", err)
	}
	t.Cleanup(r.Stop)

	conn, err := net.DialUDP("udp", nil, r.Addr().(*net.UDPAddr))
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return r, conn, ch
}

func sendPacket(t *testing.T, conn *net.UDPConn, pt uint8, seq uint16, payload []byte) {
	t.Helper()
	pkt := rtp.Packet{
		Header: rtp.Header{
			Version:        2,
			PayloadType:    pt,
			SequenceNumber: seq,
			Timestamp:      uint32(seq) * 160,
			SSRC:           0x1234,
		},
		Payload: payload,
	}
	data, err := pkt.Marshal()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if _, err := conn.Write(data); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func waitChunk(t *testing.T, ch chan received) received {
	t.Helper()
	select {
	case got := <-ch:
		return got
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for chunk")
		return received{}
	}
}

func TestReceiverSwapsToLittleEndian(t *testing.T) {
	_, conn, ch := startReceiver(t, Config{
		Listen:      "127.0.0.1:0",
		PayloadType: 96,
		ClockRate:   16000,
		SampleRate:  16000,
		Session:     "rtp",
	})

	// Two samples in network byte order: 0x0102, 0xFFFE.
	sendPacket(t, conn, 96, 1, []byte{0x01, 0x02, 0xFF, 0xFE})

	got := waitChunk(t, ch)
	if got.session != "rtp" {
		t.Errorf("session = %q, want rtp", got.session)
	}
	want := []byte{0x02, 0x01, 0xFE, 0xFF}
	if !bytes.Equal(got.chunk, want) {
		t.Errorf("chunk = %x, want %x", got.chunk, want)
	}
}

func TestReceiverFiltersPayloadType(t *testing.T) {
	_, conn, ch := startReceiver(t, Config{
		Listen:      "127.0.0.1:0",
		PayloadType: 96,
		ClockRate:   16000,
		SampleRate:  16000,
		Session:     "rtp",
	})

	sendPacket(t, conn, 97, 1, []byte{0x00, 0x01, 0x00, 0x02})
	sendPacket(t, conn, 96, 2, []byte{0x00, 0x03, 0x00, 0x04})

	got := waitChunk(t, ch)
	want := []byte{0x03, 0x00, 0x04, 0x00}
	if !bytes.Equal(got.chunk, want) {
		t.Errorf("chunk = %x, want %x (filtered packet leaked through?)", got.chunk, want)
	}
	select {
	case extra := <-ch:
		t.Errorf("unexpected extra chunk %x", extra.chunk)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestReceiverDropsMalformed(t *testing.T) {
	_, conn, ch := startReceiver(t, Config{
		Listen:      "127.0.0.1:0",
		PayloadType: 96,
		ClockRate:   16000,
		SampleRate:  16000,
		Session:     "rtp",
	})

	// Not an RTP packet at all.
	if _, err := conn.Write([]byte{0xde, 0xad}); err != nil {
		t.Fatal(err)
	}
	sendPacket(t, conn, 96, 1, []byte{0x00, 0x05, 0x00, 0x06})

	got := waitChunk(t, ch)
	want := []byte{0x05, 0x00, 0x06, 0x00}
	if !bytes.Equal(got.chunk, want) {
		t.Errorf("chunk = %x, want %x", got.chunk, want)
	}
}

func TestReceiverResamples(t *testing.T) {
	_, conn, ch := startReceiver(t, Config{
		Listen:      "127.0.0.1:0",
		PayloadType: 96,
		ClockRate:   48000,
		SampleRate:  16000,
		Session:     "rtp",
	})

	// 20ms of silence at 48kHz: 960 samples.
	payload := make([]byte, 960*2)
	sendPacket(t, conn, 96, 1, payload)

	got := waitChunk(t, ch)
	if len(got.chunk)%2 != 0 {
		t.Fatalf("odd chunk length %d", len(got.chunk))
	}
	// 3:1 decimation, allow for filter edge effects.
	samples := len(got.chunk) / 2
	if samples == 0 || samples > 480 {
		t.Errorf("resampled to %d samples, want about 320", samples)
	}
}

func TestReceiverStartErrors(t *testing.T) {
	r := NewReceiver(Config{Listen: "127.0.0.1:0", Session: "x"}, nil)
	if err := r.Start(); err == nil {
		t.Error("expected error without process function")
	}
	r = NewReceiver(Config{Listen: "127.0.0.1:0"}, func(string, []byte) {})
	if err := r.Start(); err == nil {
		t.Error("expected error without session ID")
	}
}

func TestReceiverStopIdempotent(t *testing.T) {
	r := NewReceiver(Config{
		Listen:      "127.0.0.1:0",
		PayloadType: 96,
		Session:     "rtp",
	}, func(string, []byte) {})
	if err := r.Start(); err != nil {
		t.Fatalf("Start error: %v", err)
	}
	r.Stop()
	r.Stop()
}
