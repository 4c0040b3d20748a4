package ingest

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/pion/rtp"

	"github.com/auravis/auravis/pkg/audio/pcm"
	"github.com/auravis/auravis/pkg/audio/resampler"
)

const (
	maxDatagram  = 65535
	readInterval = time.Second
)

// Config configures a Receiver.
type Config struct {
	// Listen is the UDP listen address.
	Listen string

	// PayloadType is the dynamic RTP payload type carrying L16 audio;
	// packets with any other type are dropped.
	PayloadType uint8

	// ClockRate is the sample rate of the RTP stream.
	ClockRate int

	// SampleRate is the session's analysis rate. Payloads are resampled
	// when it differs from ClockRate.
	SampleRate int

	// Session is the session ID chunks are routed to.
	Session string
}

// ProcessFunc consumes one little-endian PCM16 chunk for a session.
type ProcessFunc func(session string, chunk []byte)

// Receiver reads RTP packets from a UDP socket and forwards their PCM
// payloads. One goroutine per receiver; Stop closes the socket and waits
// for the loop to drain.
type Receiver struct {
	cfg     Config
	process ProcessFunc
	logger  *slog.Logger

	mu     sync.Mutex
	conn   *net.UDPConn
	closed bool
	wg     sync.WaitGroup
}

// Option configures a Receiver.
type Option func(*Receiver)

// WithLogger sets the receiver's logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Receiver) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewReceiver creates a receiver; Start binds the socket.
func NewReceiver(cfg Config, process ProcessFunc, opts ...Option) *Receiver {
	r := &Receiver{
		cfg:     cfg,
		process: process,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Start binds the UDP socket and begins the read loop. Bind errors are
// returned synchronously.
func (r *Receiver) Start() error {
	if r.process == nil {
		return errors.New("ingest: process function is required")
	}
	if r.cfg.Session == "" {
		return errors.New("ingest: session ID is required")
	}
	addr, err := net.ResolveUDPAddr("udp", r.cfg.Listen)
	if err != nil {
		return fmt.Errorf("ingest: resolve %s: %w", r.cfg.Listen, err)
	}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return fmt.Errorf("ingest: listen %s: %w", r.cfg.Listen, err)
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		conn.Close()
		return errors.New("ingest: receiver is stopped")
	}
	r.conn = conn
	r.mu.Unlock()

	r.logger.Info("ingest: listening",
		"addr", conn.LocalAddr().String(),
		"payload_type", r.cfg.PayloadType,
		"session", r.cfg.Session)

	r.wg.Add(1)
	go r.loop(conn)
	return nil
}

// Addr returns the bound address, valid after Start.
func (r *Receiver) Addr() net.Addr {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.conn == nil {
		return nil
	}
	return r.conn.LocalAddr()
}

// Stop closes the socket and waits for the read loop to exit. Safe to
// call more than once.
func (r *Receiver) Stop() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		r.wg.Wait()
		return
	}
	r.closed = true
	conn := r.conn
	r.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
	r.wg.Wait()
	r.logger.Info("ingest: stopped")
}

func (r *Receiver) loop(conn *net.UDPConn) {
	defer r.wg.Done()
	buf := make([]byte, maxDatagram)
	for {
		_ = conn.SetReadDeadline(time.Now().Add(readInterval))
		n, _, err := conn.ReadFromUDP(buf)
		if err != nil {
			if e, ok := err.(net.Error); ok && e.Timeout() {
				continue
			}
			r.mu.Lock()
			closed := r.closed
			r.mu.Unlock()
			if !closed {
				r.logger.Warn("ingest: read failed", "err", err)
			}
			return
		}
		r.handle(buf[:n])
	}
}

func (r *Receiver) handle(data []byte) {
	var pkt rtp.Packet
	if err := pkt.Unmarshal(data); err != nil {
		r.logger.Debug("ingest: dropping malformed packet", "err", err)
		return
	}
	if pkt.PayloadType != r.cfg.PayloadType {
		return
	}
	if len(pkt.Payload) < 2 {
		return
	}

	// RTP audio/L16 is network byte order; the pipeline wants LE.
	chunk := make([]byte, len(pkt.Payload))
	copy(chunk, pkt.Payload)
	pcm.SwapToLE(chunk)

	if r.cfg.ClockRate > 0 && r.cfg.SampleRate > 0 && r.cfg.ClockRate != r.cfg.SampleRate {
		out, err := resampler.Bytes(chunk,
			resampler.Format{SampleRate: r.cfg.ClockRate},
			resampler.Format{SampleRate: r.cfg.SampleRate})
		if err != nil {
			r.logger.Debug("ingest: resample failed", "err", err)
			return
		}
		chunk = out
	}
	if len(chunk) == 0 {
		return
	}
	r.process(r.cfg.Session, chunk)
}
