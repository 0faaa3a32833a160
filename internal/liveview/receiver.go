// Package liveview receives the live view stream a Lumix camera pushes
// after a startstream command. Each UDP datagram carries a small header
// followed by one complete JPEG frame.
package liveview

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const (
	defaultKeepAlive = 5 * time.Second
	backoffBase      = time.Second
	maxBackoff       = 30 * time.Second
	requestTimeout   = 5 * time.Second
	maxDatagram      = 65536
	frameBuffer      = 32
)

var (
	jpegStart = []byte{0xFF, 0xD8}
	jpegEnd   = []byte{0xFF, 0xD9}
)

// Streamer starts and stops the stream on the camera. *lumix.Client
// implements it.
type Streamer interface {
	StartStream(ctx context.Context, port int) error
	StopStream(ctx context.Context) error
}

// FrameObserver is told about every received and dropped frame.
type FrameObserver interface {
	FrameReceived()
	FrameDropped()
}

type nopFrameObserver struct{}

func (nopFrameObserver) FrameReceived() {}
func (nopFrameObserver) FrameDropped()  {}

// Config for the live view receiver
type Config struct {
	Port      int           // Local UDP port, 0 picks a free one
	KeepAlive time.Duration // Interval between startstream refreshes
}

// Receiver listens for live view datagrams and keeps the stream running
type Receiver struct {
	cfg      Config
	cam      Streamer
	logger   zerolog.Logger
	observer FrameObserver
	frames   chan []byte
	stopCh   chan struct{}
	wg       sync.WaitGroup

	// wait blocks for d and reports false once the receiver is closing
	wait func(d time.Duration) bool

	mu      sync.Mutex
	conn    *net.UDPConn
	started bool
	stopped bool
}

// NewReceiver creates a receiver. The observer may be nil.
func NewReceiver(cfg Config, cam Streamer, logger zerolog.Logger, observer FrameObserver) (*Receiver, error) {
	if cam == nil {
		return nil, errors.New("liveview: streamer is required")
	}
	if cfg.Port < 0 || cfg.Port > 65535 {
		return nil, fmt.Errorf("liveview: invalid port %d", cfg.Port)
	}
	if cfg.KeepAlive <= 0 {
		cfg.KeepAlive = defaultKeepAlive
	}
	if observer == nil {
		observer = nopFrameObserver{}
	}

	r := &Receiver{
		cfg:      cfg,
		cam:      cam,
		logger:   logger.With().Str("component", "liveview").Logger(),
		observer: observer,
		frames:   make(chan []byte, frameBuffer),
		stopCh:   make(chan struct{}),
	}
	r.wait = r.sleep
	return r, nil
}

// Start binds the UDP port and asks the camera to stream to it.
func (r *Receiver) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.stopped {
		return errors.New("liveview: receiver is closed")
	}
	if r.started {
		return errors.New("liveview: already started")
	}

	conn, err := net.ListenUDP("udp", &net.UDPAddr{Port: r.cfg.Port})
	if err != nil {
		return fmt.Errorf("failed to listen for live view: %w", err)
	}
	port := conn.LocalAddr().(*net.UDPAddr).Port

	if err := r.cam.StartStream(ctx, port); err != nil {
		conn.Close()
		return fmt.Errorf("failed to start live view: %w", err)
	}

	r.conn = conn
	r.cfg.Port = port
	r.started = true

	r.wg.Add(2)
	go r.readLoop(conn)
	go r.keepAlive()

	r.logger.Info().Int("port", port).Msg("Live view started")
	return nil
}

// Addr returns the bound UDP address, nil before Start.
func (r *Receiver) Addr() net.Addr {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.conn == nil {
		return nil
	}
	return r.conn.LocalAddr()
}

// Frames returns the channel of JPEG frames. It is closed by Close.
func (r *Receiver) Frames() <-chan []byte {
	return r.frames
}

func (r *Receiver) readLoop(conn *net.UDPConn) {
	defer r.wg.Done()

	buf := make([]byte, maxDatagram)
	for {
		n, _, err := conn.ReadFromUDP(buf)
		if err != nil {
			select {
			case <-r.stopCh:
				return
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return
			}
			r.logger.Warn().Err(err).Msg("Live view read error")
			continue
		}

		jpeg, ok := ExtractJPEG(buf[:n])
		if !ok {
			continue
		}

		// Copy the frame out of the read buffer
		frame := make([]byte, len(jpeg))
		copy(frame, jpeg)
		r.observer.FrameReceived()

		select {
		case r.frames <- frame:
		case <-r.stopCh:
			return
		default:
			// Drop frame if channel full
			r.observer.FrameDropped()
		}
	}
}

// keepAlive re-sends startstream so the camera keeps pushing frames, and
// backs off while the camera is unreachable.
func (r *Receiver) keepAlive() {
	defer r.wg.Done()

	delay := r.cfg.KeepAlive
	failures := 0
	for {
		if !r.wait(delay) {
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		err := r.cam.StartStream(ctx, r.cfg.Port)
		cancel()

		if err != nil {
			failures++
			delay = backoff(failures)
			r.logger.Warn().Err(err).Int("attempt", failures).Dur("retry_in", delay).Msg("Live view refresh failed")
			continue
		}

		if failures > 0 {
			r.logger.Info().Msg("Live view restored")
		}
		failures = 0
		delay = r.cfg.KeepAlive
	}
}

func (r *Receiver) sleep(d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-r.stopCh:
		return false
	case <-t.C:
		return true
	}
}

// backoff is the retry delay after the given number of consecutive
// failures: 1s, 2s, 4s and so on up to maxBackoff.
func backoff(failures int) time.Duration {
	if failures < 1 {
		failures = 1
	}
	if failures > 6 {
		return maxBackoff
	}
	return min(backoffBase<<uint(failures-1), maxBackoff)
}

// Close stops the stream on the camera and releases the socket.
func (r *Receiver) Close() error {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return nil
	}
	r.stopped = true
	conn := r.conn
	started := r.started
	r.mu.Unlock()

	close(r.stopCh)

	var err error
	if started {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		if serr := r.cam.StopStream(ctx); serr != nil {
			r.logger.Warn().Err(serr).Msg("Failed to stop live view on camera")
		}
		cancel()
		err = conn.Close()
	}

	r.wg.Wait()
	close(r.frames)
	return err
}

// ExtractJPEG returns the JPEG image inside a live view datagram, from the
// start-of-image marker to the last end-of-image marker.
func ExtractJPEG(packet []byte) ([]byte, bool) {
	start := bytes.Index(packet, jpegStart)
	if start < 0 {
		return nil, false
	}
	end := bytes.LastIndex(packet, jpegEnd)
	if end < start+len(jpegStart) {
		return nil, false
	}
	return packet[start : end+len(jpegEnd)], true
}
