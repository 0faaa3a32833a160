package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"lumix-remote/internal/camera"
	"lumix-remote/internal/liveview"
	"lumix-remote/internal/lumix"
	"lumix-remote/internal/params"
	"lumix-remote/internal/protocol"
)

const (
	commandTimeout = 15 * time.Second
	pingInterval   = 30 * time.Second
	readTimeout    = 60 * time.Second
	writeTimeout   = 10 * time.Second
)

// Config for the server
type Config struct {
	ListenAddr    string
	CameraName    string                 // Shown to clients in status messages
	LiveviewPort  int                    // UDP port for live view, 0 disables it
	KeepAlive     time.Duration          // Live view refresh interval
	Metrics       prometheus.Gatherer    // Served on /metrics when set
	FrameObserver liveview.FrameObserver // Optional live view frame counter
}

// Server is the Lumix remote control server
type Server struct {
	cfg       Config
	cam       camera.Controller
	clients   map[*Client]bool
	clientsMu sync.RWMutex
	upgrader  websocket.Upgrader
	staticFS  fs.FS
	logger    zerolog.Logger

	httpServer *http.Server

	// guards the fields below
	mu       sync.Mutex
	liveview *liveview.Receiver
	stopped  bool
}

// outbound is a queued WebSocket write
type outbound struct {
	kind int
	data []byte
}

// Client represents a connected WebSocket client
type Client struct {
	conn   *websocket.Conn
	server *Server
	send   chan outbound
	ctx    context.Context
	cancel context.CancelFunc

	rackMu     sync.Mutex
	rackCancel context.CancelFunc

	mu     sync.Mutex
	closed bool
}

// New creates a new server instance
func New(cfg Config, cam camera.Controller, logger zerolog.Logger) (*Server, error) {
	if cam == nil {
		return nil, errors.New("camera controller is required")
	}

	webFS, err := fs.Sub(webFiles, "web")
	if err != nil {
		return nil, fmt.Errorf("failed to access embedded web files: %w", err)
	}

	s := &Server{
		cfg:      cfg,
		cam:      cam,
		clients:  make(map[*Client]bool),
		staticFS: webFS,
		logger:   logger.With().Str("component", "server").Logger(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true // Allow all origins for local use
			},
		},
	}
	s.httpServer = &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: s.Handler(),
	}

	return s, nil
}

// Handler returns the HTTP routes of the server
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	if s.cfg.Metrics != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(s.cfg.Metrics, promhttp.HandlerOpts{}))
	}
	mux.Handle("/", http.FileServer(http.FS(s.staticFS)))
	return mux
}

// Start starts the server and blocks until it is stopped. After Stop it
// returns http.ErrServerClosed.
func (s *Server) Start() error {
	if s.isStopped() {
		return http.ErrServerClosed
	}

	// Start live view if configured
	if s.cfg.LiveviewPort > 0 {
		recv, err := liveview.NewReceiver(liveview.Config{
			Port:      s.cfg.LiveviewPort,
			KeepAlive: s.cfg.KeepAlive,
		}, s.cam, s.logger, s.cfg.FrameObserver)
		if err != nil {
			s.logger.Warn().Err(err).Msg("Failed to create live view receiver")
		} else {
			ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
			err := recv.Start(ctx)
			cancel()
			if err != nil {
				s.logger.Warn().Err(err).Msg("Failed to start live view")
			} else {
				s.mu.Lock()
				stopped := s.stopped
				if !stopped {
					s.liveview = recv
				}
				s.mu.Unlock()
				if stopped {
					recv.Close()
					return http.ErrServerClosed
				}
				go s.broadcastFrames(recv.Frames())
			}
		}
	}

	s.logger.Info().Str("addr", s.cfg.ListenAddr).Msg("Server starting")
	return s.httpServer.ListenAndServe()
}

func (s *Server) isStopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped
}

// broadcastFrames sends every live view frame to all connected clients
func (s *Server) broadcastFrames(frames <-chan []byte) {
	for frame := range frames {
		s.broadcast(frame)
	}
}

func (s *Server) broadcast(frame []byte) {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()
	for client := range s.clients {
		// Non-blocking; a slow client misses frames
		client.enqueue(outbound{kind: websocket.BinaryMessage, data: frame})
	}
}

// Stop stops the server
func (s *Server) Stop() {
	s.clientsMu.Lock()
	for client := range s.clients {
		client.Close()
	}
	s.clientsMu.Unlock()

	s.mu.Lock()
	s.stopped = true
	recv := s.liveview
	s.mu.Unlock()

	if recv != nil {
		recv.Close()
	}

	// Shutdown also makes a later ListenAndServe return ErrServerClosed
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("Server forced to shutdown")
	}
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn().Err(err).Msg("WebSocket upgrade error")
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	client := &Client{
		conn:   conn,
		server: s,
		send:   make(chan outbound, 256),
		ctx:    ctx,
		cancel: cancel,
	}

	s.clientsMu.Lock()
	s.clients[client] = true
	s.clientsMu.Unlock()

	// Start client goroutines
	go client.writePump()
	go client.readPump()

	// Send initial status
	client.sendStatus()
}

func (c *Client) sendStatus() {
	c.server.mu.Lock()
	running := c.server.liveview != nil
	c.server.mu.Unlock()

	status := protocol.StatusPayload{
		Camera:     c.server.cfg.CameraName,
		Liveview:   running,
		RackActive: c.rackActive(),
	}
	if running {
		status.LiveviewPort = c.server.cfg.LiveviewPort
	}
	c.sendMessage(protocol.TypeStatus, "", status)
}

func (c *Client) sendMessage(msgType, id string, payload any) {
	msg, err := protocol.NewMessage(msgType, payload)
	if err != nil {
		c.server.logger.Error().Err(err).Msg("Failed to create message")
		return
	}
	msg.ID = id

	data, err := json.Marshal(msg)
	if err != nil {
		c.server.logger.Error().Err(err).Msg("Failed to marshal message")
		return
	}

	if !c.enqueue(outbound{kind: websocket.TextMessage, data: data}) {
		c.server.logger.Warn().Str("type", msgType).Msg("Client send buffer full, dropping message")
	}
}

func (c *Client) sendResult(msg *protocol.Message, body string, position *int) {
	c.sendMessage(protocol.TypeResult, msg.ID, protocol.ResultPayload{
		Request:  msg.Type,
		Body:     body,
		Position: position,
	})
}

func (c *Client) sendError(msg *protocol.Message, code string, err error) {
	c.sendMessage(protocol.TypeError, msg.ID, protocol.ErrorPayload{
		Request: msg.Type,
		Code:    code,
		Message: err.Error(),
	})
}

// enqueue queues a write unless the client is closed or its buffer is full
func (c *Client) enqueue(m outbound) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- m:
		return true
	default:
		return false
	}
}

func (c *Client) readPump() {
	defer func() {
		c.server.clientsMu.Lock()
		delete(c.server.clients, c)
		c.server.clientsMu.Unlock()
		c.Close()
	}()

	c.conn.SetReadLimit(65536)
	c.conn.SetReadDeadline(time.Now().Add(readTimeout))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(readTimeout))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.server.logger.Warn().Err(err).Msg("WebSocket error")
			}
			return
		}

		c.handleMessage(data)
	}
}

func (c *Client) handleMessage(data []byte) {
	var msg protocol.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		c.sendMessage(protocol.TypeError, "", protocol.ErrorPayload{
			Code:    protocol.ErrInvalidMessage,
			Message: "Failed to parse message",
		})
		return
	}

	cam := c.server.cam
	ctx, cancel := context.WithTimeout(c.ctx, commandTimeout)
	defer cancel()

	switch msg.Type {
	case protocol.TypePing:
		var payload protocol.PingPayload
		if err := msg.ParsePayload(&payload); err != nil {
			c.sendError(&msg, protocol.ErrInvalidMessage, err)
			return
		}
		c.sendMessage(protocol.TypePong, msg.ID, protocol.PongPayload{
			ClientTimestamp: payload.Timestamp,
			ServerTimestamp: time.Now().UnixMilli(),
		})

	case protocol.TypeStatus:
		c.sendStatus()

	case protocol.TypeCapture:
		c.reply(&msg, cam.CapturePhoto(ctx))

	case protocol.TypeVideoStart:
		c.reply(&msg, cam.VideoRecordStart(ctx))

	case protocol.TypeVideoStop:
		c.reply(&msg, cam.VideoRecordStop(ctx))

	case protocol.TypeSetSetting:
		var payload protocol.SetSettingPayload
		if err := msg.ParsePayload(&payload); err != nil {
			c.sendError(&msg, protocol.ErrInvalidMessage, err)
			return
		}
		c.reply(&msg, c.setSetting(ctx, payload))

	case protocol.TypeFocusStep:
		var payload protocol.FocusStepPayload
		if err := msg.ParsePayload(&payload); err != nil {
			c.sendError(&msg, protocol.ErrInvalidMessage, err)
			return
		}
		c.handleFocusStep(ctx, &msg, payload)

	case protocol.TypeRackFocus:
		var payload protocol.RackFocusPayload
		if err := msg.ParsePayload(&payload); err != nil {
			c.sendError(&msg, protocol.ErrInvalidMessage, err)
			return
		}
		c.handleRackFocus(msg, payload)

	case protocol.TypeRackCancel:
		c.rackMu.Lock()
		if c.rackCancel != nil {
			c.rackCancel()
		}
		c.rackMu.Unlock()

	case protocol.TypeQuery:
		var payload protocol.QueryPayload
		if err := msg.ParsePayload(&payload); err != nil {
			c.sendError(&msg, protocol.ErrInvalidMessage, err)
			return
		}
		c.handleQuery(ctx, &msg, payload)

	default:
		c.sendError(&msg, protocol.ErrInvalidMessage, fmt.Errorf("unknown message type %q", msg.Type))
	}
}

// reply sends a result for a checked command, or an error
func (c *Client) reply(msg *protocol.Message, err error) {
	if err != nil {
		c.sendError(msg, errorCode(err), err)
		return
	}
	c.sendResult(msg, "", nil)
}

func (c *Client) setSetting(ctx context.Context, p protocol.SetSettingPayload) error {
	cam := c.server.cam
	switch p.Setting {
	case protocol.SettingISO:
		return cam.SetISO(ctx, p.Value)
	case protocol.SettingAperture:
		return cam.SetFocal(ctx, p.Value)
	case protocol.SettingShutter:
		return cam.SetShutter(ctx, p.Value)
	case protocol.SettingVideoQuality:
		return cam.SetVideoQuality(ctx, p.Value)
	case protocol.SettingClock:
		var t time.Time
		if p.Value != "" {
			parsed, err := time.Parse(time.RFC3339, p.Value)
			if err != nil {
				return fmt.Errorf("invalid clock value: %w", err)
			}
			t = parsed
		}
		return cam.SetDate(ctx, t)
	}
	return cam.SetSetting(ctx, p.Setting, p.Value)
}

func (c *Client) handleFocusStep(ctx context.Context, msg *protocol.Message, p protocol.FocusStepPayload) {
	dir, err := lumix.ParseDirection(p.Direction)
	if err != nil {
		c.sendError(msg, protocol.ErrInvalidMessage, err)
		return
	}
	speed, err := lumix.ParseSpeed(p.Speed)
	if err != nil {
		c.sendError(msg, protocol.ErrInvalidMessage, err)
		return
	}
	if c.rackActive() {
		c.sendError(msg, protocol.ErrBusy, errors.New("rack focus in progress"))
		return
	}

	pos, err := c.server.cam.StepFocus(ctx, dir, speed)
	if err != nil {
		c.sendError(msg, errorCode(err), err)
		return
	}
	c.sendResult(msg, "", &pos)
}

// handleRackFocus runs the rack in the background so rack_cancel can be
// read while it moves
func (c *Client) handleRackFocus(msg protocol.Message, p protocol.RackFocusPayload) {
	start, err := lumix.ParseFocusTarget(p.Start)
	if err != nil {
		c.sendError(&msg, protocol.ErrInvalidMessage, err)
		return
	}
	end, err := lumix.ParseFocusTarget(p.End)
	if err != nil {
		c.sendError(&msg, protocol.ErrInvalidMessage, err)
		return
	}
	speed, err := lumix.ParseSpeed(p.Speed)
	if err != nil {
		c.sendError(&msg, protocol.ErrInvalidMessage, err)
		return
	}

	c.rackMu.Lock()
	if c.rackCancel != nil {
		c.rackMu.Unlock()
		c.sendError(&msg, protocol.ErrBusy, errors.New("rack focus in progress"))
		return
	}
	ctx, cancel := context.WithCancel(c.ctx)
	c.rackCancel = cancel
	c.rackMu.Unlock()

	go func() {
		defer func() {
			c.rackMu.Lock()
			c.rackCancel = nil
			c.rackMu.Unlock()
			cancel()
		}()

		pos, err := c.server.cam.RackFocus(ctx, lumix.RackOptions{
			Start:    start,
			End:      end,
			Speed:    speed,
			MaxSteps: p.MaxSteps,
		})
		if err != nil {
			c.sendError(&msg, errorCode(err), err)
			return
		}
		c.sendResult(&msg, "", &pos)
	}()
}

func (c *Client) rackActive() bool {
	c.rackMu.Lock()
	defer c.rackMu.Unlock()
	return c.rackCancel != nil
}

func (c *Client) handleQuery(ctx context.Context, msg *protocol.Message, p protocol.QueryPayload) {
	var (
		body string
		err  error
	)
	cam := c.server.cam
	switch p.Kind {
	case protocol.QueryInfo:
		body, err = cam.GetInfo(ctx, p.Type)
	case protocol.QuerySetting:
		body, err = cam.GetSetting(ctx, p.Type)
	case protocol.QueryState:
		body, err = cam.GetState(ctx)
	default:
		c.sendError(msg, protocol.ErrInvalidMessage, fmt.Errorf("unknown query kind %q", p.Kind))
		return
	}
	if err != nil {
		c.sendError(msg, errorCode(err), err)
		return
	}
	c.sendResult(msg, body, nil)
}

func errorCode(err error) string {
	switch {
	case errors.Is(err, lumix.ErrCommandFailed):
		return protocol.ErrCameraRejected
	case errors.Is(err, params.ErrUnknownLabel):
		return protocol.ErrUnknownLabel
	case errors.Is(err, lumix.ErrNotConverged):
		return protocol.ErrNotConverged
	}
	return protocol.ErrCamera
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(message.kind, message.data); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Close closes the client connection and cancels its rack focus
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true

	c.cancel()
	close(c.send)
}
