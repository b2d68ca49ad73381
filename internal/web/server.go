package web

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/guidoenr/visualsound/internal/analyzer"
	"github.com/guidoenr/visualsound/internal/control"
	"github.com/guidoenr/visualsound/internal/render"
)

//go:embed static
var staticFiles embed.FS

// AppInterface is the part of the running application the API drives.
type AppInterface interface {
	Status() Status
	Update(req UpdateRequest) error
	Press(b control.Button)
	Save() error
}

// Status is reported by /api/status and pushed to websocket clients.
type Status struct {
	FPS        float64           `json:"fps"`
	Frames     uint64            `json:"frames"`
	Display    string            `json:"display"`
	Size       [3]int            `json:"size"`
	Scene      string            `json:"scene"`
	SceneIndex int               `json:"sceneIndex"`
	Style      int               `json:"style"`
	Palette    int               `json:"palette"`
	EditMode   bool              `json:"editMode"`
	Brightness int               `json:"brightness"`
	Volume     int               `json:"volume"`
	Track      control.Track     `json:"track"`
	Media      string            `json:"media"`
	Audio      AudioStatus       `json:"audio"`
	Features   analyzer.Features `json:"features"`
}

type AudioStatus struct {
	Input   string `json:"input"`
	Output  string `json:"output"`
	Running bool   `json:"running"`
	Error   string `json:"error,omitempty"`
}

// UpdateRequest is a partial update; nil fields are left alone.
type UpdateRequest struct {
	Scene      *string        `json:"scene,omitempty"`
	Style      *int           `json:"style,omitempty"`
	Palette    *int           `json:"palette,omitempty"`
	Brightness *int           `json:"brightness,omitempty"`
	Volume     *int           `json:"volume,omitempty"`
	Analysis   *string        `json:"analysis,omitempty"`
	Input      *string        `json:"input,omitempty"`
	Output     *string        `json:"output,omitempty"`
	Track      *control.Track `json:"track,omitempty"`
}

// Config controls the server.
type Config struct {
	Addr           string
	StatusInterval time.Duration
	Log            logrus.FieldLogger
}

type message struct {
	kind int
	data []byte
}

type websocketClient struct {
	conn   *websocket.Conn
	send   chan message
	server *Server
}

// Server serves the control API and streams frames to browsers. It also
// implements display.Link so it can sit next to the hardware link.
type Server struct {
	cfg      Config
	log      logrus.FieldLogger
	upgrader websocket.Upgrader
	http     *http.Server

	mu      sync.RWMutex
	app     AppInterface
	clients map[*websocketClient]bool

	frameMu sync.Mutex
	frame   []byte

	stop     chan struct{}
	stopOnce sync.Once
}

func NewServer(cfg Config) *Server {
	if cfg.Addr == "" {
		cfg.Addr = ":8080"
	}
	if cfg.StatusInterval <= 0 {
		cfg.StatusInterval = 500 * time.Millisecond
	}
	if cfg.Log == nil {
		cfg.Log = logrus.StandardLogger()
	}
	return &Server{
		cfg:     cfg,
		log:     cfg.Log.WithField("component", "web"),
		clients: make(map[*websocketClient]bool),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		stop: make(chan struct{}),
	}
}

// Attach connects the application. Until then the API answers 503.
func (s *Server) Attach(app AppInterface) {
	s.mu.Lock()
	s.app = app
	s.mu.Unlock()
}

func (s *Server) application() AppInterface {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.app
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	static, _ := fs.Sub(staticFiles, "static")
	mux.Handle("GET /", http.FileServer(http.FS(static)))
	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("POST /api/update", s.handleUpdate)
	mux.HandleFunc("POST /api/save", s.handleSave)
	mux.HandleFunc("POST /api/button/{name}", s.handleButton)
	mux.HandleFunc("GET /api/scenes", s.handleScenes)
	mux.HandleFunc("GET /api/palette", s.handlePalette)
	mux.HandleFunc("GET /ws", s.handleWebSocket)
	return mux
}

// Start listens on the configured address and serves until Shutdown. It
// returns once the listener is bound.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.cfg.Addr, err)
	}
	s.http = &http.Server{Handler: s.Handler(), ReadHeaderTimeout: 5 * time.Second}
	s.log.WithField("addr", ln.Addr().String()).Info("web server listening")

	go s.statusUpdateLoop()
	go func() {
		if err := s.http.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.WithError(err).Error("web server stopped")
		}
	}()
	return nil
}

// Shutdown stops the HTTP server and disconnects every client.
func (s *Server) Shutdown(ctx context.Context) error {
	s.stopOnce.Do(func() { close(s.stop) })
	s.mu.Lock()
	for c := range s.clients {
		close(c.send)
		delete(s.clients, c)
	}
	s.mu.Unlock()
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	app := s.application()
	if app == nil {
		http.Error(w, "starting", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, app.Status())
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	app := s.application()
	if app == nil {
		http.Error(w, "starting", http.StatusServiceUnavailable)
		return
	}
	var req UpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := app.Update(req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, map[string]string{"status": "ok"})
}

func (s *Server) handleSave(w http.ResponseWriter, r *http.Request) {
	app := s.application()
	if app == nil {
		http.Error(w, "starting", http.StatusServiceUnavailable)
		return
	}
	if err := app.Save(); err != nil {
		http.Error(w, fmt.Sprintf("failed to save settings: %v", err), http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]string{"status": "saved"})
}

func (s *Server) handleButton(w http.ResponseWriter, r *http.Request) {
	app := s.application()
	if app == nil {
		http.Error(w, "starting", http.StatusServiceUnavailable)
		return
	}
	b, ok := control.ParseButton(r.PathValue("name"))
	if !ok {
		http.Error(w, "unknown button", http.StatusNotFound)
		return
	}
	app.Press(b)
	writeJSON(w, map[string]string{"status": "ok", "button": b.String()})
}

func (s *Server) handleScenes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, render.Names())
}

func (s *Server) handlePalette(w http.ResponseWriter, r *http.Request) {
	pal := render.Palette()
	out := make([][2]string, len(pal))
	for i, p := range pal {
		out[i] = [2]string{hexColor(p.Primary.R, p.Primary.G, p.Primary.B), hexColor(p.Secondary.R, p.Secondary.G, p.Secondary.B)}
	}
	writeJSON(w, out)
}

func hexColor(r, g, b uint8) string {
	return fmt.Sprintf("#%02x%02x%02x", r, g, b)
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.WithError(err).Warn("websocket upgrade failed")
		return
	}

	client := &websocketClient{
		conn:   conn,
		send:   make(chan message, 16),
		server: s,
	}

	s.mu.Lock()
	s.clients[client] = true
	s.mu.Unlock()

	go client.writePump()
	go client.readPump()
}

// Clients returns the number of connected websocket clients.
func (s *Server) Clients() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

// broadcast queues msg for every client. Frames are dropped for clients that
// are behind; a client that cannot take status updates is disconnected.
func (s *Server) broadcast(msg message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for client := range s.clients {
		select {
		case client.send <- msg:
		default:
			if msg.kind == websocket.TextMessage {
				close(client.send)
				delete(s.clients, client)
			}
		}
	}
}

func (s *Server) statusUpdateLoop() {
	ticker := time.NewTicker(s.cfg.StatusInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
		}
		app := s.application()
		if app == nil || s.Clients() == 0 {
			continue
		}
		data, err := json.Marshal(app.Status())
		if err == nil {
			s.broadcast(message{kind: websocket.TextMessage, data: data})
		}
	}
}

// Open implements display.Link.
func (s *Server) Open() error { return nil }

// Write implements display.Link: the frame is kept until Present.
func (s *Server) Write(p []byte) (int, error) {
	s.frameMu.Lock()
	s.frame = append(s.frame[:0], p...)
	s.frameMu.Unlock()
	return len(p), nil
}

// Present implements display.Link by pushing the last frame to clients.
func (s *Server) Present() error {
	if s.Clients() == 0 {
		return nil
	}
	s.frameMu.Lock()
	data := append([]byte(nil), s.frame...)
	s.frameMu.Unlock()
	s.broadcast(message{kind: websocket.BinaryMessage, data: data})
	return nil
}

// Close implements display.Link. The HTTP side keeps running until Shutdown.
func (s *Server) Close() error { return nil }

func (c *websocketClient) readPump() {
	defer func() {
		c.server.mu.Lock()
		if c.server.clients[c] {
			delete(c.server.clients, c)
			close(c.send)
		}
		c.server.mu.Unlock()
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		_, _, err := c.conn.ReadMessage()
		if err != nil {
			break
		}
	}
}

func (c *websocketClient) writePump() {
	ticker := time.NewTicker(54 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(msg.kind, msg.data); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
