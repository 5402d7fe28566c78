package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/codefionn/sqmean/internal/consts"
	"github.com/codefionn/sqmean/internal/logger"
	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
)

// minWatchInterval bounds how often /watch may push stats.
const minWatchInterval = 10 * time.Millisecond

// statusServer serves read-only health and stats endpoints over HTTP.
type statusServer struct {
	srv    *http.Server
	ln     net.Listener
	router *httprouter.Router
	s      *Server
	log    *logger.Logger
}

func newStatusServer(s *Server, addr string) (*statusServer, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen for status on %s: %w", addr, err)
	}

	st := &statusServer{
		ln:     ln,
		router: httprouter.New(),
		s:      s,
		log:    s.log.WithPrefix("status"),
	}
	st.setupRoutes()
	st.srv = &http.Server{
		Handler:           st.router,
		ReadHeaderTimeout: 5 * time.Second,
		ErrorLog:          logger.NewStdLogger(st.log, slog.LevelWarn),
	}
	return st, nil
}

func (st *statusServer) setupRoutes() {
	st.router.GET("/health", st.handleHealth)
	st.router.GET("/stats", st.handleStats)
	st.router.GET("/watch", st.handleWatch)
}

// start serves in the background. onFail receives any error other than the
// one caused by shutdown.
func (st *statusServer) start(onFail func(error)) {
	st.log.Info("status endpoint on http://%s", st.ln.Addr())
	go func() {
		if err := st.srv.Serve(st.ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			onFail(fmt.Errorf("status endpoint: %w", err))
		}
	}()
}

func (st *statusServer) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), consts.StatusShutdownTimeout)
	defer cancel()
	if err := st.srv.Shutdown(ctx); err != nil {
		st.log.Warn("shutdown: %v", err)
	}
}

func (st *statusServer) addr() net.Addr {
	return st.ln.Addr()
}

// handleHealth returns 200 while the server accepts connections and 503 otherwise
func (st *statusServer) handleHealth(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	state := st.s.State()
	code := http.StatusOK
	if state != StateRunning {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]string{
		"status": state.String(),
		"time":   time.Now().Format(time.RFC3339),
	})
}

func (st *statusServer) handleStats(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	writeJSON(w, http.StatusOK, st.s.Stats())
}

// handleWatch pushes Stats over a websocket every interval (query parameter,
// default consts.StatsPushInterval) until the client goes away. When the
// server stops, the final Stats are sent followed by a going-away close frame.
func (st *statusServer) handleWatch(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	interval := consts.StatsPushInterval
	if v := r.URL.Query().Get("interval"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d < minWatchInterval {
			http.Error(w, fmt.Sprintf("invalid interval %q", v), http.StatusBadRequest)
			return
		}
		interval = d
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
	}
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied with an HTTP error.
		st.log.Warn("websocket upgrade: %v", err)
		return
	}
	defer ws.Close()

	// Incoming messages are ignored; reading is only needed to notice the
	// client closing and to answer pings.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		ws.SetReadLimit(512)
		for {
			if _, _, err := ws.NextReader(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					st.log.Debug("watch client: %v", err)
				}
				return
			}
		}
	}()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := st.push(ws); err != nil {
			st.log.Debug("watch push: %v", err)
			return
		}

		select {
		case <-ticker.C:
		case <-gone:
			return
		case <-st.s.finished:
			if err := st.push(ws); err != nil {
				return
			}
			_ = ws.SetWriteDeadline(time.Now().Add(consts.WriteTimeout))
			_ = ws.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server stopped"))
			return
		}
	}
}

func (st *statusServer) push(ws *websocket.Conn) error {
	_ = ws.SetWriteDeadline(time.Now().Add(consts.WriteTimeout))
	return ws.WriteJSON(st.s.Stats())
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
