// Package gateway - stats.go exposes operational endpoints.
//
// GET /stats returns the in-memory counters, GET /stats/ws pushes the same
// payload over a websocket, and POST /prewarm refreshes yesterday on demand.
// All three are restricted to localhost.
package gateway

import (
	"context"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog/log"

	"github.com/compresr/cost-insights/internal/costcache"
)

// PrewarmResponse is the JSON response for POST /prewarm.
type PrewarmResponse struct {
	Day    string `json:"day"`
	Rows   int    `json:"rows"`
	Cached bool   `json:"cached"`
	Error  string `json:"error,omitempty"`
}

// handleStats returns aggregated metrics as JSON.
// Restricted to localhost to prevent external access to operational metrics.
func (g *Gateway) handleStats(w http.ResponseWriter, r *http.Request) {
	if !isLoopback(r.RemoteAddr) {
		g.writeError(w, "forbidden", http.StatusForbidden)
		return
	}
	writeJSON(w, http.StatusOK, g.metrics.FullStats())
}

// handleStatsWS pushes the /stats payload every StatsPushInterval until the
// client disconnects.
func (g *Gateway) handleStatsWS(w http.ResponseWriter, r *http.Request) {
	if !isLoopback(r.RemoteAddr) {
		g.writeError(w, "forbidden", http.StatusForbidden)
		return
	}

	// The server's write timeout would otherwise cut the stream.
	_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("stats websocket accept failed")
		return
	}
	defer func() { _ = conn.CloseNow() }()

	// Clients only listen; CloseRead handles their close frame and cancels ctx.
	ctx := conn.CloseRead(r.Context())

	interval := g.config.Monitoring.StatsPushInterval
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := g.pushStats(ctx, conn); err != nil {
			log.Debug().Err(err).Msg("stats websocket closed")
			return
		}
		select {
		case <-ctx.Done():
			_ = conn.Close(websocket.StatusNormalClosure, "done")
			return
		case <-ticker.C:
		}
	}
}

func (g *Gateway) pushStats(ctx context.Context, conn *websocket.Conn) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return wsjson.Write(ctx, conn, g.metrics.FullStats())
}

// handlePrewarm runs one prewarm pass for yesterday and reports the outcome.
func (g *Gateway) handlePrewarm(w http.ResponseWriter, r *http.Request) {
	if !isLoopback(r.RemoteAddr) {
		g.writeError(w, "forbidden", http.StatusForbidden)
		return
	}
	if g.prewarmer == nil {
		g.writeError(w, "prewarm is not configured", http.StatusServiceUnavailable)
		return
	}

	res := g.prewarmer.PrewarmYesterday(r.Context())
	out := PrewarmResponse{
		Day:    costcache.FormatDay(res.Day),
		Rows:   res.Rows,
		Cached: res.Cached,
	}
	status := http.StatusOK
	if res.Err != nil {
		out.Error = res.Err.Error()
		status = http.StatusBadGateway
	}
	writeJSON(w, status, out)
}
