package main

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/url"
	"strconv"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true // Non-browser clients don't send Origin
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		return u.Host == r.Host
	},
}

// RankingSource answers leaderboard queries
type RankingSource interface {
	Rankings(ctx context.Context, playerName string, limit int) (Rankings, error)
}

// StatsResponse is served by /api/stats
type StatsResponse struct {
	DirectoryStats
	Connections int `json:"connections"`
}

func extractIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// SetupRoutes configures HTTP routes. rankings may be nil when persistence
// is disabled.
func SetupRoutes(hub *Hub, dir *Directory, rankings RankingSource, clientDir string) *http.ServeMux {
	mux := http.NewServeMux()

	// Serve static files with no-cache so browsers always revalidate
	fs := http.FileServer(http.Dir(clientDir))
	mux.Handle("/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-cache")
		fs.ServeHTTP(w, r)
	}))

	mux.HandleFunc("GET /api/rankings", func(w http.ResponseWriter, r *http.Request) {
		if rankings == nil {
			http.Error(w, "rankings unavailable", http.StatusServiceUnavailable)
			return
		}
		q := r.URL.Query()
		limit := 0
		if s := q.Get("limit"); s != "" {
			n, err := strconv.Atoi(s)
			if err != nil || n <= 0 {
				http.Error(w, "invalid limit", http.StatusBadRequest)
				return
			}
			limit = n
		}
		res, err := rankings.Rankings(r.Context(), q.Get("playerName"), limit)
		if err != nil {
			hub.logger.Error("rankings query failed", "error", err)
			http.Error(w, "rankings unavailable", http.StatusInternalServerError)
			return
		}
		writeJSON(w, res)
	})

	mux.HandleFunc("GET /api/stats", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, StatsResponse{
			DirectoryStats: dir.Stats(),
			Connections:    hub.ClientCount(),
		})
	})

	// WebSocket endpoint; ?enc=msgpack selects binary frames
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		ip := extractIP(r)
		if !hub.CanAccept(ip) {
			http.Error(w, "too many connections", http.StatusServiceUnavailable)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			hub.logger.Warn("upgrade failed", "ip", ip, "error", err)
			return
		}

		hub.TrackConnect(ip)

		client := NewClient(hub, conn, CodecByName(r.URL.Query().Get("enc")), ip)
		if err := hub.Attach(client); err != nil {
			return
		}

		go client.WritePump()
		go client.ReadPump()
	})

	return mux
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")
	json.NewEncoder(w).Encode(v)
}
