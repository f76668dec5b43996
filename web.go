/*
Copyright © 2025 Seednode <seednode@seedno.de>
*/

package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
	"github.com/skip2/go-qrcode"
	"go.uber.org/zap"
)

const adminTimeout = 10 * time.Second

// startAdmin brings up the optional observability surface: health, version,
// registry counters, a QR code for the game address, the WebSocket
// transport, and pprof when enabled. Returns nil when disabled.
func startAdmin(cfg *Config, hub *Hub, log *zap.SugaredLogger) *http.Server {
	if cfg.adminPort == 0 {
		return nil
	}

	mux := httprouter.New()

	mux.GET("/healthz", serveHealthCheck())
	mux.GET("/version", serveVersion())
	mux.GET("/stats", serveStats(hub))
	mux.GET("/qr", serveQR(cfg))
	mux.GET("/ws", serveWS(cfg, hub, log))

	if cfg.profile {
		registerProfileHandlers(mux)
	}

	srv := &http.Server{
		Addr:              net.JoinHostPort(cfg.bind, strconv.Itoa(cfg.adminPort)),
		Handler:           mux,
		IdleTimeout:       10 * time.Minute,
		ReadHeaderTimeout: adminTimeout,
	}

	go func() {
		log.Infof("admin surface listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorw("admin surface failed", "error", err)
		}
	}()

	return srv
}

func serveHealthCheck() httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")

		_, _ = w.Write([]byte("Ok\n"))
	}
}

func serveVersion() httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")

		_, _ = w.Write([]byte("mazerace v" + releaseVersion + "\n"))
	}
}

func serveStats(hub *Hub) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")

		_ = json.NewEncoder(w).Encode(hub.Stats())
	}
}

// serveQR renders the game server's TCP address as a QR PNG so players on
// the same network can point a client at it without typing.
func serveQR(cfg *Config) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		addr := fmt.Sprintf("%s:%d", localIP(), cfg.port)

		const qrSize = 320
		png, err := qrcode.Encode(addr, qrcode.Medium, qrSize)
		if err != nil {
			http.Error(w, "qr generation failed", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(png)
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// wsWire adapts a WebSocket connection to the envelope transport: one JSON
// envelope per message, with the WebSocket frame taking the place of the
// TCP length prefix.
type wsWire struct {
	conn *websocket.Conn
}

func (w *wsWire) ReadEnvelope() (Envelope, error) {
	_, data, err := w.conn.ReadMessage()
	if err != nil {
		return Envelope{}, err
	}

	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, fmt.Errorf("decoding envelope: %w", err)
	}

	return env, nil
}

func (w *wsWire) WriteEnvelope(env Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("encoding envelope: %w", err)
	}

	_ = w.conn.SetWriteDeadline(time.Now().Add(writeTimeout))

	return w.conn.WriteMessage(websocket.TextMessage, data)
}

func (w *wsWire) Close() error {
	return w.conn.Close()
}

func (w *wsWire) RemoteAddr() string {
	return w.conn.RemoteAddr().String()
}

// serveWS speaks the same protocol as the TCP listener, for browser
// clients. The connection cap covers both transports.
func serveWS(cfg *Config, hub *Hub, log *zap.SugaredLogger) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		if hub.ClientCount() >= cfg.maxClients {
			http.Error(w, "server full", http.StatusServiceUnavailable)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Warnw("websocket upgrade failed", "error", err)
			return
		}

		c := newClient(&wsWire{conn: conn})
		hub.register(c)

		go c.writePump(hub)
		c.readPump(hub)
	}
}
