/*
Copyright © 2025 Seednode <seednode@seedno.de>
*/

package main

import (
	"context"
	"errors"
	"net"
	"strconv"
	"time"

	"go.uber.org/zap"
)

// Serve runs the maze race server until ctx is cancelled: the TCP accept
// loop, the heartbeat monitor, the optional admin surface, and the
// directory registration lifecycle.
func Serve(ctx context.Context, cfg *Config) error {
	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer func() {
		_ = log.Sync()
	}()

	hub := NewHub(cfg, log)

	addr := net.JoinHostPort(cfg.bind, strconv.Itoa(cfg.port))
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	dir := newDirectoryClient(cfg, log)
	dir.register(ctx)
	defer dir.release()

	sweepCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go hub.monitorHeartbeats(sweepCtx)

	adminSrv := startAdmin(cfg, hub, log)

	go acceptLoop(listener, hub, cfg, log)
	log.Infof("mazerace v%s listening on %s", releaseVersion, addr)

	<-ctx.Done()
	log.Info("shutting down")

	_ = listener.Close()

	if adminSrv != nil {
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancelShutdown()
		_ = adminSrv.Shutdown(shutdownCtx)
	}

	hub.closeAll()

	return nil
}

// acceptLoop admits connections up to the configured cap. Connections over
// capacity are refused before any servicing rather than accepted and then
// dropped mid-session.
func acceptLoop(listener net.Listener, hub *Hub, cfg *Config, log *zap.SugaredLogger) {
	for {
		conn, err := listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			log.Warnw("accept failed", "error", err)
			continue
		}

		if hub.ClientCount() >= cfg.maxClients {
			log.Warnw("refusing connection, server full", "remote", conn.RemoteAddr())
			_ = conn.Close()
			continue
		}

		c := newClient(newTCPWire(conn))
		hub.register(c)

		go c.writePump(hub)
		go c.readPump(hub)
	}
}
