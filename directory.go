/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// directoryClient publishes this server's address record to an external
// directory service so clients can discover it, and releases the record on
// shutdown. Both calls are best-effort: a directory outage is logged, never
// fatal to the game server.
type directoryClient struct {
	url    string
	client *http.Client
	log    *zap.SugaredLogger
}

func newDirectoryClient(cfg *Config, log *zap.SugaredLogger) *directoryClient {
	return &directoryClient{
		url:    cfg.directoryURL,
		client: &http.Client{Timeout: 10 * time.Second},
		log:    log,
	}
}

// localIP determines the address other machines can reach us on by opening
// a UDP socket toward a non-local address and reading back the chosen
// source. No traffic is actually sent.
func localIP() string {
	conn, err := net.Dial("udp", "10.254.254.254:1")
	if err != nil {
		return "127.0.0.1"
	}
	defer conn.Close()

	if addr, ok := conn.LocalAddr().(*net.UDPAddr); ok {
		return addr.IP.String()
	}

	return "127.0.0.1"
}

func (d *directoryClient) post(ctx context.Context, record map[string]string) error {
	body, err := json.Marshal(record)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("directory responded %s", resp.Status)
	}

	return nil
}

func (d *directoryClient) register(ctx context.Context) {
	if d.url == "" {
		return
	}

	ip := localIP()
	if err := d.post(ctx, map[string]string{"ip": ip, "action": "start"}); err != nil {
		d.log.Warnw("directory registration failed", "error", err)
		return
	}

	d.log.Infow("registered with directory", "ip", ip)
}

func (d *directoryClient) release() {
	if d.url == "" {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := d.post(ctx, map[string]string{"action": "stop"}); err != nil {
		d.log.Warnw("directory release failed", "error", err)
		return
	}

	d.log.Info("released directory record")
}
