// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Thermoquad/vestat/pkg/feed"
	"github.com/Thermoquad/vestat/pkg/metrics"
	"github.com/Thermoquad/vestat/pkg/vedirect"
	"github.com/Thermoquad/vestat/pkg/victron"
)

var (
	listenAddress string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Export charger state over HTTP",
	Long: `Decode the VE.Direct stream and serve the charger state.

Endpoints:
  GET  /metrics        Prometheus metrics (decoder counters and charger gauges)
  GET  /latest         Most recent snapshot as JSON (404 while stale)
  GET  /ws             WebSocket feed of CBOR snapshots
  POST /current-limit  Set the battery charge current limit (?amps=N)

Current limit writes go to non-volatile memory on the device and are rate
limited (decoder.limit_interval); excess requests get 429.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&listenAddress, "listen", "", "HTTP listen address (default from config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	if listenAddress == "" {
		listenAddress = cfg.Server.ListenAddress
	}

	conn, connInfo, err := OpenConnection()
	if err != nil {
		return err
	}
	defer conn.Close()

	mppt := victron.NewMPPT(
		victron.WithMPPTLogger(logger.Named("mppt")),
		victron.WithMaxAge(cfg.Decoder.MaxAge.Duration),
		victron.WithPollInterval(cfg.Decoder.PollInterval.Duration),
	)
	link := newLink(conn, mppt, vedirect.WithErrorHandler(func(err error) {
		logger.Debug("frame rejected", zap.Error(err))
	}))
	charger := newCharger(link)

	latest := func() []byte {
		if !mppt.IsDataValid() {
			return nil
		}
		msg, err := victron.EncodeSnapshot(mppt.Data(), mppt.ExtData(), mppt.LastUpdate())
		if err != nil {
			logger.Error("snapshot encoding failed", zap.Error(err))
			return nil
		}
		return msg
	}
	hub := feed.NewHub(latest, logger.Named("feed"))
	defer hub.Close()

	reg := metrics.NewRegistry()
	reg.MustRegister(metrics.NewDecoderCollector(link.Statistics))
	reg.MustRegister(metrics.NewMPPTCollector(mppt))

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler(reg))
	mux.Handle("/ws", hub)
	mux.HandleFunc("/latest", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if !mppt.IsDataValid() {
			w.WriteHeader(http.StatusNotFound)
			json.NewEncoder(w).Encode(map[string]string{"error": "no current data"})
			return
		}
		json.NewEncoder(w).Encode(victron.NewSnapshot(mppt.Data(), mppt.ExtData(), mppt.LastUpdate()))
	})
	mux.HandleFunc("/current-limit", currentLimitHandler(charger))

	server := &http.Server{
		Addr:              listenAddress,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, cancel := signalContext()
	defer cancel()

	linkErr := make(chan error, 1)
	go func() {
		linkErr <- runLink(ctx, conn, link)
		cancel()
	}()
	go pollLoop(ctx, mppt, link)
	go broadcastLoop(ctx, hub, latest)

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.ListenAndServe()
	}()

	logger.Info("serving",
		zap.String("connection", connInfo),
		zap.String("listen", listenAddress))
	fmt.Printf("Vestat - Serving %s on http://%s\n", connInfo, listenAddress)

	select {
	case err := <-serverErr:
		cancel()
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	return <-linkErr
}

// broadcastLoop pushes the latest snapshot to feed clients
func broadcastLoop(ctx context.Context, hub *feed.Hub, latest func() []byte) {
	interval := cfg.Server.SnapshotInterval.Duration
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if hub.Len() == 0 {
				continue
			}
			if msg := latest(); msg != nil {
				hub.Broadcast(msg)
			}
		}
	}
}

// currentLimitHandler applies POST /current-limit?amps=N
func currentLimitHandler(charger *victron.Charger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		amps, err := strconv.ParseUint(r.FormValue("amps"), 10, 16)
		if err != nil {
			http.Error(w, "amps must be a non-negative integer", http.StatusBadRequest)
			return
		}

		err = charger.SetBatteryCurrentLimit(uint16(amps))
		switch {
		case err == nil:
			w.WriteHeader(http.StatusAccepted)
		case errors.Is(err, victron.ErrRateLimited):
			http.Error(w, err.Error(), http.StatusTooManyRequests)
		case errors.Is(err, vedirect.ErrInvalidArgument):
			http.Error(w, err.Error(), http.StatusBadRequest)
		default:
			logger.Warn("current limit write failed", zap.Error(err))
			http.Error(w, err.Error(), http.StatusBadGateway)
		}
	}
}
