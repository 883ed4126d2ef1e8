package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/docchat/realtime/internal/client"
	"github.com/docchat/realtime/internal/events"
	"github.com/docchat/realtime/internal/infrastructure/config"
	"github.com/docchat/realtime/internal/infrastructure/logging"
	"github.com/docchat/realtime/internal/infrastructure/monitoring"
	"github.com/docchat/realtime/internal/rest"
	"github.com/docchat/realtime/internal/rooms"
	"github.com/docchat/realtime/internal/store"
	"github.com/docchat/realtime/internal/stream"
	"github.com/docchat/realtime/internal/wire"
)

func main() {
	projectID := flag.Int64("project", 0, "Project to join")
	chatID := flag.Int64("chat", 0, "Existing chat id (omit to create one)")
	model := flag.String("model", "", "Override the generation model")
	metricsAddr := flag.String("metrics", "", "Serve Prometheus metrics on this address (e.g. :9100)")
	flag.Parse()

	if *projectID == 0 {
		log.Fatal("Usage: docchat -project <id> [-chat <id>]")
	}

	cfg := config.LoadOrDefault()

	logger, err := logging.New(logging.Config{
		Level:       cfg.Logging.Level,
		Development: cfg.Logging.Development,
		OutputPaths: []string{"stderr"},
	})
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	metrics := monitoring.NewMetrics()
	if *metricsAddr != "" {
		go serveMetrics(*metricsAddr, metrics, logger)
	}

	bus := events.New()
	st := store.New()

	conn := client.New(client.Config{
		URL:              cfg.WSEndpoint(),
		Token:            cfg.Server.Token,
		MaxAttempts:      cfg.Realtime.MaxAttempts,
		BaseDelay:        cfg.Realtime.BaseDelay,
		MaxDelay:         cfg.Realtime.MaxDelay,
		ConnectTimeout:   cfg.Realtime.ConnectTimeout,
		HandshakeTimeout: cfg.Realtime.HandshakeTimeout,
		PingInterval:     cfg.Realtime.PingInterval,
		RejoinTimeout:    cfg.Realtime.RejoinTimeout,
	}, bus, logger, metrics)

	subscriber := rooms.New(conn, bus, logger)
	defer subscriber.Close()
	conn.OnReconnect(subscriber.Rejoin)
	conn.OnDisconnect(subscriber.LeaveCurrent)

	controller := stream.New(conn, st, bus, logger, metrics)
	defer controller.Close()

	bus.Subscribe(events.KindStatus, func(evt events.Event) {
		if s, ok := evt.Payload.(client.Status); ok {
			fmt.Fprintf(os.Stderr, "[%s]\n", s)
		}
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := conn.Connect(ctx); err != nil {
		logger.Fatal("Connect failed", zap.Error(err))
	}
	defer conn.Disconnect()

	subscriber.Join(*projectID)

	api := rest.New(cfg.Server.BaseURL, logger, rest.WithToken(cfg.Server.Token))

	chat := *chatID
	if chat == 0 {
		created, err := api.CreateChat(ctx, *projectID, "docchat session")
		if err != nil {
			logger.Fatal("Create chat failed", zap.Error(err))
		}
		chat = created.ID
		fmt.Fprintf(os.Stderr, "Created chat %d\n", chat)
	} else if err := api.LoadHistory(ctx, st, chat); err != nil {
		logger.Warn("History load failed", zap.Error(err))
	}

	for _, msg := range st.Messages(chat) {
		fmt.Printf("%s: %s\n", msg.Role, msg.Content)
	}

	repl(ctx, controller, chat, *model)
}

// repl reads one prompt per line and streams the response inline.
func repl(ctx context.Context, controller *stream.Controller, chatID int64, model string) {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		fmt.Print("> ")
		var line string
		var ok bool
		select {
		case <-ctx.Done():
			fmt.Println()
			return
		case line, ok = <-lines:
			if !ok {
				return
			}
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		done := make(chan struct{})
		err := controller.Send(chatID, line, stream.SendOptions{
			Model: model,
			OnToken: func(token string) {
				fmt.Print(token)
			},
			OnComplete: func(meta wire.CompletionMetadata) {
				fmt.Printf("\n(%s, %d sources)\n", meta.Model, meta.SourcesCount)
				close(done)
			},
			OnError: func(err error) {
				fmt.Fprintf(os.Stderr, "\nstream error: %v\n", err)
				close(done)
			},
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "send failed: %v\n", err)
			continue
		}

		select {
		case <-done:
		case <-ctx.Done():
			controller.Abandon(chatID)
			fmt.Println()
			return
		}
	}
}

func serveMetrics(addr string, metrics *monitoring.Metrics, logger *logging.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(metrics.Registry(), promhttp.HandlerOpts{}))
	logger.Info("Metrics listening", zap.String("addr", addr))
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Error("Metrics server stopped", zap.Error(err))
	}
}
