// Command chatstreamd serves the chat API backed by a model provider and a
// session store.
//
// Usage:
//
//	ANTHROPIC_API_KEY=sk-... chatstreamd [flags]
//	GEMINI_API_KEY=gk-...   chatstreamd [flags]
//
// Flags:
//
//	-addr string          Listen address (default :8080)
//	-provider string      Provider: anthropic, gemini (auto-detected from env vars if omitted)
//	-model string         Model ID (env CHAT_MODEL_NAME)
//	-api-key string       API key (env CHAT_MODEL_API_KEY)
//	-base-url string      Provider endpoint override (env CHAT_MODEL_BASE_URL)
//	-store string         Session store: sqlite, json (default sqlite)
//	-data string          Database file or directory (default data/chatstream.db)
//	-history int          Messages of context sent to the model (default 20)
//	-rate float           Requests per second allowed (0 disables limiting)
//	-log-level string     Log level: debug, info, warn, error
//	-log-pretty           Human-readable logs
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/fwojciec/chatstream"
	chathttp "github.com/fwojciec/chatstream/http"
	chatprom "github.com/fwojciec/chatstream/prometheus"
	chatlog "github.com/fwojciec/chatstream/zerolog"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"
)

const (
	defaultSystemPrompt = "You are a helpful assistant."
	shutdownTimeout     = 10 * time.Second
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "chatstreamd: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		addr      = flag.String("addr", ":8080", "Listen address")
		provider  = flag.String("provider", "", "Provider: anthropic, gemini (auto-detected from env vars if omitted)")
		model     = flag.String("model", "", "Model ID (provider-specific)")
		apiKey    = flag.String("api-key", "", "API key (overrides provider's env var)")
		baseURL   = flag.String("base-url", "", "Provider endpoint override")
		storeKind = flag.String("store", "sqlite", "Session store: sqlite, json")
		dataPath  = flag.String("data", "data/chatstream.db", "Database file (sqlite) or directory (json)")
		history   = flag.Int("history", chatstream.DefaultHistoryLimit, "Messages of context sent to the model")
		rps       = flag.Float64("rate", 5, "Requests per second allowed (0 disables limiting)")
		burst     = flag.Int("burst", 10, "Request burst allowed by the rate limiter")
		logLevel  = flag.String("log-level", "info", "Log level: debug, info, warn, error")
		logPretty = flag.Bool("log-pretty", false, "Human-readable logs")
	)
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := chatlog.NewLogger(chatlog.Config{Level: *logLevel, Pretty: *logPretty})

	// Env vars are read here and passed as values.
	gcfg := generatorConfig{
		Provider:     *provider,
		APIKey:       firstNonEmpty(*apiKey, os.Getenv("CHAT_MODEL_API_KEY")),
		BaseURL:      firstNonEmpty(*baseURL, os.Getenv("CHAT_MODEL_BASE_URL")),
		Model:        firstNonEmpty(*model, os.Getenv("CHAT_MODEL_NAME")),
		SystemPrompt: defaultSystemPrompt,
		AnthropicKey: os.Getenv("ANTHROPIC_API_KEY"),
		GeminiKey:    os.Getenv("GEMINI_API_KEY"),
	}
	gen, providerName, err := resolveGenerator(ctx, gcfg)
	if err != nil {
		return err
	}

	store, closeStore, err := openStore(ctx, *storeKind, *dataPath)
	if err != nil {
		return err
	}
	defer closeStore()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	observer := chatstream.MultiObserver(
		chatlog.NewObserver(logger),
		chatprom.New(reg),
	)

	opts := []chathttp.ServerOption{
		chathttp.WithObserver(observer),
		chathttp.WithHistoryLimit(*history),
		chathttp.WithMetricsHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})),
	}
	if *rps > 0 {
		opts = append(opts, chathttp.WithRateLimit(rate.Limit(*rps), *burst))
	}

	srv := &http.Server{
		Addr:              *addr,
		Handler:           chathttp.NewServer(store, gen, opts...),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	ln, err := net.Listen("tcp", *addr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	printBanner(os.Stdout, ln.Addr().String(), providerName, *storeKind, *dataPath)
	logger.Info().Str("addr", ln.Addr().String()).Str("provider", providerName).Str("store", *storeKind).Msg("server started")

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func printBanner(w io.Writer, addr, provider, store, data string) {
	title := color.New(color.FgGreen, color.Bold).SprintFunc()
	value := color.New(color.FgCyan).SprintFunc()
	fmt.Fprintln(w, title("chatstreamd"))
	fmt.Fprintf(w, "  listening on %s\n", value(addr))
	fmt.Fprintf(w, "  provider     %s\n", value(provider))
	fmt.Fprintf(w, "  store        %s (%s)\n", value(store), data)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
