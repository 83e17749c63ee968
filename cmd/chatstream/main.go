// Command chatstream is a terminal client for a chatstream server.
//
// Usage:
//
//	chatstream [flags]
//
// Flags:
//
//	-config string     Path to TOML config (default: ~/.config/chatstream/config.toml)
//	-url string        Server base URL (env CHATSTREAM_URL)
//	-streaming         Use the streaming endpoint (env CHATSTREAM_STREAMING)
//	-session string    ID of a session to resume
//	-list              List sessions and exit
//	-retitle           Generate a new title for -session and exit
//	-log-level string  Log level: debug, info, warn, error (env CHATSTREAM_LOG_LEVEL)
//	-log-file string   Write logs to this file instead of discarding them
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"text/tabwriter"

	"github.com/fwojciec/chatstream"
	bt "github.com/fwojciec/chatstream/bubbletea"
	"github.com/fwojciec/chatstream/goldmark"
	chathttp "github.com/fwojciec/chatstream/http"
	chatlog "github.com/fwojciec/chatstream/zerolog"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "chatstream: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath = flag.String("config", "", "Path to TOML config file")
		url        = flag.String("url", "", "Server base URL")
		streaming  = flag.Bool("streaming", true, "Use the streaming endpoint")
		sessionID  = flag.String("session", "", "ID of a session to resume")
		list       = flag.Bool("list", false, "List sessions and exit")
		retitle    = flag.Bool("retitle", false, "Generate a new title for -session and exit")
		logLevel   = flag.String("log-level", "", "Log level: debug, info, warn, error")
		logFile    = flag.String("log-file", "", "Write logs to this file")
	)
	flag.Parse()

	path, isDefault := *configPath, false
	if path == "" {
		path, isDefault = defaultConfigPath(), true
	}
	cfg, err := loadConfigFile(DefaultConfig(), path, isDefault)
	if err != nil {
		return err
	}
	if cfg, err = applyEnv(cfg, os.LookupEnv); err != nil {
		return err
	}
	// Flags win, but only when given explicitly.
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "url":
			cfg.URL = *url
		case "streaming":
			cfg.Streaming = *streaming
		case "log-level":
			cfg.LogLevel = *logLevel
		case "log-file":
			cfg.LogFile = *logFile
		}
	})
	if err := cfg.validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	logOut, closeLog, err := openLog(cfg.LogFile)
	if err != nil {
		return err
	}
	defer closeLog()
	observer := chatlog.NewObserver(chatlog.NewLogger(chatlog.Config{Level: cfg.LogLevel, Output: logOut}))

	client := chathttp.NewClient(cfg.URL, chathttp.WithHTTPClient(&http.Client{}))

	if *list {
		return listSessions(ctx, client, os.Stdout)
	}
	if *retitle {
		return retitleSession(ctx, client, *sessionID, os.Stdout)
	}

	opts := []bt.Option{
		bt.WithObserver(observer),
		bt.WithRenderOptions(chatstream.WithSettleDelay(cfg.SettleDelay())),
	}
	if *sessionID != "" {
		resumed, err := resumeSession(ctx, client, *sessionID)
		if err != nil {
			return err
		}
		opts = append(opts, resumed...)
	}

	sender := chatstream.NewSender(client,
		chatstream.WithStreamTransport(client),
		chatstream.WithStreamingSupport(cfg.Streaming),
		chatstream.WithSessionStore(client),
		chatstream.WithSenderObserver(observer),
	)
	renderer := goldmark.New(chatstream.DefaultTheme(),
		goldmark.WithCodeStyle(cfg.CodeStyle),
		goldmark.WithHighlighting(cfg.Highlight),
	)

	if err := bt.Run(ctx, bt.New(sender, renderer, opts...)); err != nil {
		return fmt.Errorf("TUI: %w", err)
	}
	return nil
}

// openLog returns the log destination. The TUI owns the terminal, so logs
// are discarded unless a file is configured.
func openLog(path string) (io.Writer, func(), error) {
	if path == "" {
		return io.Discard, func() {}, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, nil, fmt.Errorf("create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	return f, func() { f.Close() }, nil
}

// resumeSession loads a stored session and returns the options that bind
// the TUI to it.
func resumeSession(ctx context.Context, store chatstream.SessionStore, id string) ([]bt.Option, error) {
	sessions, err := store.ListSessions(ctx)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	var found *chatstream.Session
	for i := range sessions {
		if sessions[i].ID == id {
			found = &sessions[i]
			break
		}
	}
	if found == nil {
		return nil, fmt.Errorf("resume %q: %w", id, chatstream.ErrSessionNotFound)
	}
	history, err := store.ListMessages(ctx, id, 0, 0)
	if err != nil {
		return nil, fmt.Errorf("load messages: %w", err)
	}
	return []bt.Option{bt.WithSession(found.ID, found.Title), bt.WithHistory(history)}, nil
}

// titler generates a session title on the server.
type titler interface {
	GenerateTitle(ctx context.Context, id string) (string, error)
}

func retitleSession(ctx context.Context, t titler, id string, w io.Writer) error {
	if id == "" {
		return errors.New("-retitle requires -session")
	}
	title, err := t.GenerateTitle(ctx, id)
	if err != nil {
		return fmt.Errorf("retitle %q: %w", id, err)
	}
	_, err = fmt.Fprintln(w, title)
	return err
}

func listSessions(ctx context.Context, store chatstream.SessionStore, w io.Writer) error {
	sessions, err := store.ListSessions(ctx)
	if err != nil {
		return fmt.Errorf("list sessions: %w", err)
	}
	if len(sessions) == 0 {
		_, err := fmt.Fprintln(w, "No sessions.")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tMESSAGES\tLAST ACTIVE")
	for _, s := range sessions {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", s.ID, s.Title, s.MessageCount, s.LastActiveAt.Local().Format("2006-01-02 15:04"))
	}
	if err := tw.Flush(); err != nil {
		return fmt.Errorf("write session list: %w", err)
	}
	return nil
}
