// Command ymsgtui is a terminal buddy list monitor. It runs the bot host in
// the background and shows the roster and what happens on the account.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/aeolun/ymsg/pkg/botlib"
	"github.com/aeolun/ymsg/pkg/client"
)

func main() {
	configPath := flag.String("config", "~/.ymsg/config.toml", "Path to config file")
	username := flag.String("user", "", "Yahoo ID (overrides config)")
	debug := flag.Bool("debug", false, "Write a debug log to the state directory")
	flag.Parse()

	cfg, err := client.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *username != "" {
		cfg.Account.Username = *username
	}
	if cfg.Account.Username == "" {
		fmt.Fprintln(os.Stderr, "No username configured; set [account] username or pass -user")
		os.Exit(1)
	}

	dbPath, err := cfg.DatabasePath()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to resolve database path: %v\n", err)
		os.Exit(1)
	}
	store, err := client.OpenStore(dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open state database: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	// the terminal belongs to the UI, so logs go to a file or nowhere
	var logOutput io.Writer = io.Discard
	if *debug {
		logPath := filepath.Join(store.GetStateDir(), "ymsgtui.log")
		f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open debug log: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		logOutput = f
	}

	config := botlib.ConfigFrom(cfg, store)
	config.Logger = log.New(logOutput, "[ymsgtui] ", log.LstdFlags)
	bot := botlib.New(config)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	done := make(chan error, 1)
	go func() {
		done <- bot.Run(ctx)
	}()

	final, err := tea.NewProgram(NewModel(bot, done), tea.WithAltScreen()).Run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "UI error: %v\n", err)
		os.Exit(1)
	}

	m, ok := final.(Model)
	if !ok || !m.finished {
		bot.Stop()
		stop()
		m.err = <-done
	}
	if m.err != nil {
		fmt.Fprintf(os.Stderr, "Bot error: %v\n", m.err)
		os.Exit(1)
	}
}
