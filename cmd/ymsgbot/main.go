// Command ymsgbot is a headless YMSG bot. It logs in with the account from
// the config file, answers mentions and optionally auto-replies to IMs.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/aeolun/ymsg/pkg/botlib"
	"github.com/aeolun/ymsg/pkg/client"
)

func main() {
	configPath := flag.String("config", "~/.ymsg/config.toml", "Path to config file")
	server := flag.String("server", "", "Pager address (overrides config)")
	username := flag.String("user", "", "Yahoo ID (overrides config)")
	autoReply := flag.String("auto-reply", "", "Message sent once to anyone who IMs the bot")
	metricsAddr := flag.String("metrics", "", "Serve /metrics on this address (overrides config)")
	acceptAuth := flag.Bool("accept-auth", false, "Accept buddy list authorization requests")
	flag.Parse()

	logger := log.New(os.Stdout, "[ymsgbot] ", log.LstdFlags)

	cfg, err := client.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *server != "" {
		cfg.Connection.Server = *server
	}
	if *username != "" {
		cfg.Account.Username = *username
	}
	if *autoReply != "" {
		cfg.Bot.AutoReply = *autoReply
	}
	if *metricsAddr != "" {
		cfg.Metrics.ListenAddress = *metricsAddr
	}
	if cfg.Account.Username == "" {
		log.Fatal("No username configured; set [account] username or pass -user")
	}

	dbPath, err := cfg.DatabasePath()
	if err != nil {
		log.Fatalf("Failed to resolve database path: %v", err)
	}
	store, err := client.OpenStore(dbPath)
	if err != nil {
		log.Fatalf("Failed to open state database: %v", err)
	}
	defer store.Close()

	config := botlib.ConfigFrom(cfg, store)
	config.Logger = logger
	config.AcceptAuthorization = *acceptAuth

	log.Printf("Starting ymsgbot")
	log.Printf("  Server: %s", config.Server)
	log.Printf("  User: %s", cfg.Account.Username)
	if config.AutoReply != "" {
		log.Printf("  Auto reply: %q", config.AutoReply)
	}
	if config.MetricsAddress != "" {
		log.Printf("  Metrics: %s", config.MetricsAddress)
	}

	bot := botlib.New(config)

	bot.OnConnected(func() {
		log.Printf("Online with %d buddies", len(bot.Buddies()))
	})

	bot.OnMention(func(ctx *botlib.Context, msg *botlib.Message) {
		content := strings.TrimSpace(msg.MentionedContent())
		switch strings.ToLower(content) {
		case "ping":
			ctx.Reply("pong")
		case "buddies":
			var online []string
			for _, b := range bot.Buddies() {
				if b.IsOnline() {
					online = append(online, b.Name)
				}
			}
			if len(online) == 0 {
				ctx.Reply("Nobody is online.")
				return
			}
			ctx.Reply("Online: " + strings.Join(online, ", "))
		case "buzz":
			ctx.Buzz()
		case "", "help":
			ctx.Reply("Commands: ping, buddies, buzz")
		default:
			ctx.Log("Unknown command from %s: %s", msg.From, content)
		}
	})

	bot.OnBuzz(func(ctx *botlib.Context, msg *botlib.Message) {
		ctx.ReplyDirect("Bzzt.")
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := bot.Run(ctx); err != nil {
		log.Fatalf("Bot error: %v", err)
	}
}
