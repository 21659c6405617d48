package botlib

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/aeolun/ymsg/pkg/client"
	"github.com/aeolun/ymsg/pkg/protocol"
)

// MessageHandler is called when a new message is received.
type MessageHandler func(ctx *Context, msg *Message)

// Config holds the bot configuration.
type Config struct {
	// Server is the pager address, in any form client.NewConnection accepts
	Server string

	// Session is handed to every session the bot starts. Logger and
	// Metrics are filled in by the bot.
	Session client.Options

	// Store keeps icon checksums and our picture between runs (required)
	Store client.StoreInterface

	// Logger for debug output (optional, defaults to stdout)
	Logger *log.Logger

	// KeepaliveInterval between pings (default: 60s)
	KeepaliveInterval time.Duration

	// SendRate and SendBurst pace outgoing bytes; 0 disables pacing
	SendRate      int
	SendBurst     int
	AutoReconnect bool

	// AutoReply is sent once per AutoReplyEvery to anyone who IMs the bot
	// when no message handler is registered
	AutoReply      string
	AutoReplyEvery time.Duration

	// NotifyDesktop shows buzzes, mail and authorization requests
	NotifyDesktop bool

	// IconCacheTTL is how long a fetched icon is not fetched again (default: 30m)
	IconCacheTTL time.Duration

	// MetricsAddress serves /metrics when set
	MetricsAddress string

	// AcceptAuthorization lets anyone who adds the bot keep it on their list
	AcceptAuthorization bool
	// JoinConferences accepts conference invites instead of declining them
	JoinConferences bool

	// WebCookie fetches a web messenger cookie when normal auth fails.
	// Without it the failure ends Run.
	WebCookie func(ctx context.Context) (string, error)

	// Dial creates the pager connection (default: client.NewConnection)
	Dial func(addr string) (client.ConnectionInterface, error)

	HTTPClient *http.Client
	Now        func() time.Time
}

// ConfigFrom maps a client config file onto a bot config.
func ConfigFrom(cfg client.Config, store client.StoreInterface) Config {
	return Config{
		Server:            cfg.ServerAddress(),
		Session:           cfg.SessionOptions(),
		Store:             store,
		KeepaliveInterval: cfg.KeepaliveInterval(),
		SendRate:          cfg.Connection.SendRate,
		SendBurst:         cfg.Connection.SendBurst,
		AutoReconnect:     cfg.Connection.AutoReconnect,
		AutoReply:         cfg.Bot.AutoReply,
		NotifyDesktop:     cfg.Bot.NotifyDesktop,
		IconCacheTTL:      time.Duration(cfg.Bot.IconCacheMinutes) * time.Minute,
		MetricsAddress:    cfg.Metrics.ListenAddress,
	}
}

// Bot runs one YMSG session and is the session's host: it keeps the
// buddy list, fetches icons and forwards conversations to handlers.
type Bot struct {
	config Config
	logger *log.Logger
	store  client.StoreInterface
	now    func() time.Time

	roster  *roster
	icons   *iconFetcher
	replied *cache.Cache
	notify  func(title, body string) error

	registry *prometheus.Registry
	metrics  *client.Metrics

	// mu serialises everything that touches the session
	mu      sync.Mutex
	conn    client.ConnectionInterface
	session *client.Session

	// Host callbacks run under mu; anything that calls back into the
	// session is queued here and run once mu is released.
	pendingMu sync.Mutex
	pending   []func()

	stateMu     sync.RWMutex
	displayName string
	fatal       error
	ctx         context.Context
	cancel      context.CancelFunc

	events chan Event

	// Handlers
	onMessage   MessageHandler
	onMention   MessageHandler
	onBuzz      MessageHandler
	onConnected func()
}

var _ client.Host = (*Bot)(nil)

// New creates a new Bot with the given configuration.
func New(config Config) *Bot {
	if config.Logger == nil {
		config.Logger = log.New(os.Stdout, "[bot] ", log.LstdFlags)
	}
	if config.KeepaliveInterval == 0 {
		config.KeepaliveInterval = 60 * time.Second
	}
	if config.AutoReplyEvery == 0 {
		config.AutoReplyEvery = 10 * time.Minute
	}
	if config.IconCacheTTL == 0 {
		config.IconCacheTTL = 30 * time.Minute
	}
	if config.HTTPClient == nil {
		config.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	if config.Now == nil {
		config.Now = time.Now
	}

	registry := prometheus.NewRegistry()
	b := &Bot{
		config:      config,
		logger:      config.Logger,
		store:       config.Store,
		now:         config.Now,
		roster:      newRoster(),
		replied:     cache.New(config.AutoReplyEvery, 2*config.AutoReplyEvery),
		notify:      desktopNotify,
		registry:    registry,
		metrics:     client.NewMetrics(registry),
		displayName: config.Session.Username,
		ctx:         context.Background(),
		events:      make(chan Event, 256),
	}
	if b.store != nil {
		b.icons = newIconFetcher(b.store, config.HTTPClient, config.IconCacheTTL, config.Logger)
	}
	return b
}

// OnMessage registers a handler for every IM, conference and chat message.
func (b *Bot) OnMessage(handler MessageHandler) {
	b.onMessage = handler
}

// OnMention registers a handler for messages that are direct or mention
// the bot. It takes precedence over OnMessage.
func (b *Bot) OnMention(handler MessageHandler) {
	b.onMention = handler
}

// OnBuzz registers a handler for buzzes. The message text is empty.
func (b *Bot) OnBuzz(handler MessageHandler) {
	b.onBuzz = handler
}

// OnConnected registers a function called after every successful login.
func (b *Bot) OnConnected(fn func()) {
	b.onConnected = fn
}

func (b *Bot) logf(format string, args ...interface{}) {
	if b.logger != nil {
		b.logger.Printf(format, args...)
	}
}

// Registry returns the Prometheus registry the session metrics live in.
func (b *Bot) Registry() *prometheus.Registry {
	return b.registry
}

// DisplayName returns the handle we are logged in as.
func (b *Bot) DisplayName() string {
	b.stateMu.RLock()
	defer b.stateMu.RUnlock()
	return b.displayName
}

// Buddies returns a snapshot of the buddy list.
func (b *Bot) Buddies() []Buddy {
	return b.roster.snapshot()
}

// Run connects to the pager, logs in and processes packets until ctx is
// cancelled, Stop is called or the session fails for good.
func (b *Bot) Run(ctx context.Context) error {
	if b.store == nil {
		return errors.New("no store configured")
	}
	b.icons.prune(b.now().Add(-iconRetention))

	dial := b.config.Dial
	if dial == nil {
		dial = b.dial
	}
	conn, err := dial(b.config.Server)
	if err != nil {
		return fmt.Errorf("connection setup failed: %w", err)
	}

	b.logger.Printf("Connecting to %s...", conn.GetAddress())
	if err := conn.Connect(); err != nil {
		conn.Close()
		return fmt.Errorf("connect failed: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	b.stateMu.Lock()
	b.ctx, b.cancel = ctx, cancel
	b.stateMu.Unlock()
	b.icons.ctx = ctx

	b.mu.Lock()
	b.conn = conn
	b.mu.Unlock()

	if err := b.startSession(); err != nil {
		conn.Close()
		return fmt.Errorf("login failed: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return b.receiveLoop(gctx) })
	g.Go(func() error { return b.keepaliveLoop(gctx) })
	if b.config.MetricsAddress != "" {
		g.Go(func() error { return b.serveMetrics(gctx) })
	}

	b.logger.Printf("Bot is running")
	err = g.Wait()
	b.shutdown()

	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Stop gracefully stops the bot.
func (b *Bot) Stop() {
	b.stateMu.RLock()
	cancel := b.cancel
	b.stateMu.RUnlock()
	if cancel != nil {
		cancel()
	}
}

func (b *Bot) shutdown() {
	b.mu.Lock()
	if b.session != nil {
		b.session.Close()
		b.session = nil
	}
	conn := b.conn
	b.mu.Unlock()

	// let the writer flush conference and chat logoffs
	time.Sleep(100 * time.Millisecond)
	conn.Close()

	b.icons.wait()
	b.logger.Printf("Bot stopped")
}

func (b *Bot) dial(addr string) (client.ConnectionInterface, error) {
	conn, err := client.NewConnection(addr)
	if err != nil {
		return nil, err
	}
	conn.SetLogger(b.logger)
	conn.SetMetrics(b.metrics)
	if b.config.SendRate > 0 {
		conn.SetPacing(b.config.SendRate, b.config.SendBurst)
	}
	if !b.config.AutoReconnect {
		conn.DisableAutoReconnect()
	}
	return conn, nil
}

// startSession replaces the session with a fresh one and starts the
// login handshake.
func (b *Bot) startSession() error {
	opts := b.config.Session
	opts.Logger = b.logger
	opts.Metrics = b.metrics
	if opts.Now == nil {
		opts.Now = b.now
	}
	if opts.PictureURL == "" {
		if rec, ok := b.store.GetPicture(); ok && rec.URL != "" {
			opts.PictureURL = rec.URL
			opts.PictureChecksum = rec.Checksum
			opts.PictureExpires = rec.Expires.Unix()
		}
	}

	b.mu.Lock()
	b.session = client.NewSession(opts, b, b.conn)
	err := b.session.Login()
	b.mu.Unlock()
	b.runPending()
	return err
}

// Do runs fn with the session while holding the session lock. It returns
// client.ErrNotLoggedIn while there is no session.
func (b *Bot) Do(fn func(s *client.Session) error) error {
	b.mu.Lock()
	var err error
	if b.session == nil {
		err = client.ErrNotLoggedIn
	} else {
		err = fn(b.session)
	}
	b.mu.Unlock()
	b.runPending()
	return err
}

func (b *Bot) dispatch(p *protocol.Packet) {
	b.mu.Lock()
	if b.session != nil {
		b.session.Dispatch(p)
	}
	b.mu.Unlock()
	b.runPending()
}

// queue defers fn until the session lock is released.
func (b *Bot) queue(fn func()) {
	b.pendingMu.Lock()
	b.pending = append(b.pending, fn)
	b.pendingMu.Unlock()
}

func (b *Bot) runPending() {
	for {
		b.pendingMu.Lock()
		pending := b.pending
		b.pending = nil
		b.pendingMu.Unlock()
		if len(pending) == 0 {
			return
		}
		for _, fn := range pending {
			fn()
		}
	}
}

func (b *Bot) setFatal(err error) {
	b.stateMu.Lock()
	defer b.stateMu.Unlock()
	if b.fatal == nil {
		b.fatal = err
	}
}

func (b *Bot) takeFatal() error {
	b.stateMu.Lock()
	defer b.stateMu.Unlock()
	err := b.fatal
	b.fatal = nil
	return err
}

func (b *Bot) runContext() context.Context {
	b.stateMu.RLock()
	defer b.stateMu.RUnlock()
	return b.ctx
}
