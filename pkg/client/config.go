package client

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/aeolun/ymsg/pkg/protocol"
)

// Pager hosts used when [connection] server is empty
const (
	DefaultPagerJP = "cs.yahoo.co.jp"
)

// Config is the structure of the client config file
type Config struct {
	Account    AccountSection    `toml:"account"`
	Connection ConnectionSection `toml:"connection"`
	Storage    StorageSection    `toml:"storage"`
	Metrics    MetricsSection    `toml:"metrics"`
	Bot        BotSection        `toml:"bot"`
}

type AccountSection struct {
	Username        string `toml:"username"`
	Password        string `toml:"password"`
	Locale          string `toml:"locale"`
	Charset         string `toml:"charset"`
	Japan           bool   `toml:"japan"`
	WebMessenger    bool   `toml:"web_messenger"`
	CheckMail       bool   `toml:"check_mail"`
	IgnoreInvites   bool   `toml:"ignore_invites"`
	InitialStatus   string `toml:"initial_status"`
	InitialMessage  string `toml:"initial_message"`
	PictureURL      string `toml:"picture_url"`
	PictureChecksum int32  `toml:"picture_checksum"`
}

type ConnectionSection struct {
	// Server is a host or a tcp://, ssh:// or ws(s):// address
	Server           string `toml:"server"`
	ServerJP         string `toml:"server_jp"`
	Port             int    `toml:"port"`
	KeepaliveSeconds int    `toml:"keepalive_seconds"`
	// SendRate and SendBurst pace writes in bytes; 0 disables pacing
	SendRate      int  `toml:"send_rate"`
	SendBurst     int  `toml:"send_burst"`
	AutoReconnect bool `toml:"auto_reconnect"`
}

type StorageSection struct {
	DatabasePath string `toml:"database_path"`
}

type MetricsSection struct {
	// ListenAddress serves /metrics when set (e.g. ":9105")
	ListenAddress string `toml:"listen_address"`
}

type BotSection struct {
	AutoReply        string `toml:"auto_reply"`
	NotifyDesktop    bool   `toml:"notify_desktop"`
	IconCacheMinutes int    `toml:"icon_cache_minutes"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	return Config{
		Account: AccountSection{
			Locale:        "us",
			Charset:       DefaultCharset,
			CheckMail:     true,
			InitialStatus: "available",
		},
		Connection: ConnectionSection{
			Server:           DefaultPager,
			ServerJP:         DefaultPagerJP,
			Port:             5050,
			KeepaliveSeconds: 60,
			SendRate:         2048,
			SendBurst:        4096,
			AutoReconnect:    true,
		},
		Storage: StorageSection{
			DatabasePath: "~/.ymsg/state.db",
		},
		Bot: BotSection{
			IconCacheMinutes: 30,
		},
	}
}

// expandHome replaces a leading ~/ with the home directory
func expandHome(path string) (string, error) {
	if !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, path[2:]), nil
}

// LoadConfig loads configuration from a TOML file, writes the defaults if
// it does not exist, and applies environment variable overrides
func LoadConfig(path string) (Config, error) {
	path, err := expandHome(path)
	if err != nil {
		return Config{}, err
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		config := DefaultConfig()
		// An unwritable location still leaves us with usable defaults
		_ = writeDefaultConfig(path, config)
		return applyEnvOverrides(config), nil
	}

	config := DefaultConfig()
	if _, err := toml.DecodeFile(path, &config); err != nil {
		return Config{}, fmt.Errorf("failed to parse config file: %w", err)
	}
	return applyEnvOverrides(config), nil
}

// applyEnvOverrides applies YMSG_SECTION_KEY environment variables
// Example: YMSG_CONNECTION_SERVER=ssh://me@jump/scs.msg.yahoo.com
func applyEnvOverrides(config Config) Config {
	setString := func(env string, dst *string) {
		if val := os.Getenv(env); val != "" {
			*dst = val
		}
	}
	setInt := func(env string, dst *int) {
		if val := os.Getenv(env); val != "" {
			if n, err := strconv.Atoi(val); err == nil {
				*dst = n
			}
		}
	}
	setBool := func(env string, dst *bool) {
		if val := os.Getenv(env); val != "" {
			if b, err := strconv.ParseBool(val); err == nil {
				*dst = b
			}
		}
	}

	// Account section
	setString("YMSG_ACCOUNT_USERNAME", &config.Account.Username)
	setString("YMSG_ACCOUNT_PASSWORD", &config.Account.Password)
	setString("YMSG_ACCOUNT_LOCALE", &config.Account.Locale)
	setString("YMSG_ACCOUNT_CHARSET", &config.Account.Charset)
	setBool("YMSG_ACCOUNT_JAPAN", &config.Account.Japan)
	setBool("YMSG_ACCOUNT_WEB_MESSENGER", &config.Account.WebMessenger)
	setBool("YMSG_ACCOUNT_CHECK_MAIL", &config.Account.CheckMail)
	setBool("YMSG_ACCOUNT_IGNORE_INVITES", &config.Account.IgnoreInvites)
	setString("YMSG_ACCOUNT_INITIAL_STATUS", &config.Account.InitialStatus)
	setString("YMSG_ACCOUNT_INITIAL_MESSAGE", &config.Account.InitialMessage)
	setString("YMSG_ACCOUNT_PICTURE_URL", &config.Account.PictureURL)
	if val := os.Getenv("YMSG_ACCOUNT_PICTURE_CHECKSUM"); val != "" {
		if n, err := strconv.ParseInt(val, 10, 32); err == nil {
			config.Account.PictureChecksum = int32(n)
		}
	}

	// Connection section
	setString("YMSG_CONNECTION_SERVER", &config.Connection.Server)
	setString("YMSG_CONNECTION_SERVER_JP", &config.Connection.ServerJP)
	setInt("YMSG_CONNECTION_PORT", &config.Connection.Port)
	setInt("YMSG_CONNECTION_KEEPALIVE_SECONDS", &config.Connection.KeepaliveSeconds)
	setInt("YMSG_CONNECTION_SEND_RATE", &config.Connection.SendRate)
	setInt("YMSG_CONNECTION_SEND_BURST", &config.Connection.SendBurst)
	setBool("YMSG_CONNECTION_AUTO_RECONNECT", &config.Connection.AutoReconnect)

	setString("YMSG_STORAGE_DATABASE_PATH", &config.Storage.DatabasePath)
	setString("YMSG_METRICS_LISTEN_ADDRESS", &config.Metrics.ListenAddress)

	// Bot section
	setString("YMSG_BOT_AUTO_REPLY", &config.Bot.AutoReply)
	setBool("YMSG_BOT_NOTIFY_DESKTOP", &config.Bot.NotifyDesktop)
	setInt("YMSG_BOT_ICON_CACHE_MINUTES", &config.Bot.IconCacheMinutes)

	return config
}

// ParseStatus maps a config status name onto a status code. Unknown names
// are available.
func ParseStatus(name string) protocol.Status {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "away", "custom":
		return protocol.StatusCustom
	case "brb":
		return protocol.StatusBRB
	case "busy":
		return protocol.StatusBusy
	case "notathome":
		return protocol.StatusNotAtHome
	case "notatdesk":
		return protocol.StatusNotAtDesk
	case "notinoffice":
		return protocol.StatusNotInOffice
	case "onphone":
		return protocol.StatusOnPhone
	case "onvacation":
		return protocol.StatusOnVacation
	case "outtolunch":
		return protocol.StatusOutToLunch
	case "steppedout":
		return protocol.StatusSteppedOut
	case "invisible":
		return protocol.StatusInvisible
	default:
		return protocol.StatusAvailable
	}
}

// SessionOptions maps the config onto session options
func (c Config) SessionOptions() Options {
	return Options{
		Username:        c.Account.Username,
		Password:        c.Account.Password,
		Charset:         c.Account.Charset,
		Locale:          c.Account.Locale,
		Japan:           c.Account.Japan,
		WebMessenger:    c.Account.WebMessenger,
		CheckMail:       c.Account.CheckMail,
		IgnoreInvites:   c.Account.IgnoreInvites,
		InitialStatus:   ParseStatus(c.Account.InitialStatus),
		InitialMessage:  c.Account.InitialMessage,
		PictureURL:      c.Account.PictureURL,
		PictureChecksum: c.Account.PictureChecksum,
	}
}

// ServerAddress is the address to hand to NewConnection. A bare host gets
// the configured port; japan accounts use server_jp.
func (c Config) ServerAddress() string {
	server := c.Connection.Server
	if c.Account.Japan && c.Connection.ServerJP != "" {
		server = c.Connection.ServerJP
	}
	if server == "" {
		server = DefaultPager
	}
	if strings.Contains(server, "://") || c.Connection.Port == 0 {
		return server
	}
	if _, _, err := net.SplitHostPort(server); err == nil {
		return server
	}
	return net.JoinHostPort(server, strconv.Itoa(c.Connection.Port))
}

// KeepaliveInterval is how often to ping the pager
func (c Config) KeepaliveInterval() time.Duration {
	if c.Connection.KeepaliveSeconds <= 0 {
		return 60 * time.Second
	}
	return time.Duration(c.Connection.KeepaliveSeconds) * time.Second
}

// DatabasePath is the state database path with ~ expanded
func (c Config) DatabasePath() (string, error) {
	return expandHome(c.Storage.DatabasePath)
}

// writeDefaultConfig writes the default config with every option documented
func writeDefaultConfig(path string, config Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	header := `# YMSG client configuration
# This file was auto-generated with default values.
# Every key can be overridden with YMSG_<SECTION>_<KEY>, e.g. YMSG_ACCOUNT_PASSWORD.
#
# [connection] server accepts:
#   host[:port]                          plain TCP
#   ssh://user@jump[:port]/pager[:port]  tunnelled through an SSH jump host
#   ws://bridge/path, wss://bridge/path  a websocket to TCP bridge

`
	if _, err := f.WriteString(header); err != nil {
		return err
	}
	return toml.NewEncoder(f).Encode(config)
}
