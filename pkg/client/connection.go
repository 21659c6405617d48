package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
	"golang.org/x/crypto/ssh/knownhosts"
	"golang.org/x/time/rate"

	"github.com/aeolun/ymsg/pkg/protocol"
)

// ConnectionStateType represents the connection status
type ConnectionStateType int

const (
	StateTypeConnected ConnectionStateType = iota
	StateTypeDisconnected
	StateTypeReconnecting
)

// ConnectionStateUpdate represents a connection state change
type ConnectionStateUpdate struct {
	State   ConnectionStateType
	Attempt int
	Err     error
}

// DisconnectReason indicates why a connection was lost
type DisconnectReason int

const (
	DisconnectUnknown       DisconnectReason = iota
	DisconnectError                          // Read/write error
	DisconnectServerDown                     // Pager closed the connection
	DisconnectUserRequested                  // User explicitly disconnected
)

func (r DisconnectReason) String() string {
	switch r {
	case DisconnectError:
		return "error"
	case DisconnectServerDown:
		return "server closed"
	case DisconnectUserRequested:
		return "user requested"
	default:
		return "unknown"
	}
}

// outbound is a queued packet and the header version to write it with
type outbound struct {
	pkt     *protocol.Packet
	version uint16
}

// Connection carries YMSG packets to and from a pager server. Received
// bytes go through a Reassembler; complete packets come out of Incoming.
// Connection implements PacketWriter.
type Connection struct {
	addr           string // Display address with scheme (e.g., "ssh://me@jump:22/pager:5050")
	dial           func() (net.Conn, error)
	conn           net.Conn
	mu             sync.RWMutex
	connected      bool
	reconnecting   bool
	warning        string
	warningOnce    sync.Once
	connectionType string // "tcp", "ssh", or "websocket"

	incoming    chan *protocol.Packet
	outgoing    chan outbound
	errors      chan error
	stateChange chan ConnectionStateUpdate

	autoReconnect     bool
	reconnectDelay    time.Duration
	maxReconnectDelay time.Duration

	lastDisconnectReason DisconnectReason

	// Traffic counters (bytes on the wire)
	bytesSent     atomic.Uint64
	bytesReceived atomic.Uint64

	// nil when not throttled
	limiter *rate.Limiter

	metrics *Metrics
	logger  *log.Logger

	shutdown chan struct{}
	closed   bool
	wg       sync.WaitGroup
}

// NewConnection creates a connection to addr. See parseServerAddress for
// the accepted forms.
func NewConnection(addr string) (*Connection, error) {
	dc, err := parseServerAddress(addr)
	if err != nil {
		return nil, err
	}

	return &Connection{
		addr:              dc.display,
		dial:              dc.dial,
		warning:           dc.warning,
		connectionType:    dc.kind,
		incoming:          make(chan *protocol.Packet, 100),
		outgoing:          make(chan outbound, 100),
		errors:            make(chan error, 10),
		stateChange:       make(chan ConnectionStateUpdate, 10),
		autoReconnect:     true,
		reconnectDelay:    1 * time.Second,
		maxReconnectDelay: 30 * time.Second,
		shutdown:          make(chan struct{}),
	}, nil
}

// SetLogger sets a logger for debugging connection events
func (c *Connection) SetLogger(logger *log.Logger) {
	c.logger = logger
}

// SetMetrics records resyncs on m
func (c *Connection) SetMetrics(m *Metrics) {
	c.metrics = m
}

// SetThrottle paces writes to bytesPerSec (0 = no throttle). The pager
// disconnects clients that flood it.
func (c *Connection) SetThrottle(bytesPerSec int) {
	c.SetPacing(bytesPerSec, bytesPerSec)
}

// SetPacing is SetThrottle with an explicit burst size
func (c *Connection) SetPacing(bytesPerSec, burst int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if bytesPerSec <= 0 {
		c.limiter = nil
		c.logf("Write pacing disabled")
		return
	}
	if burst < 1 {
		burst = bytesPerSec
	}
	c.limiter = rate.NewLimiter(rate.Limit(bytesPerSec), burst)
	c.logf("Write pacing enabled: %d bytes/sec, burst %d", bytesPerSec, burst)
}

// DisableAutoReconnect disables automatic reconnection on connection loss
func (c *Connection) DisableAutoReconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.autoReconnect = false
}

// EnableAutoReconnect turns automatic reconnection back on
func (c *Connection) EnableAutoReconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.autoReconnect = true
}

// logf logs a message if a logger is set
func (c *Connection) logf(format string, args ...interface{}) {
	if c.logger != nil {
		c.logger.Printf(format, args...)
	}
}

// Connect dials the pager and starts the reader and writer goroutines.
func (c *Connection) Connect() error {
	c.mu.Lock()
	if c.connected {
		c.mu.Unlock()
		return fmt.Errorf("already connected")
	}
	c.mu.Unlock()

	if c.dial == nil {
		return fmt.Errorf("no dialer configured")
	}

	c.logf("Connecting to %s...", c.addr)
	conn, err := c.dial()
	if err != nil {
		c.logf("Connection to %s failed: %v", c.addr, err)
		return err
	}

	c.mu.Lock()
	c.conn = conn
	c.connected = true
	c.mu.Unlock()

	c.logf("Connected to %s (%s)", c.addr, c.connectionType)
	c.warningOnce.Do(func() {
		if c.warning != "" {
			c.logf("WARNING: %s", c.warning)
		}
	})

	c.wg.Add(2)
	go c.readLoop(conn)
	go c.writeLoop(conn)
	return nil
}

// GetConnectionType returns the transport (tcp, ssh, or websocket)
func (c *Connection) GetConnectionType() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connectionType
}

// Disconnect closes the connection
func (c *Connection) Disconnect() {
	c.mu.Lock()
	if !c.connected {
		c.mu.Unlock()
		return
	}
	c.logf("Disconnecting from %s", c.addr)
	c.connected = false
	c.lastDisconnectReason = DisconnectUserRequested
	if c.conn != nil {
		c.conn.Close()
	}
	c.mu.Unlock()
}

// Close shuts down the connection permanently and frees its queues
func (c *Connection) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()

	close(c.shutdown)
	c.Disconnect()
	c.wg.Wait()
	close(c.incoming)
	close(c.outgoing)
	close(c.errors)
	close(c.stateChange)
}

// WritePacket queues p for sending. It never blocks; a full queue or a
// payload too large for the length field is an error.
func (c *Connection) WritePacket(p *protocol.Packet, version uint16) error {
	if p.Length() > protocol.MaxPayloadLen {
		return protocol.ErrPayloadTooLarge
	}

	// Close takes the write lock before closing outgoing
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return fmt.Errorf("connection closed")
	}
	select {
	case c.outgoing <- outbound{pkt: p, version: version}:
		return nil
	default:
		return fmt.Errorf("outgoing queue full")
	}
}

// Incoming returns the channel of received packets
func (c *Connection) Incoming() <-chan *protocol.Packet {
	return c.incoming
}

// Errors returns the channel for connection errors
func (c *Connection) Errors() <-chan error {
	return c.errors
}

// StateChanges returns the channel for connection state updates
func (c *Connection) StateChanges() <-chan ConnectionStateUpdate {
	return c.stateChange
}

// IsConnected returns whether the connection is active
func (c *Connection) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

// GetAddress returns the server address
func (c *Connection) GetAddress() string {
	return c.addr
}

// LastDisconnectReason reports why the last connection ended
func (c *Connection) LastDisconnectReason() DisconnectReason {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastDisconnectReason
}

// GetBytesSent returns the total bytes sent
func (c *Connection) GetBytesSent() uint64 {
	return c.bytesSent.Load()
}

// GetBytesReceived returns the total bytes received
func (c *Connection) GetBytesReceived() uint64 {
	return c.bytesReceived.Load()
}

func (c *Connection) readLoop(conn net.Conn) {
	defer c.wg.Done()

	rx := protocol.Reassembler{
		Logger:   c.logger,
		OnResync: func(int) { c.metrics.RecordResync() },
	}
	reader := &countingReader{r: conn, counter: &c.bytesReceived}

	err := rx.ReadLoop(reader, func(p *protocol.Packet) {
		c.logf("← RECV: %s status=%d pairs=%d", p.Service, p.Status, len(p.Pairs))
		select {
		case c.incoming <- p:
		case <-c.shutdown:
		}
	})

	select {
	case <-c.shutdown:
		return
	default:
	}

	if errors.Is(err, protocol.ErrRemoteClosed) {
		c.logf("Connection closed by server")
		c.handleDisconnect(DisconnectServerDown, err)
		return
	}
	c.logf("Read error: %v", err)
	c.handleDisconnect(DisconnectError, err)
}

// countingReader wraps an io.Reader and counts bytes read using atomic counter
type countingReader struct {
	r       io.Reader
	counter *atomic.Uint64
}

func (cr *countingReader) Read(p []byte) (n int, err error) {
	n, err = cr.r.Read(p)
	if n > 0 && cr.counter != nil {
		cr.counter.Add(uint64(n))
	}
	return n, err
}

// pacedWrite writes b in chunks no larger than the limiter's burst
func pacedWrite(ctx context.Context, w io.Writer, limiter *rate.Limiter, b []byte) error {
	if limiter == nil {
		_, err := w.Write(b)
		return err
	}
	for len(b) > 0 {
		n := min(len(b), limiter.Burst())
		if err := limiter.WaitN(ctx, n); err != nil {
			return err
		}
		if _, err := w.Write(b[:n]); err != nil {
			return err
		}
		b = b[n:]
	}
	return nil
}

func (c *Connection) writeLoop(conn net.Conn) {
	defer c.wg.Done()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-c.shutdown:
			cancel()
		case <-ctx.Done():
		}
	}()

	for {
		select {
		case out, ok := <-c.outgoing:
			if !ok {
				return
			}
			c.mu.RLock()
			connected := c.connected && c.conn == conn
			limiter := c.limiter
			c.mu.RUnlock()
			if !connected {
				return
			}

			data := out.pkt.Encode(out.version)
			if err := pacedWrite(ctx, conn, limiter, data); err != nil {
				if ctx.Err() != nil {
					return
				}
				c.logf("Write error: %v", err)
				c.handleDisconnect(DisconnectError, fmt.Errorf("write error: %w", err))
				return
			}
			c.bytesSent.Add(uint64(len(data)))
			c.logf("→ SEND: %s status=%d len=%d", out.pkt.Service, out.pkt.Status, out.pkt.Length())

		case <-c.shutdown:
			return
		}
	}
}

func (c *Connection) handleDisconnect(reason DisconnectReason, cause error) {
	c.mu.Lock()
	wasConnected := c.connected
	c.connected = false
	c.lastDisconnectReason = reason
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	autoReconnect := c.autoReconnect
	c.mu.Unlock()

	if !wasConnected {
		return
	}

	c.logf("Disconnected from server (reason: %v)", reason)

	disconnectErr := fmt.Errorf("disconnected from server: %w", cause)
	select {
	case c.errors <- disconnectErr:
	default:
	}
	select {
	case c.stateChange <- ConnectionStateUpdate{State: StateTypeDisconnected, Err: disconnectErr}:
	default:
	}

	if autoReconnect {
		c.wg.Add(1)
		go c.reconnectLoop()
	}
}

// reconnectLoop attempts to reconnect with exponential backoff
func (c *Connection) reconnectLoop() {
	defer c.wg.Done()

	c.mu.Lock()
	if c.reconnecting {
		c.mu.Unlock()
		return
	}
	c.reconnecting = true
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.reconnecting = false
		c.mu.Unlock()
	}()

	delay := c.reconnectDelay
	attempt := 1

	for {
		select {
		case <-c.shutdown:
			c.logf("Reconnect loop cancelled (shutdown)")
			return
		case <-time.After(delay):
			c.logf("Reconnect attempt %d to %s", attempt, c.addr)
			select {
			case c.stateChange <- ConnectionStateUpdate{State: StateTypeReconnecting, Attempt: attempt}:
			default:
			}

			if err := c.Connect(); err != nil {
				delay = min(delay*2, c.maxReconnectDelay)
				c.logf("Reconnect attempt %d failed: %v (next in %v)", attempt, err, delay)
				attempt++
				continue
			}

			c.logf("Reconnected after %d attempts", attempt)
			select {
			case c.stateChange <- ConnectionStateUpdate{State: StateTypeConnected}:
			default:
			}
			return
		}
	}
}

type dialConfig struct {
	display string
	kind    string
	dial    func() (net.Conn, error)
	warning string
}

const (
	// DefaultPager is the pager used when the address names no host
	DefaultPager = "scs.msg.yahoo.com"

	defaultPagerPort = "5050"
	defaultSSHPort   = "22"
	defaultHTTPPort  = "80"
	dialTimeout      = 10 * time.Second
)

// parseServerAddress accepts
//
//	host[:port]                       plain TCP
//	tcp://host[:port]
//	ssh://user@jump[:port]/pager[:port]  TCP tunnelled through an SSH jump host
//	ws://host[:port]/path, wss://...    a websocket to TCP bridge
func parseServerAddress(raw string) (*dialConfig, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		trimmed = DefaultPager
	}

	if !strings.Contains(trimmed, "://") {
		trimmed = "tcp://" + trimmed
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("invalid server address %q: %w", raw, err)
	}

	switch scheme := strings.ToLower(u.Scheme); scheme {
	case "tcp", "ymsg":
		host, port, err := splitHostPortWithDefault(u.Host, defaultPagerPort)
		if err != nil {
			return nil, err
		}
		address := net.JoinHostPort(host, port)
		return &dialConfig{
			display: address,
			kind:    "tcp",
			dial: func() (net.Conn, error) {
				return net.DialTimeout("tcp", address, dialTimeout)
			},
		}, nil

	case "ssh":
		jumpHost, jumpPort, err := splitHostPortWithDefault(u.Host, defaultSSHPort)
		if err != nil {
			return nil, err
		}
		pagerHost, pagerPort, err := splitHostPortWithDefault(strings.TrimPrefix(u.Path, "/"), defaultPagerPort)
		if err != nil {
			return nil, fmt.Errorf("ssh address needs a pager after the jump host: %w", err)
		}
		user := ""
		if u.User != nil {
			user = u.User.Username()
		}
		if user == "" {
			user = defaultSSHUser()
		}

		verifier := newHostKeyVerifier()
		jump := net.JoinHostPort(jumpHost, jumpPort)
		pager := net.JoinHostPort(pagerHost, pagerPort)
		return &dialConfig{
			display: fmt.Sprintf("ssh://%s@%s/%s", user, jump, pager),
			kind:    "ssh",
			dial: func() (net.Conn, error) {
				return dialSSH(user, jump, pager, verifier)
			},
			warning: verifier.warning,
		}, nil

	case "ws", "wss":
		host, port, err := splitHostPortWithDefault(u.Host, defaultHTTPPort)
		if err != nil {
			return nil, err
		}
		if scheme == "wss" && u.Port() == "" {
			port = "443"
		}
		target := url.URL{Scheme: scheme, Host: net.JoinHostPort(host, port), Path: u.Path, RawQuery: u.RawQuery}
		display := target.String()
		return &dialConfig{
			display: display,
			kind:    "websocket",
			dial: func() (net.Conn, error) {
				return DialWebSocket(display)
			},
		}, nil

	default:
		return nil, fmt.Errorf("unsupported server scheme %q", u.Scheme)
	}
}

func splitHostPortWithDefault(hostPort, defaultPort string) (string, string, error) {
	hostPort = strings.TrimSpace(hostPort)
	if hostPort == "" {
		return "", "", errors.New("missing host in server address")
	}

	host, port, err := net.SplitHostPort(hostPort)
	if err == nil {
		return host, port, nil
	}

	var addrErr *net.AddrError
	if errors.As(err, &addrErr) && strings.Contains(strings.ToLower(addrErr.Err), "missing port") {
		host = strings.TrimSuffix(strings.TrimPrefix(hostPort, "["), "]")
		return host, defaultPort, nil
	}
	return "", "", err
}

func defaultSSHUser() string {
	for _, env := range []string{"YMSG_SSH_USER", "USER", "USERNAME"} {
		if user := os.Getenv(env); user != "" {
			return user
		}
	}
	return "anonymous"
}

// hostKeyVerifier checks jump host keys against known_hosts. Without a
// known_hosts file every key is accepted and the connection carries a
// warning.
type hostKeyVerifier struct {
	paths    []string
	callback ssh.HostKeyCallback
	warning  string
}

func newHostKeyVerifier() *hostKeyVerifier {
	v := &hostKeyVerifier{paths: knownHostPaths()}

	var existing []string
	for _, p := range v.paths {
		if _, err := os.Stat(p); err == nil {
			existing = append(existing, p)
		}
	}
	if len(existing) > 0 {
		if cb, err := knownhosts.New(existing...); err == nil {
			v.callback = cb
			return v
		}
	}

	v.callback = ssh.InsecureIgnoreHostKey()
	v.warning = "SSH host key verification is disabled (known_hosts not found); the tunnel is open to MITM attacks"
	return v
}

func (v *hostKeyVerifier) wrapError(err error) error {
	var keyErr *knownhosts.KeyError
	if !errors.As(err, &keyErr) {
		return err
	}
	if len(keyErr.Want) == 0 {
		return fmt.Errorf("ssh host key is not in %s; add it with ssh-keyscan and retry", strings.Join(v.paths, ", "))
	}
	return fmt.Errorf("ssh host key mismatch (expected %s from %s:%d); this could be a man-in-the-middle attack",
		ssh.FingerprintSHA256(keyErr.Want[0].Key), keyErr.Want[0].Filename, keyErr.Want[0].Line)
}

func knownHostPaths() []string {
	if env := os.Getenv("SSH_KNOWN_HOSTS"); env != "" {
		var paths []string
		for _, p := range strings.Split(env, string(os.PathListSeparator)) {
			if p = strings.TrimSpace(p); p != "" {
				paths = append(paths, p)
			}
		}
		return paths
	}

	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return nil
	}
	return []string{filepath.Join(home, ".ssh", "known_hosts")}
}

// dialSSH logs in to the jump host and opens a direct-tcpip channel to the
// pager.
func dialSSH(user, jump, pager string, verifier *hostKeyVerifier) (net.Conn, error) {
	authMethods := loadSSHAuthMethods()
	if len(authMethods) == 0 {
		return nil, errors.New("no SSH keys found - add your key to ssh-agent with: ssh-add ~/.ssh/id_ed25519")
	}

	config := &ssh.ClientConfig{
		User:            user,
		Auth:            authMethods,
		HostKeyCallback: verifier.callback,
		Timeout:         dialTimeout,
	}

	client, err := ssh.Dial("tcp", jump, config)
	if err != nil {
		return nil, verifier.wrapError(err)
	}

	conn, err := client.Dial("tcp", pager)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("tunnel to %s via %s: %w", pager, jump, err)
	}
	return &tunnelConn{Conn: conn, client: client}, nil
}

// tunnelConn closes the SSH client along with the tunnelled connection
type tunnelConn struct {
	net.Conn
	client *ssh.Client
	once   sync.Once
}

func (c *tunnelConn) Close() error {
	err := c.Conn.Close()
	c.once.Do(func() {
		c.client.Close()
	})
	return err
}

// loadSSHAuthMethods collects signers from the SSH agent and unencrypted
// keys in ~/.ssh
func loadSSHAuthMethods() []ssh.AuthMethod {
	var methods []ssh.AuthMethod

	if socket := os.Getenv("SSH_AUTH_SOCK"); socket != "" {
		if conn, err := net.Dial("unix", socket); err == nil {
			methods = append(methods, ssh.PublicKeysCallback(agent.NewClient(conn).Signers))
		}
	}

	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return methods
	}
	var signers []ssh.Signer
	for _, name := range []string{"id_ed25519", "id_ecdsa", "id_rsa"} {
		keyBytes, err := os.ReadFile(filepath.Join(home, ".ssh", name))
		if err != nil {
			continue
		}
		// encrypted keys need the agent
		signer, err := ssh.ParsePrivateKey(keyBytes)
		if err != nil {
			continue
		}
		signers = append(signers, signer)
	}
	if len(signers) > 0 {
		methods = append(methods, ssh.PublicKeys(signers...))
	}
	return methods
}
