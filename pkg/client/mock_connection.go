package client

import (
	"fmt"
	"sync"

	"github.com/aeolun/ymsg/pkg/protocol"
)

// SentPacket is a packet recorded by MockConnection, with the header
// version it was written with.
type SentPacket struct {
	Packet  *protocol.Packet
	Version uint16
}

// MockConnection is a test implementation of ConnectionInterface
type MockConnection struct {
	mu sync.RWMutex

	connected     bool
	closed        bool
	address       string
	autoReconnect bool
	throttle      int
	connectErr    error
	sendErr       error

	incoming    chan *protocol.Packet
	errors      chan error
	stateChange chan ConnectionStateUpdate

	// Sent packets for verification
	Sent []SentPacket
}

var _ ConnectionInterface = (*MockConnection)(nil)

// NewMockConnection creates a new mock connection
func NewMockConnection(address string) *MockConnection {
	return &MockConnection{
		address:       address,
		autoReconnect: true,
		incoming:      make(chan *protocol.Packet, 100),
		errors:        make(chan error, 10),
		stateChange:   make(chan ConnectionStateUpdate, 10),
	}
}

// Connect simulates connecting to the pager
func (m *MockConnection) Connect() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.connectErr != nil {
		return m.connectErr
	}
	m.connected = true
	return nil
}

// Disconnect simulates disconnecting
func (m *MockConnection) Disconnect() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connected = false
}

// Close closes the mock connection
func (m *MockConnection) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.closed = true
	m.connected = false
	close(m.incoming)
	close(m.errors)
	close(m.stateChange)
}

// IsConnected returns the connection status
func (m *MockConnection) IsConnected() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.connected
}

// GetAddress returns the mock address
func (m *MockConnection) GetAddress() string {
	return m.address
}

// GetConnectionType is always "tcp" for the mock
func (m *MockConnection) GetConnectionType() string {
	return "tcp"
}

// WritePacket records p
func (m *MockConnection) WritePacket(p *protocol.Packet, version uint16) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sendErr != nil {
		return m.sendErr
	}
	m.Sent = append(m.Sent, SentPacket{Packet: p, Version: version})
	return nil
}

func (m *MockConnection) Incoming() <-chan *protocol.Packet {
	return m.incoming
}

func (m *MockConnection) Errors() <-chan error {
	return m.errors
}

func (m *MockConnection) StateChanges() <-chan ConnectionStateUpdate {
	return m.stateChange
}

func (m *MockConnection) DisableAutoReconnect() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.autoReconnect = false
}

func (m *MockConnection) EnableAutoReconnect() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.autoReconnect = true
}

// SetThrottle only records the value
func (m *MockConnection) SetThrottle(bytesPerSec int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.throttle = bytesPerSec
}

func (m *MockConnection) GetBytesSent() uint64     { return 0 }
func (m *MockConnection) GetBytesReceived() uint64 { return 0 }

// Test helpers

// SetConnectError sets an error to return from Connect()
func (m *MockConnection) SetConnectError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connectErr = err
}

// SetSendError sets an error to return from WritePacket()
func (m *MockConnection) SetSendError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sendErr = err
}

// SimulateIncoming delivers p as if the pager had sent it
func (m *MockConnection) SimulateIncoming(p *protocol.Packet) {
	m.incoming <- p
}

// SimulateError sends an error to the errors channel
func (m *MockConnection) SimulateError(err error) {
	m.errors <- err
}

// SimulateStateChange sends a state change to the stateChange channel
func (m *MockConnection) SimulateStateChange(state ConnectionStateUpdate) {
	m.stateChange <- state
}

// SentPackets returns a copy of everything written so far
func (m *MockConnection) SentPackets() []SentPacket {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]SentPacket(nil), m.Sent...)
}

// LastSent returns the last packet written, or an error if none
func (m *MockConnection) LastSent() (SentPacket, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.Sent) == 0 {
		return SentPacket{}, fmt.Errorf("no packets sent")
	}
	return m.Sent[len(m.Sent)-1], nil
}

// SentService returns the packets written for service, in order
func (m *MockConnection) SentService(service protocol.Service) []*protocol.Packet {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*protocol.Packet
	for _, s := range m.Sent {
		if s.Packet.Service == service {
			out = append(out, s.Packet)
		}
	}
	return out
}

// ClearSent forgets recorded packets
func (m *MockConnection) ClearSent() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Sent = nil
}
