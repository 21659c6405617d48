package client

import (
	"time"

	"github.com/aeolun/ymsg/pkg/protocol"
)

// ConnectionInterface is what a runner needs from a pager connection.
// Connection implements it; MockConnection stands in for it in tests.
type ConnectionInterface interface {
	PacketWriter

	Connect() error
	Disconnect()
	Close()
	IsConnected() bool
	GetAddress() string
	GetConnectionType() string

	Incoming() <-chan *protocol.Packet
	Errors() <-chan error
	StateChanges() <-chan ConnectionStateUpdate

	DisableAutoReconnect()
	EnableAutoReconnect()
	SetThrottle(bytesPerSec int)

	GetBytesSent() uint64
	GetBytesReceived() uint64
}

// StoreInterface is the persistent account state. Store implements it
// with sqlite; MockStore keeps it in memory.
type StoreInterface interface {
	GetConfig(key string) (string, error)
	SetConfig(key, value string) error

	GetLastUsername() string
	SetLastUsername(name string) error

	GetPicture() (PictureRecord, bool)
	SetPicture(rec PictureRecord) error

	GetBuddyIcon(handle string) (BuddyIconRecord, bool, error)
	SaveBuddyIcon(rec BuddyIconRecord) error
	ForgetBuddyIcon(handle string) error
	BuddyIcons() ([]BuddyIconRecord, error)
	PruneBuddyIcons(before time.Time) (int64, error)

	GetStateDir() string
	Close() error
}

var (
	_ ConnectionInterface = (*Connection)(nil)
	_ StoreInterface      = (*Store)(nil)
)
