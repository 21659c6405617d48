package client

import (
	"encoding/base64"
	"fmt"
	"unicode/utf8"

	"github.com/aeolun/ymsg/pkg/protocol"
)

// defaultAwayMessage goes out when an away custom status has no text
const defaultAwayMessage = "Away"

// updateStatus reports f to the host. Only buddies on the host's list are
// reported, and offline buddies are left to the explicit offline report.
func (s *Session) updateStatus(name string, f *Friend) {
	if name == "" || f == nil || !s.host.HasBuddy(name) {
		return
	}
	if f.Status == protocol.StatusOffline {
		return
	}

	switch f.Status {
	case protocol.StatusAvailable, protocol.StatusInvisible, protocol.StatusCustom, protocol.StatusIdle:
	default:
		if !f.Status.IsAway() {
			s.logf("Warning, unknown status %d", f.Status)
		}
	}

	state := BuddyState{
		State:  f.State(),
		Status: f.Status,
		Idle:   f.Idle,
		Game:   f.Game,
	}
	if f.Status == protocol.StatusCustom {
		state.Message = f.Message
	}
	s.host.BuddyStatus(name, state)
}

// handleStatus processes every presence style packet. Pairs are applied
// in order; key 7 starts a new buddy and flushes the previous one.
func (s *Session) handleStatus(p *protocol.Packet) {
	if p.Service == protocol.ServiceLogoff && p.Status == protocol.StatusDisconnected {
		s.fail(ReasonOtherLocation, true, "You have signed on from another location.", nil)
		return
	}

	var (
		f    *Friend
		name string
	)

	for _, pair := range p.Pairs {
		switch pair.Key {
		case protocol.KeyStatusMe, protocol.KeyStatusCount,
			protocol.KeyStatusSession, protocol.KeyStatusChat:
			// nothing to do

		case protocol.KeyStatusName:
			if !s.loggedIn {
				s.onLoggedIn(pair.Value)
			}

		case protocol.KeyStatusBuddy:
			if name != "" && f != nil {
				s.updateStatus(name, f)
			}
			name, f = pair.Value, nil
			if name != "" && utf8.ValidString(name) {
				f = s.friends.findOrNew(name)
			} else {
				name = ""
			}

		case protocol.KeyStatusCode:
			if f == nil {
				break
			}
			f.Status = protocol.Status(protocol.Atoi(pair.Value))
			if f.Status.IsAway() {
				f.Away = 1
			} else {
				f.Away = 0
			}
			if f.Status == protocol.StatusIdle {
				// 137 may already have set a precise value
				if f.Idle == 0 {
					f.Idle = s.now().Unix()
				}
			} else {
				f.Idle = 0
			}
			if f.Status != protocol.StatusCustom {
				f.Message = ""
			}
			f.SMS = 0

		case protocol.KeyStatusMessage:
			if f != nil {
				f.Message = s.decode(pair.Value, false)
			}

		case protocol.KeyStatusAway:
			// set for available buddies too, where it does not mean idle
			if f == nil || f.Status == protocol.StatusAvailable {
				break
			}
			f.Away = protocol.Atoi(pair.Value)
			if f.Away == 2 && f.Idle == 0 {
				f.Idle = s.now().Unix()
			}

		case protocol.KeyStatusIdleHidden:
			if f != nil && f.Idle != 0 {
				f.Idle = -1
			}

		case protocol.KeyStatusIdleSeconds:
			if f != nil && f.Status != protocol.StatusAvailable {
				f.Idle = s.now().Unix() - int64(protocol.Atoi(pair.Value))
			}

		case protocol.KeyStatusOnline:
			if protocol.Atoi(pair.Value) != 0 {
				break
			}
			if f != nil {
				f.Status = protocol.StatusOffline
			}
			if name != "" {
				s.host.BuddyStatus(name, BuddyState{State: StateOffline, Status: protocol.StatusOffline})
			}

		case protocol.KeyStatusSMS:
			if f != nil {
				f.SMS = protocol.Atoi(pair.Value)
				s.updateStatus(name, f)
			}

		case protocol.KeyStatusRich:
			if decoded, err := base64.StdEncoding.DecodeString(pair.Value); err == nil && len(decoded) > 0 {
				s.logf("Got key 197, value = %q", decoded)
			}

		case protocol.KeyStatusIconChecksum:
			if name != "" {
				s.iconChecksumSeen(name, f, int32(protocol.Atoi(pair.Value)))
			}

		case protocol.KeyStatusError:
			s.host.ErrorNotice(s.decode(pair.Value, true), "")

		default:
			s.logf("Unknown status key %d", pair.Key)
		}
	}

	if name != "" && f != nil {
		s.updateStatus(name, f)
	}
	s.metrics.RecordFriends(len(s.friends))
}

// onLoggedIn runs once, on the first status packet naming us.
func (s *Session) onLoggedIn(name string) {
	s.displayName = name
	s.host.SetDisplayName(name)
	s.host.Connected()
	s.loggedIn = true

	if s.pendingUpload != nil {
		s.host.UploadIcon(s.pendingUpload)
		s.pendingUpload = nil
	}

	if err := s.sendStatus(s.status); err != nil {
		s.logf("Failed to send initial status: %v", err)
	}
}

// isAvailable reports whether our own status counts as available
func (s *Session) isAvailable() bool {
	switch s.baseStatus {
	case protocol.StatusAvailable:
		return true
	case protocol.StatusCustom:
		return !s.customAway
	default:
		return false
	}
}

// SetStatus changes our status. StatusAvailable with a message is sent as
// an available custom status; StatusCustom is an away custom status.
// StatusInvisible toggles invisibility instead of sending a status.
func (s *Session) SetStatus(status protocol.Status, message string) error {
	old := s.status

	s.message = ""
	s.customAway = false
	switch {
	case status == protocol.StatusAvailable && message != "":
		status = protocol.StatusCustom
		s.message = message
	case status == protocol.StatusCustom:
		s.customAway = true
		s.message = message
	}
	s.baseStatus = status
	s.status = status

	return s.sendStatus(old)
}

// sendStatus writes the current status. old is the status we had before,
// which matters when leaving invisibility.
func (s *Session) sendStatus(old protocol.Status) error {
	if s.status == protocol.StatusInvisible {
		return s.send(protocol.NewPacket(protocol.ServiceVisibleToggle, protocol.StatusAvailable, 0).
			Add(protocol.KeyStatusOnline, "2"))
	}

	pkt := protocol.NewPacket(protocol.ServiceStatusUpdate, protocol.StatusAvailable, 0).
		Add(protocol.KeyStatusCode, s.status.String()).
		Add(protocol.KeyStatusMessage, s.customMessage())
	if s.idle {
		pkt.Add(protocol.KeyStatusAway, "2")
	} else if !s.isAvailable() {
		pkt.Add(protocol.KeyStatusAway, "1")
	}
	if err := s.send(pkt); err != nil {
		return err
	}

	if old == protocol.StatusInvisible {
		if err := s.send(protocol.NewPacket(protocol.ServiceVisibleToggle, protocol.StatusAvailable, 0).
			Add(protocol.KeyStatusOnline, "1")); err != nil {
			return err
		}
		// per-session presence only lasts while invisible
		for _, f := range s.friends {
			if f.Presence == PresenceOnline {
				f.Presence = PresenceDefault
			}
		}
	}
	return nil
}

// customMessage is the key 19 value for the current status
func (s *Session) customMessage() string {
	if s.status != protocol.StatusCustom {
		return ""
	}
	if s.message == "" {
		if s.customAway {
			return defaultAwayMessage
		}
		return ""
	}
	return StripHTML(s.encode(s.message))
}

// SetIdle marks us idle or back. Idle is reported as StatusIdle unless a
// custom status is set.
func (s *Session) SetIdle(idle bool) error {
	s.idle = idle
	if idle && s.status != protocol.StatusCustom {
		s.status = protocol.StatusIdle
	} else if !idle && s.status == protocol.StatusIdle {
		s.status = s.baseStatus
	}

	msg := ""
	if s.status == protocol.StatusCustom {
		if s.message != "" {
			msg = StripHTML(s.encode(s.message))
		} else {
			msg = defaultAwayMessage
		}
	}

	pkt := protocol.NewPacket(protocol.ServiceStatusUpdate, protocol.StatusAvailable, 0).
		Add(protocol.KeyStatusCode, s.status.String()).
		Add(protocol.KeyStatusMessage, msg)
	if idle {
		pkt.Add(protocol.KeyStatusAway, "2")
	} else if !s.isAvailable() {
		pkt.Add(protocol.KeyStatusAway, "1")
	}
	return s.send(pkt)
}

// Keepalive pings the pager, and the chat server when we are in chat.
func (s *Session) Keepalive() error {
	if err := s.send(protocol.NewPacket(protocol.ServicePing, protocol.StatusAvailable, 0)); err != nil {
		return err
	}
	if !s.chat.online || s.web {
		return nil
	}
	return s.send(protocol.NewPacket(protocol.ServiceChatPing, protocol.StatusAvailable, 0).
		Add(protocol.KeyChatMember, s.displayName))
}

// StatusText is the text shown for a buddy in a list.
func StatusText(f *Friend) string {
	if f == nil {
		return ""
	}
	switch f.Status {
	case protocol.StatusCustom:
		return f.Message
	case protocol.StatusAvailable:
		if f.Game != "" {
			return fmt.Sprintf("Playing %s", f.Game)
		}
		return ""
	default:
		return f.Status.Description()
	}
}
