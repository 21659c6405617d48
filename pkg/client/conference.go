package client

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/aeolun/ymsg/pkg/protocol"
)

const defaultConferenceTopic = "Join my conference..."

// Conference is a joined multi user conference. Members never include us.
type Conference struct {
	Room    string
	Topic   string
	Members []string
}

func (c *Conference) hasMember(who string) bool {
	return containsFold(c.Members, who)
}

func (c *Conference) addMember(who string) bool {
	if who == "" || c.hasMember(who) {
		return false
	}
	c.Members = append(c.Members, who)
	return true
}

func (c *Conference) removeMember(who string) bool {
	for i, m := range c.Members {
		if strings.EqualFold(m, who) {
			c.Members = append(c.Members[:i], c.Members[i+1:]...)
			return true
		}
	}
	return false
}

// findConference looks a room up ignoring case
func (s *Session) findConference(room string) *Conference {
	if c, ok := s.conferences[room]; ok {
		return c
	}
	for name, c := range s.conferences {
		if strings.EqualFold(name, room) {
			return c
		}
	}
	return nil
}

// Conference returns the joined conference named room.
func (s *Session) Conference(room string) (*Conference, bool) {
	c := s.findConference(room)
	return c, c != nil
}

func (s *Session) handleConfInvite(p *protocol.Packet) {
	// 11 tells us about an invite sent to somebody else
	if p.Status == 2 || p.Status == 11 {
		return
	}

	var (
		room, who, msg string
		members        []string
	)
	for _, pair := range p.Pairs {
		switch pair.Key {
		case protocol.KeyConfRoom:
			room = s.decode(pair.Value, false)
		case protocol.KeyConfInviter:
			who = pair.Value
			members = append(members, who)
		case protocol.KeyConfMember:
			members = append(members, pair.Value)
		case protocol.KeyConfInvite:
			msg = s.decode(pair.Value, false)
		}
	}

	if room == "" {
		return
	}
	if s.findConference(room) != nil {
		s.logf("Ignoring invitation for an already existing conference, room: %s", room)
		return
	}
	if !s.host.PrivacyCheck(who) || s.opts.IgnoreInvites {
		s.logf("Invite to conference %s from %s has been dropped.", room, who)
		return
	}
	s.host.ConferenceInvite(room, who, msg, members)
}

func (s *Session) handleConfDecline(p *protocol.Packet) {
	var (
		room, who, msg string
		utf8           bool
	)
	for _, pair := range p.Pairs {
		switch pair.Key {
		case protocol.KeyConfRoom:
			room = s.decode(pair.Value, false)
		case protocol.KeyConfDecliner:
			who = pair.Value
		case protocol.KeyConfText:
			msg = pair.Value
		case protocol.KeyConfUTF8:
			utf8 = protocol.Atoi(pair.Value) != 0
		}
	}
	if who == "" || room == "" || !s.host.PrivacyCheck(who) {
		return
	}

	c := s.findConference(room)
	if c == nil {
		return
	}
	if msg != "" {
		s.host.ConferenceMessage(c.Room, who, CodesToHTML(s.decode(msg, utf8)), s.now())
	}
	s.host.ConferenceNotice(c.Room, fmt.Sprintf("%s has declined to join.", who))
}

func (s *Session) handleConfLogon(p *protocol.Packet) {
	room, who := s.confRoomAndUser(p, protocol.KeyConfMember)
	if room == "" || who == "" {
		return
	}
	if c := s.findConference(room); c != nil && c.addMember(who) {
		s.host.ConferenceUserJoined(c.Room, who)
	}
}

func (s *Session) handleConfLogoff(p *protocol.Packet) {
	room, who := s.confRoomAndUser(p, protocol.KeyConfLeaver)
	if room == "" || who == "" {
		return
	}
	if c := s.findConference(room); c != nil && c.removeMember(who) {
		s.host.ConferenceUserLeft(c.Room, who)
	}
}

func (s *Session) confRoomAndUser(p *protocol.Packet, userKey protocol.Key) (room, who string) {
	for _, pair := range p.Pairs {
		switch pair.Key {
		case protocol.KeyConfRoom:
			room = s.decode(pair.Value, false)
		case userKey:
			who = pair.Value
		}
	}
	return room, who
}

func (s *Session) handleConfMessage(p *protocol.Packet) {
	var (
		room, who, msg string
		haveMsg, utf8  bool
	)
	for _, pair := range p.Pairs {
		switch pair.Key {
		case protocol.KeyConfRoom:
			room = s.decode(pair.Value, false)
		case protocol.KeyConfFrom:
			who = pair.Value
		case protocol.KeyConfText:
			msg, haveMsg = pair.Value, true
		case protocol.KeyConfUTF8:
			utf8 = protocol.Atoi(pair.Value) != 0
		}
	}
	if room == "" || who == "" || !haveMsg {
		return
	}
	c := s.findConference(room)
	if c == nil {
		return
	}
	s.host.ConferenceMessage(c.Room, who, CodesToHTML(s.decode(msg, utf8)), s.now())
}

// JoinConference accepts an invite. members is the list from the invite.
func (s *Session) JoinConference(room, topic string, members []string) error {
	if room == "" {
		return ErrUnknownRoom
	}
	if !s.loggedIn {
		return ErrNotLoggedIn
	}

	c := s.findConference(room)
	if c == nil {
		c = &Conference{Room: room}
		s.conferences[room] = c
	}
	c.Topic = topic

	pkt := protocol.NewPacket(protocol.ServiceConfLogon, protocol.StatusAvailable, s.sessionID).
		Add(protocol.KeyConfMe, s.displayName).
		Add(protocol.KeyConfFrom, s.displayName).
		Add(protocol.KeyConfRoom, room)
	for _, m := range members {
		if m == "" || m == s.displayName {
			continue
		}
		pkt.Add(protocol.KeyConfFrom, m)
		c.addMember(m)
	}
	return s.send(pkt)
}

// DeclineConference turns down an invite to room.
func (s *Session) DeclineConference(room string, members []string, msg string) error {
	if room == "" {
		return ErrUnknownRoom
	}
	pkt := protocol.NewPacket(protocol.ServiceConfDecline, protocol.StatusAvailable, s.sessionID).
		Add(protocol.KeyConfMe, s.displayName)
	for _, m := range members {
		if m == "" || m == s.displayName {
			continue
		}
		pkt.Add(protocol.KeyConfFrom, m)
	}
	pkt.Add(protocol.KeyConfRoom, room).
		Add(protocol.KeyConfText, s.encode(msg))
	return s.send(pkt)
}

// SendConference sends msg, given as HTML, to every member of room.
func (s *Session) SendConference(room, msg string) error {
	c := s.findConference(room)
	if c == nil {
		return ErrUnknownRoom
	}

	text := s.codec.Encode(HTMLToCodes(msg), true)
	pkt := protocol.NewPacket(protocol.ServiceConfMsg, protocol.StatusAvailable, s.sessionID).
		Add(protocol.KeyConfMe, s.displayName)
	for _, m := range c.Members {
		pkt.Add(protocol.KeyConfMember, m)
	}
	pkt.Add(protocol.KeyConfRoom, c.Room).
		Add(protocol.KeyConfText, text).
		Add(protocol.KeyConfUTF8, "1")
	return s.send(pkt)
}

// InviteConference asks buddy to join room.
func (s *Session) InviteConference(room, buddy, msg string) error {
	if buddy == "" {
		return ErrEmptyName
	}
	c := s.findConference(room)
	if c == nil {
		return ErrUnknownRoom
	}

	pkt := protocol.NewPacket(protocol.ServiceConfAddInvite, protocol.StatusAvailable, s.sessionID).
		Add(protocol.KeyConfMe, s.displayName).
		Add(protocol.KeyConfBuddy, buddy).
		Add(protocol.KeyConfRoom, c.Room).
		Add(protocol.KeyConfInvite, s.encode(msg)).
		Add(protocol.KeyConfFlag, "0")
	for _, m := range c.Members {
		if m == s.displayName {
			continue
		}
		pkt.Add(protocol.KeyConfInvitee, m).
			Add(protocol.KeyConfMember, m)
	}
	return s.send(pkt)
}

// LeaveConference logs off room and forgets it.
func (s *Session) LeaveConference(room string) error {
	c := s.findConference(room)
	if c == nil {
		return ErrUnknownRoom
	}
	delete(s.conferences, c.Room)
	return s.sendConfLogoff(c.Room, c.Members)
}

func (s *Session) sendConfLogoff(room string, members []string) error {
	s.logf("leaving conference %s", room)
	pkt := protocol.NewPacket(protocol.ServiceConfLogoff, protocol.StatusAvailable, s.sessionID).
		Add(protocol.KeyConfMe, s.displayName)
	for _, m := range members {
		pkt.Add(protocol.KeyConfFrom, m)
	}
	pkt.Add(protocol.KeyConfRoom, room)
	return s.send(pkt)
}

// InitiateConference creates a conference with a fresh room name and
// invites each of buddies. It returns the room name.
func (s *Session) InitiateConference(buddies []string, msg string) (string, error) {
	if !s.loggedIn {
		return "", ErrNotLoggedIn
	}
	if msg == "" {
		msg = defaultConferenceTopic
	}
	room := fmt.Sprintf("%s-%s", s.displayName, uuid.NewString()[:8])
	if err := s.JoinConference(room, msg, nil); err != nil {
		return "", err
	}
	for _, b := range buddies {
		if err := s.InviteConference(room, b, msg); err != nil {
			return room, err
		}
	}
	return room, nil
}
