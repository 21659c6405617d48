package client

import (
	"strings"

	"github.com/aeolun/ymsg/pkg/protocol"
)

// chatState is the single public chat room a session can be in.
type chatState struct {
	online  bool
	in      bool
	room    string
	topic   string
	members []string

	// set while waiting for CHATONLINE to confirm
	pendingRoom  string
	pendingID    string
	pendingTopic string
	pendingGoto  string
}

func (c *chatState) clearPending() {
	c.pendingRoom, c.pendingID, c.pendingTopic, c.pendingGoto = "", "", "", ""
}

// Chat join failure codes
const (
	chatErrUnknownRoom  = -6
	chatErrRoomFull     = -15
	chatErrNotAvailable = -35
)

const chatCookie = "abcde"

// ChatRoom reports the room we are in, if any.
func (s *Session) ChatRoom() (string, bool) {
	return s.chat.room, s.chat.in
}

// ChatMembers lists the members of the current room as last reported.
func (s *Session) ChatMembers() []string {
	return append([]string(nil), s.chat.members...)
}

// chatOnline logs us in to the chat server
func (s *Session) chatOnline() error {
	return s.send(protocol.NewPacket(protocol.ServiceChatOnline, protocol.StatusAvailable, s.sessionID).
		Add(protocol.KeyChatMember, s.displayName).
		Add(protocol.KeyChatMe, s.displayName).
		Add(protocol.KeyChatCookie, chatCookie).
		Add(protocol.KeyChatLocale, s.opts.Locale).
		Add(protocol.KeyChatVersion, ClientVersion))
}

func (s *Session) chatJoin(room, id string) error {
	if id == "" {
		id = "0"
	}
	return s.send(protocol.NewPacket(protocol.ServiceChatJoin, protocol.StatusAvailable, s.sessionID).
		Add(protocol.KeyChatMe, s.displayName).
		Add(protocol.KeyChatRoom, s.codec.Encode(room, true)).
		Add(protocol.KeyChatCategory, "2").
		Add(protocol.KeyChatID, id))
}

func (s *Session) chatGoto(name string) error {
	return s.send(protocol.NewPacket(protocol.ServiceChatGoto, protocol.StatusAvailable, s.sessionID).
		Add(protocol.KeyChatMember, name).
		Add(protocol.KeyChatMe, s.displayName).
		Add(protocol.KeyChatCategory, "2"))
}

// handleChatOnline confirms chatOnline and runs whatever was waiting.
func (s *Session) handleChatOnline(p *protocol.Packet) {
	if p.Status != 1 {
		return
	}
	s.chat.online = true

	var err error
	switch {
	case s.chat.pendingGoto != "":
		err = s.chatGoto(s.chat.pendingGoto)
	case s.chat.pendingRoom != "":
		err = s.chatJoin(s.chat.pendingRoom, s.chat.pendingID)
	}
	if err != nil {
		s.logf("chat: %v", err)
	}
	s.chat.clearPending()
}

func (s *Session) handleChatLogout(p *protocol.Packet) {
	for _, pair := range p.Pairs {
		if pair.Key == protocol.KeyChatMe && !strings.EqualFold(pair.Value, s.displayName) {
			return
		}
	}
	if p.Status != 1 {
		return
	}
	s.chat.online = false
	s.chat.clearPending()
	if s.chat.in {
		s.leaveChat(s.chat.room, true)
	}
}

func (s *Session) handleChatGoto(p *protocol.Packet) {
	if p.Status == -1 {
		s.host.ErrorNotice("Failed to join buddy in chat", "Maybe they're not in a chat?")
	}
}

func (s *Session) handleChatJoin(p *protocol.Packet) {
	if p.Status == -1 {
		code := 0
		if len(p.Pairs) > 0 {
			code = protocol.Atoi(p.Pairs[0].Value)
		}
		const title = "Failed to join chat"
		switch code {
		case chatErrUnknownRoom:
			s.host.ErrorNotice(title, "Unknown room")
		case chatErrRoomFull:
			s.host.ErrorNotice(title, "Maybe the room is full")
		case chatErrNotAvailable:
			s.host.ErrorNotice(title, "Not available")
		default:
			s.host.ErrorNotice(title, "Unknown error. You may need to logout and wait five minutes before being able to rejoin a chatroom")
		}
		return
	}

	var (
		room, topic string
		members     []string
	)
	for _, pair := range p.Pairs {
		switch pair.Key {
		case protocol.KeyChatRoom:
			room = s.decode(pair.Value, true)
		case protocol.KeyChatTopic:
			topic = s.decode(pair.Value, true)
		case protocol.KeyChatMember:
			members = append(members, pair.Value)
		}
	}

	if room != "" && s.chat.in && !strings.EqualFold(room, s.chat.room) {
		s.leaveChat(s.chat.room, false)
	}

	// a lone member other than us is somebody joining a room we left
	selfOnly := len(members) == 1 && strings.EqualFold(members[0], s.displayName)
	switch {
	case room != "" && !s.chat.in && (len(members) > 1 || selfOnly):
		s.chat.in = true
		s.chat.room = room
		s.chat.topic = topic
		s.chat.members = nil
		for _, m := range members {
			if !containsFold(s.chat.members, m) {
				s.chat.members = append(s.chat.members, m)
			}
		}
		s.host.ChatJoined(room, topic, s.chat.members)

	case s.chat.in:
		if topic != "" && topic != s.chat.topic {
			s.chat.topic = topic
			s.host.ChatTopic(s.chat.room, topic)
		}
		var joined []string
		for _, m := range members {
			if !containsFold(s.chat.members, m) {
				s.chat.members = append(s.chat.members, m)
				joined = append(joined, m)
			}
		}
		if len(joined) > 0 {
			s.host.ChatUsersJoined(s.chat.room, joined)
		}

	default:
		return
	}

	for _, denied := range s.host.DenyList() {
		if containsFold(members, denied) {
			s.logf("Ignoring room member %s in room %s", denied, s.chat.room)
		}
	}
}

func (s *Session) handleChatExit(p *protocol.Packet) {
	var room, who string
	for _, pair := range p.Pairs {
		switch pair.Key {
		case protocol.KeyChatRoom:
			room = s.decode(pair.Value, true)
		case protocol.KeyChatMember:
			who = pair.Value
		}
	}
	if who == "" || room == "" || !s.chat.in || !strings.EqualFold(room, s.chat.room) {
		return
	}
	for i, m := range s.chat.members {
		if strings.EqualFold(m, who) {
			s.chat.members = append(s.chat.members[:i], s.chat.members[i+1:]...)
			s.host.ChatUserLeft(s.chat.room, who)
			return
		}
	}
}

func (s *Session) handleChatMessage(p *protocol.Packet) {
	var (
		who, msg string
		haveMsg  bool
		msgType  = 1
		utf8     = true
	)
	for _, pair := range p.Pairs {
		switch pair.Key {
		case protocol.KeyChatUTF8:
			utf8 = protocol.Atoi(pair.Value) != 0
		case protocol.KeyChatMember:
			who = pair.Value
		case protocol.KeyChatText:
			msg, haveMsg = pair.Value, true
		case protocol.KeyChatMsgType:
			msgType = protocol.Atoi(pair.Value)
		}
	}

	// messages keep arriving for a while after we part
	if who == "" || !s.chat.in {
		return
	}
	if !haveMsg {
		s.logf("Got a chat message packet with no message")
		return
	}

	text := CodesToHTML(s.decode(msg, utf8))
	if msgType == 2 || msgType == 3 {
		text = "/me " + text
	}
	s.host.ChatMessage(s.chat.room, who, text, s.now())
}

func (s *Session) handleChatInvite(p *protocol.Packet) {
	var room, who, msg string
	for _, pair := range p.Pairs {
		switch pair.Key {
		case protocol.KeyChatRoom:
			room = s.decode(pair.Value, true)
		case protocol.KeyChatText:
			msg = s.decode(pair.Value, false)
		case protocol.KeyChatInviter:
			who = pair.Value
		}
	}
	if room == "" || who == "" {
		return
	}
	if !s.host.PrivacyCheck(who) || s.opts.IgnoreInvites {
		s.logf("Invite to room %s from %s has been dropped.", room, who)
		return
	}
	s.host.ChatInvite(room, who, msg)
}

// JoinChat enters a public chat room, logging in to the chat server first
// if needed. id is the room id from a room list and may be empty.
func (s *Session) JoinChat(room, id string) error {
	if room == "" {
		return ErrUnknownRoom
	}
	if !s.loggedIn {
		return ErrNotLoggedIn
	}
	if s.web {
		return ErrChatUnavailable
	}
	if s.chat.online {
		return s.chatJoin(room, id)
	}
	s.chat.clearPending()
	s.chat.pendingRoom, s.chat.pendingID = room, id
	return s.chatOnline()
}

// ChatGoto joins whatever room name is in.
func (s *Session) ChatGoto(name string) error {
	if name == "" {
		return ErrEmptyName
	}
	if !s.loggedIn {
		return ErrNotLoggedIn
	}
	if s.web {
		return ErrChatUnavailable
	}
	if s.chat.online {
		return s.chatGoto(name)
	}
	s.chat.clearPending()
	s.chat.pendingGoto = name
	return s.chatOnline()
}

// LeaveChat leaves the current room and logs out of the chat server.
func (s *Session) LeaveChat() error {
	if !s.chat.in {
		return ErrNotInChat
	}
	return s.leaveChat(s.chat.room, true)
}

func (s *Session) leaveChat(room string, logout bool) error {
	err := s.send(protocol.NewPacket(protocol.ServiceChatExit, protocol.StatusAvailable, s.sessionID).
		Add(protocol.KeyChatRoom, s.codec.Encode(room, true)).
		Add(protocol.KeyChatMember, s.displayName).
		Add(protocol.KeyChatLeaving, "1").
		Add(protocol.KeyChatFlag, "0"))

	wasIn := s.chat.in
	s.chat.in = false
	s.chat.room, s.chat.topic = "", ""
	s.chat.members = nil
	if wasIn {
		s.host.ChatLeft(room)
	}

	if !logout || err != nil {
		return err
	}

	err = s.send(protocol.NewPacket(protocol.ServiceChatLogout, protocol.StatusAvailable, s.sessionID).
		Add(protocol.KeyChatMe, s.displayName))
	s.chat.online = false
	s.chat.clearPending()
	return err
}

// SendChat sends msg, given as HTML, to the current room. A leading "/me "
// sends an emote. The message is echoed to the host.
func (s *Session) SendChat(msg string) error {
	if !s.chat.in {
		return ErrNotInChat
	}

	msgType := "1"
	if rest, ok := strings.CutPrefix(msg, "/me "); ok {
		msg, msgType = rest, "2"
	}

	err := s.send(protocol.NewPacket(protocol.ServiceComment, protocol.StatusAvailable, s.sessionID).
		Add(protocol.KeyChatMe, s.displayName).
		Add(protocol.KeyChatRoom, s.encode(s.chat.room)).
		Add(protocol.KeyChatText, s.codec.Encode(HTMLToCodes(msg), true)).
		Add(protocol.KeyChatMsgType, msgType).
		Add(protocol.KeyChatUTF8, "1"))
	if err != nil {
		return err
	}

	if msgType == "2" {
		msg = "/me " + msg
	}
	s.host.ChatMessage(s.chat.room, s.displayName, msg, s.now())
	return nil
}

// InviteChat asks buddy to join the current room.
func (s *Session) InviteChat(buddy, msg string) error {
	if buddy == "" {
		return ErrEmptyName
	}
	if !s.chat.in {
		return ErrNotInChat
	}
	return s.send(protocol.NewPacket(protocol.ServiceChatAddInvite, protocol.StatusAvailable, s.sessionID).
		Add(protocol.KeyChatMe, s.displayName).
		Add(protocol.KeyChatBuddy, buddy).
		Add(protocol.KeyChatRoom, s.codec.Encode(s.chat.room, true)).
		Add(protocol.KeyChatText, s.encode(msg)).
		Add(protocol.KeyChatID, "0"))
}
