package client

import (
	"fmt"
	"strings"

	"github.com/aeolun/ymsg/pkg/protocol"
)

// NEWCONTACT status values
const (
	contactStatus   = 1
	contactAddedUs  = 3
	contactDeniedUs = 7
)

// ADDBUDDY and IGNORECONTACT results (key 66)
const (
	addBuddyOK     = 0
	addBuddyOnList = 2
	ignoreOnList   = 12
)

// IGNORECONTACT key 13
const (
	ignoreAdd    = "1"
	ignoreRemove = "2"
)

const defaultGroup = "Buddies"

func (s *Session) handleNewContact(p *protocol.Packet) {
	switch p.Status {
	case contactStatus:
		s.handleStatus(p)
	case contactAddedUs:
		s.buddyAddedUs(p)
	case contactDeniedUs:
		s.buddyDeniedOurAdd(p)
	}
}

// buddyAddedUs asks the host whether who may keep us on their list.
func (s *Session) buddyAddedUs(p *protocol.Packet) {
	var id, who, msg string
	haveID := false
	for _, pair := range p.Pairs {
		switch pair.Key {
		case protocol.KeyContactID:
			id, haveID = pair.Value, true
		case protocol.KeyContactWho:
			who = pair.Value
		case protocol.KeyContactText:
			msg = s.decode(pair.Value, false)
		}
	}
	if !haveID {
		return
	}
	s.logf("%s added %s", who, id)

	accept := func() {}
	deny := func(reason string) {
		if err := s.RejectContact(who, reason); err != nil {
			s.logf("Failed to reject %s: %v", who, err)
		}
	}
	s.host.RequestAuthorization(who, msg, accept, deny)
}

func (s *Session) buddyDeniedOurAdd(p *protocol.Packet) {
	var who, msg string
	haveMsg := false
	for _, pair := range p.Pairs {
		switch pair.Key {
		case protocol.KeyContactWho:
			who = pair.Value
		case protocol.KeyContactText:
			msg, haveMsg = pair.Value, true
		}
	}
	if who == "" {
		return
	}

	text := fmt.Sprintf("%s has (retroactively) denied your request to add them to your list.", who)
	if haveMsg {
		text = fmt.Sprintf("%s has (retroactively) denied your request to add them to your list for the following reason: %s.",
			who, s.decode(msg, false))
	}
	s.host.Notice("Add buddy rejected", text)
	s.friends.remove(who)
	s.host.BuddyStatus(who, BuddyState{State: StateOffline, Status: protocol.StatusOffline})
}

// RejectContact refuses who's request to add us. An empty reason is sent
// as such.
func (s *Session) RejectContact(who, reason string) error {
	if who == "" {
		return ErrEmptyName
	}
	return s.send(protocol.NewPacket(protocol.ServiceRejectContact, protocol.StatusAvailable, 0).
		Add(protocol.KeyContactID, s.normalizedName()).
		Add(protocol.KeyContactBuddy, who).
		Add(protocol.KeyContactText, s.encode(reason)))
}

// handleAddBuddy acknowledges our ADDBUDDY. Already being on the server
// list counts as success.
func (s *Session) handleAddBuddy(p *protocol.Packet) {
	code := addBuddyOK
	var who, group string
	for _, pair := range p.Pairs {
		switch pair.Key {
		case protocol.KeyContactError:
			code = protocol.Atoi(pair.Value)
		case protocol.KeyContactBuddy:
			who = pair.Value
		case protocol.KeyContactGroup:
			group = pair.Value
		}
	}
	if who == "" {
		return
	}

	if code == addBuddyOK || code == addBuddyOnList {
		f := s.friends.findOrNew(who)
		s.updateStatus(who, f)
		s.metrics.RecordFriends(len(s.friends))
		return
	}

	s.host.ErrorNotice("Could not add buddy to server list",
		fmt.Sprintf("Could not add buddy %s to group %s to the server list on account %s.",
			who, s.decode(group, false), s.displayName))
}

// handleIgnoreContact asks the host to confirm ignoring someone who is
// still on the buddy list.
func (s *Session) handleIgnoreContact(p *protocol.Packet) {
	who, _ := p.Get(protocol.KeyContactMe)
	code := 0
	if v, ok := p.Get(protocol.KeyContactError); ok {
		code = protocol.Atoi(v)
	}
	if code != ignoreOnList {
		return
	}

	text := fmt.Sprintf("You have tried to ignore %s, but the user is on your buddy list. "+
		"Clicking \"Yes\" will remove and ignore the buddy.", who)
	yes := func() {
		s.logf("Removing '%s' from buddy list", who)
		for _, group := range s.host.BuddyGroups(who) {
			if err := s.RemoveBuddy(who, group); err != nil {
				s.logf("Failed to remove %s: %v", who, err)
			}
			s.host.RemoveBuddy(who, group)
		}
		s.host.AddDeny(who)
		if err := s.AddDeny(who); err != nil {
			s.logf("Failed to ignore %s: %v", who, err)
		}
	}
	no := func() {
		s.host.RemoveDeny(who)
	}
	s.host.Confirm("Ignore buddy?", text, yes, no)
}

// AddBuddy adds who to group on the server list. An empty group means
// the default group.
func (s *Session) AddBuddy(who, group string) error {
	if !s.loggedIn {
		return ErrNotLoggedIn
	}
	if who == "" {
		return ErrEmptyName
	}
	if !s.host.PrivacyCheck(who) {
		return ErrPrivacyBlocked
	}
	if group == "" {
		group = defaultGroup
	}
	return s.send(protocol.NewPacket(protocol.ServiceAddBuddy, protocol.StatusAvailable, 0).
		Add(protocol.KeyContactID, s.displayName).
		Add(protocol.KeyContactBuddy, who).
		Add(protocol.KeyContactGroup, s.encode(group)).
		Add(protocol.KeyContactText, ""))
}

// RemoveBuddy removes who from group. The cached friend is dropped once
// no other group holds it.
func (s *Session) RemoveBuddy(who, group string) error {
	if s.friends.find(who) == nil {
		return ErrUnknownBuddy
	}

	remove := true
	for _, g := range s.host.BuddyGroups(who) {
		if !strings.EqualFold(g, group) {
			remove = false
			break
		}
	}
	if remove {
		s.friends.remove(who)
	}

	return s.send(protocol.NewPacket(protocol.ServiceRemBuddy, protocol.StatusAvailable, 0).
		Add(protocol.KeyContactID, s.displayName).
		Add(protocol.KeyContactBuddy, who).
		Add(protocol.KeyContactGroup, s.encode(group)))
}

// AddDeny ignores who on the server.
func (s *Session) AddDeny(who string) error {
	return s.sendIgnore(who, ignoreAdd)
}

// RemoveDeny stops ignoring who.
func (s *Session) RemoveDeny(who string) error {
	return s.sendIgnore(who, ignoreRemove)
}

func (s *Session) sendIgnore(who, flag string) error {
	if !s.loggedIn {
		return ErrNotLoggedIn
	}
	if who == "" {
		return ErrEmptyName
	}
	return s.send(protocol.NewPacket(protocol.ServiceIgnoreContact, protocol.StatusAvailable, 0).
		Add(protocol.KeyContactID, s.displayName).
		Add(protocol.KeyContactBuddy, who).
		Add(protocol.KeyContactFlag, flag))
}

// SyncPermitDeny pushes the host's deny list to the server according to
// its privacy mode. Deny-all is enforced locally and sends nothing.
func (s *Session) SyncPermitDeny() error {
	var apply func(string) error
	switch s.host.PermitDeny() {
	case PrivacyAllowAll, PrivacyAllowUsers:
		apply = s.RemoveDeny
	case PrivacyAllowBuddylist, PrivacyDenyUsers:
		apply = s.AddDeny
	default:
		return nil
	}
	for _, who := range s.host.DenyList() {
		if err := apply(who); err != nil {
			return err
		}
	}
	return nil
}

// SetPermitDeny stores the privacy mode on the host and syncs the server.
func (s *Session) SetPermitDeny(p Privacy) error {
	s.host.SetPermitDeny(p)
	return s.SyncPermitDeny()
}

// ChangeGroup moves who from oldGroup to newGroup: add first, then remove.
func (s *Session) ChangeGroup(who, oldGroup, newGroup string) error {
	if s.friends.find(who) == nil {
		return ErrUnknownBuddy
	}
	gpn, gpo := s.encode(newGroup), s.encode(oldGroup)
	// identical after encoding would delete the buddy
	if gpn == gpo {
		return ErrAlreadyInGroup
	}

	err := s.send(protocol.NewPacket(protocol.ServiceAddBuddy, protocol.StatusAvailable, 0).
		Add(protocol.KeyContactID, s.displayName).
		Add(protocol.KeyContactBuddy, who).
		Add(protocol.KeyContactGroup, gpn).
		Add(protocol.KeyContactText, ""))
	if err != nil {
		return err
	}
	return s.send(protocol.NewPacket(protocol.ServiceRemBuddy, protocol.StatusAvailable, 0).
		Add(protocol.KeyContactID, s.displayName).
		Add(protocol.KeyContactBuddy, who).
		Add(protocol.KeyContactGroup, gpo))
}

// RenameGroup renames a group on the server.
func (s *Session) RenameGroup(oldName, newName string) error {
	gpn, gpo := s.encode(newName), s.encode(oldName)
	if gpn == gpo {
		return nil
	}
	return s.send(protocol.NewPacket(protocol.ServiceGroupRename, protocol.StatusAvailable, 0).
		Add(protocol.KeyContactID, s.displayName).
		Add(protocol.KeyContactGroup, gpo).
		Add(protocol.KeyContactNewGroup, gpn))
}

// handlePresence applies a per-buddy visibility override from the server.
// Value 1 turns the override on, 2 turns it off.
func (s *Session) handlePresence(p *protocol.Packet) {
	var who string
	value := 0
	for _, pair := range p.Pairs {
		switch pair.Key {
		case protocol.KeyPresenceBuddy:
			who = pair.Value
		case protocol.KeyPresenceValue:
			value = protocol.Atoi(pair.Value)
		}
	}
	if value != 1 && value != 2 {
		s.logf("Invalid presence value %d for %s", value, who)
		return
	}
	f := s.friends.find(who)
	if f == nil {
		return
	}

	on := value == 1
	switch {
	case p.Service == protocol.ServicePresencePerm && on:
		f.Presence = PresencePermOffline
	case on:
		f.Presence = PresenceOnline
	default:
		f.Presence = PresenceDefault
	}
}

// SetPresence changes how we appear to who. PresenceOnline only has an
// effect while we are invisible.
func (s *Session) SetPresence(who string, presence Presence) error {
	f := s.friends.find(who)
	if f == nil {
		return ErrUnknownBuddy
	}
	if f.Presence == presence {
		return nil
	}

	presencePacket := func(service protocol.Service, value, flag string) *protocol.Packet {
		return protocol.NewPacket(service, protocol.StatusAvailable, 0).
			Add(protocol.KeyPresenceMe, s.displayName).
			Add(protocol.KeyPresenceValue, value).
			Add(protocol.KeyPresenceFlag, flag).
			Add(protocol.KeyPresenceBuddy, who)
	}

	var pkt *protocol.Packet
	switch presence {
	case PresencePermOffline:
		pkt = presencePacket(protocol.ServicePresencePerm, "1", "2")
	case PresenceDefault:
		if f.Presence == PresencePermOffline {
			pkt = presencePacket(protocol.ServicePresencePerm, "2", "2")
		} else if s.status == protocol.StatusInvisible {
			pkt = presencePacket(protocol.ServicePresenceSession, "2", "1")
		}
	case PresenceOnline:
		if f.Presence == PresencePermOffline {
			if err := s.send(presencePacket(protocol.ServicePresencePerm, "2", "2")); err != nil {
				return err
			}
		}
		pkt = presencePacket(protocol.ServicePresenceSession, "1", "1")
	}
	if pkt == nil {
		return nil
	}
	return s.send(pkt)
}
