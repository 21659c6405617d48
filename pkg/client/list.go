package client

import (
	"strings"

	"github.com/aeolun/ymsg/pkg/protocol"
)

// LIST_15 marker values (key 302)
const listMarkerIgnore = "320"

// groupPlan collects where each buddy should end up during one import.
// Handles are normalized; groups keep their server spelling.
type groupPlan struct {
	order  []string
	groups map[string][]string
}

func newGroupPlan() *groupPlan {
	return &groupPlan{groups: make(map[string][]string)}
}

func (g *groupPlan) add(name, group string) {
	existing, seen := g.groups[name]
	if !seen {
		g.order = append(g.order, name)
	}
	for _, e := range existing {
		if strings.EqualFold(e, group) {
			return
		}
	}
	g.groups[name] = append(existing, group)
}

// apply makes the host's membership match the plan: missing placements
// are added and any group the import did not name is removed.
func (g *groupPlan) apply(s *Session) {
	for _, name := range g.order {
		want := g.groups[name]
		have := s.host.BuddyGroups(name)

		for _, group := range want {
			if !containsFold(have, group) {
				s.logf("%s isn't in group %s, adding", name, group)
				s.host.AddBuddy(name, group)
			}
		}
		for _, group := range have {
			if !containsFold(want, group) {
				s.logf("Deleting buddy %s from group %s", name, group)
				s.host.RemoveBuddy(name, group)
			}
		}
	}
}

func containsFold(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}

// handleCookie stores a Y or T cookie from a key 59 value
func (s *Session) handleCookie(raw string) {
	if len(raw) < 2 {
		return
	}
	value := raw[2:]
	if i := strings.IndexByte(value, ';'); i >= 0 {
		value = value[:i]
	}
	switch raw[0] {
	case 'Y':
		s.cookieY = value
	case 'T':
		s.cookieT = value
	}
}

// handleList processes the legacy buddy list. Fragments are accumulated
// and only parsed once a packet arrives with status 0.
func (s *Session) handleList(p *protocol.Packet) {
	if p.ID != 0 {
		s.sessionID = p.ID
	}

	for _, pair := range p.Pairs {
		switch pair.Key {
		case protocol.KeyListBuddies:
			s.imports.buddies.WriteString(pair.Value)
		case protocol.KeyListIgnore:
			s.imports.ignore.WriteString(pair.Value)
		case protocol.KeyListCookie:
			s.handleCookie(pair.Value)
		case protocol.KeyListPresence:
			s.imports.presence.WriteString(pair.Value)
		}
	}

	if p.Status != 0 {
		return
	}

	if s.imports.buddies.Len() > 0 {
		plan := newGroupPlan()
		for _, line := range strings.Split(s.imports.buddies.String(), "\n") {
			group, members, ok := strings.Cut(line, ":")
			if !ok {
				continue
			}
			group = s.decode(group, false)
			for _, bud := range strings.Split(members, ",") {
				name := Normalize(bud)
				if name == "" {
					continue
				}
				s.friends.findOrNew(name)
				plan.add(name, group)
			}
		}
		s.imports.buddies.Reset()
		plan.apply(s)
	}

	gotServerList := false
	if s.imports.ignore.Len() > 0 {
		for _, bud := range strings.Split(s.imports.ignore.String(), ",") {
			if bud == "" {
				continue
			}
			// the server is already ignoring these
			gotServerList = true
			s.host.AddDeny(bud)
		}
		s.imports.ignore.Reset()
	}

	if gotServerList {
		s.gotServerList = true
		switch s.host.PermitDeny() {
		case PrivacyAllowBuddylist, PrivacyDenyAll, PrivacyAllowUsers:
		default:
			s.logf("%s privacy defaulting to deny users", s.opts.Username)
			s.host.SetPermitDeny(PrivacyDenyUsers)
		}
	}

	if s.imports.presence.Len() > 0 {
		for _, bud := range strings.Split(s.imports.presence.String(), ",") {
			if f := s.friends.find(bud); f != nil {
				s.logf("Setting presence for %s to perm offline", bud)
				f.Presence = PresencePermOffline
			}
		}
		s.imports.presence.Reset()
	}

	s.metrics.RecordFriends(len(s.friends))
}

// handleList15 processes the record style buddy list. A 302 marker of 320
// ends the groups; every buddy after it is on the ignore list.
func (s *Session) handleList15(p *protocol.Packet) {
	plan := newGroupPlan()
	group := ""
	inGroup := false
	var f *Friend

	for _, pair := range p.Pairs {
		switch pair.Key {
		case protocol.KeyListMarker:
			if pair.Value == listMarkerIgnore {
				group, inGroup = "", false
			}
		case protocol.KeyListGroup:
			group, inGroup = s.decode(pair.Value, false), true
		case protocol.KeyListBuddy:
			name := Normalize(pair.Value)
			if inGroup {
				f = s.friends.findOrNew(name)
				plan.add(name, group)
			} else {
				f = nil
				s.host.AddDeny(name)
			}
		case protocol.KeyListProtocol:
			if f != nil {
				f.Protocol = protocol.Atoi(pair.Value)
				s.logf("Setting protocol to %d", f.Protocol)
			}
		}
	}

	plan.apply(s)
	s.metrics.RecordFriends(len(s.friends))
}
