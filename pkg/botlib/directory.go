package botlib

import (
	"slices"
	"strings"
	"sync"

	"github.com/aeolun/ymsg/pkg/client"
)

type rosterEntry struct {
	name   string
	groups []string
	state  client.BuddyState
}

// roster is the bot's buddy list and privacy list. The session calls it
// from the runner goroutine; the TUI reads snapshots from its own.
type roster struct {
	mu      sync.RWMutex
	buddies map[string]*rosterEntry
	denied  []string
	privacy client.Privacy
}

func newRoster() *roster {
	return &roster{
		buddies: make(map[string]*rosterEntry),
		privacy: client.PrivacyAllowAll,
	}
}

func (r *roster) has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.buddies[client.Normalize(name)]
	return ok
}

func (r *roster) groups(name string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.buddies[client.Normalize(name)]; ok {
		return slices.Clone(e.groups)
	}
	return nil
}

func (r *roster) add(name, group string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := client.Normalize(name)
	e, ok := r.buddies[key]
	if !ok {
		e = &rosterEntry{name: name, state: client.BuddyState{State: client.StateOffline}}
		r.buddies[key] = e
	}
	if !slices.ContainsFunc(e.groups, func(g string) bool { return strings.EqualFold(g, group) }) {
		e.groups = append(e.groups, group)
	}
}

func (r *roster) remove(name, group string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := client.Normalize(name)
	e, ok := r.buddies[key]
	if !ok {
		return
	}
	e.groups = slices.DeleteFunc(e.groups, func(g string) bool { return strings.EqualFold(g, group) })
	if len(e.groups) == 0 {
		delete(r.buddies, key)
	}
}

// setState records a presence change. Returns false for unknown buddies.
func (r *roster) setState(name string, state client.BuddyState) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.buddies[client.Normalize(name)]
	if !ok {
		return false
	}
	e.state = state
	return true
}

func (r *roster) deny(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !slices.ContainsFunc(r.denied, func(d string) bool { return strings.EqualFold(d, name) }) {
		r.denied = append(r.denied, name)
	}
}

func (r *roster) undeny(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.denied = slices.DeleteFunc(r.denied, func(d string) bool { return strings.EqualFold(d, name) })
}

func (r *roster) denyList() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.denied)
}

func (r *roster) isDenied(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.ContainsFunc(r.denied, func(d string) bool { return strings.EqualFold(d, name) })
}

func (r *roster) permitDeny() client.Privacy {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.privacy
}

func (r *roster) setPermitDeny(p client.Privacy) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.privacy = p
}

// reset marks everyone offline, used when the connection drops.
func (r *roster) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.buddies {
		e.state = client.BuddyState{State: client.StateOffline}
	}
}

// snapshot returns the buddy list sorted by group, then name.
func (r *roster) snapshot() []Buddy {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Buddy, 0, len(r.buddies))
	for _, e := range r.buddies {
		b := Buddy{
			Name:   e.name,
			Groups: slices.Clone(e.groups),
			State:  e.state.State,
			Status: e.state.Message,
			Idle:   e.state.Idle,
		}
		if b.Status == "" && e.state.Game != "" {
			b.Status = "Playing " + e.state.Game
		}
		out = append(out, b)
	}
	slices.SortFunc(out, func(a, b Buddy) int {
		if c := strings.Compare(firstGroup(a), firstGroup(b)); c != 0 {
			return c
		}
		return strings.Compare(client.Normalize(a.Name), client.Normalize(b.Name))
	})
	return out
}

func firstGroup(b Buddy) string {
	if len(b.Groups) == 0 {
		return ""
	}
	return b.Groups[0]
}

// Directory

func (b *Bot) HasBuddy(name string) bool { return b.roster.has(name) }
func (b *Bot) BuddyGroups(name string) []string { return b.roster.groups(name) }
func (b *Bot) DenyList() []string { return b.roster.denyList() }
func (b *Bot) PermitDeny() client.Privacy { return b.roster.permitDeny() }
func (b *Bot) SetPermitDeny(p client.Privacy) { b.roster.setPermitDeny(p) }

func (b *Bot) AddBuddy(name, group string) {
	b.roster.add(name, group)
	b.emit(Event{Kind: EventBuddyList, Who: name})
}

func (b *Bot) RemoveBuddy(name, group string) {
	b.roster.remove(name, group)
	b.emit(Event{Kind: EventBuddyList, Who: name})
}

func (b *Bot) AddDeny(name string) { b.roster.deny(name) }
func (b *Bot) RemoveDeny(name string) { b.roster.undeny(name) }

// PrivacyCheck applies the permit/deny mode to who.
func (b *Bot) PrivacyCheck(who string) bool {
	switch b.roster.permitDeny() {
	case client.PrivacyAllowAll:
		return true
	case client.PrivacyDenyAll:
		return false
	case client.PrivacyAllowBuddylist:
		return b.roster.has(who)
	default:
		return !b.roster.isDenied(who)
	}
}
