package client

import (
	"slices"
	"strings"
	"sync"
	"time"
)

// HostCall is one recorded call on MockHost
type HostCall struct {
	Method string
	Args   []any
}

// AuthRequest is a recorded RequestAuthorization call
type AuthRequest struct {
	Who, Msg string
	Accept   func()
	Deny     func(reason string)
}

// ConfirmRequest is a recorded Confirm call
type ConfirmRequest struct {
	Title, Text string
	Yes, No     func()
}

// MockHost is an in-memory Host that records every call. The buddy list,
// deny list and icon checksums behave like a simple real host so handlers
// that read them back see consistent state.
type MockHost struct {
	mu sync.Mutex

	Calls []HostCall

	// Buddies maps a buddy to the groups it is in
	Buddies   map[string][]string
	Denied    []string
	Privacy   Privacy
	Checksums map[string]int32

	DisplayName string
	Errors      []*SessionError
	Auths       []AuthRequest
	Confirms    []ConfirmRequest
}

var _ Host = (*MockHost)(nil)

// NewMockHost creates an empty host with privacy set to allow all
func NewMockHost() *MockHost {
	return &MockHost{
		Buddies:   make(map[string][]string),
		Privacy:   PrivacyAllowAll,
		Checksums: make(map[string]int32),
	}
}

func (h *MockHost) record(method string, args ...any) {
	h.Calls = append(h.Calls, HostCall{Method: method, Args: args})
}

// CallsTo returns the recorded calls of method, in order
func (h *MockHost) CallsTo(method string) []HostCall {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []HostCall
	for _, c := range h.Calls {
		if c.Method == method {
			out = append(out, c)
		}
	}
	return out
}

// Called reports whether method was called at least once
func (h *MockHost) Called(method string) bool {
	return len(h.CallsTo(method)) > 0
}

// Reset forgets recorded calls but keeps the buddy list
func (h *MockHost) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.Calls = nil
	h.Errors = nil
	h.Auths = nil
	h.Confirms = nil
}

// AddToList puts name in group without recording a call
func (h *MockHost) AddToList(name, group string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.Buddies[name] = append(h.Buddies[name], group)
}

// Directory

func (h *MockHost) HasBuddy(name string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, ok := h.Buddies[name]
	return ok
}

func (h *MockHost) BuddyGroups(name string) []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return slices.Clone(h.Buddies[name])
}

func (h *MockHost) AddBuddy(name, group string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.record("AddBuddy", name, group)
	h.Buddies[name] = append(h.Buddies[name], group)
}

func (h *MockHost) RemoveBuddy(name, group string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.record("RemoveBuddy", name, group)
	groups := slices.DeleteFunc(h.Buddies[name], func(g string) bool {
		return strings.EqualFold(g, group)
	})
	if len(groups) == 0 {
		delete(h.Buddies, name)
		return
	}
	h.Buddies[name] = groups
}

func (h *MockHost) DenyList() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return slices.Clone(h.Denied)
}

func (h *MockHost) AddDeny(name string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.record("AddDeny", name)
	if !slices.Contains(h.Denied, name) {
		h.Denied = append(h.Denied, name)
	}
}

func (h *MockHost) RemoveDeny(name string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.record("RemoveDeny", name)
	h.Denied = slices.DeleteFunc(h.Denied, func(d string) bool { return d == name })
}

func (h *MockHost) PermitDeny() Privacy {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.Privacy
}

func (h *MockHost) SetPermitDeny(p Privacy) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.record("SetPermitDeny", p)
	h.Privacy = p
}

// PrivacyCheck refuses denied users unless privacy allows everyone
func (h *MockHost) PrivacyCheck(who string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	switch h.Privacy {
	case PrivacyDenyAll:
		return false
	case PrivacyAllowBuddylist:
		_, ok := h.Buddies[who]
		return ok
	case PrivacyAllowAll:
		return true
	default:
		return !containsFold(h.Denied, who)
	}
}

// Notifier

func (h *MockHost) SetDisplayName(name string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.record("SetDisplayName", name)
	h.DisplayName = name
}

func (h *MockHost) Connected() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.record("Connected")
}

func (h *MockHost) ConnectionError(err *SessionError) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.record("ConnectionError", err)
	h.Errors = append(h.Errors, err)
}

func (h *MockHost) BuddyStatus(name string, state BuddyState) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.record("BuddyStatus", name, state)
}

func (h *MockHost) Notice(title, text string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.record("Notice", title, text)
}

func (h *MockHost) ErrorNotice(title, text string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.record("ErrorNotice", title, text)
}

func (h *MockHost) Email(subject, from, to, url string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.record("Email", subject, from, to, url)
}

func (h *MockHost) EmailCount(count int, to, url string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.record("EmailCount", count, to, url)
}

func (h *MockHost) RequestAuthorization(who, msg string, accept func(), deny func(string)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.record("RequestAuthorization", who, msg)
	h.Auths = append(h.Auths, AuthRequest{Who: who, Msg: msg, Accept: accept, Deny: deny})
}

func (h *MockHost) Confirm(title, text string, yes, no func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.record("Confirm", title, text)
	h.Confirms = append(h.Confirms, ConfirmRequest{Title: title, Text: text, Yes: yes, No: no})
}

// Conversations

func (h *MockHost) GotIM(from, msg string, when time.Time) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.record("GotIM", from, msg, when)
}

func (h *MockHost) Typing(from string, typing bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.record("Typing", from, typing)
}

func (h *MockHost) Buzz(from string, when time.Time) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.record("Buzz", from, when)
}

func (h *MockHost) FileOffer(from, filename string, size int64, url string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.record("FileOffer", from, filename, size, url)
}

func (h *MockHost) ConferenceInvite(room, from, msg string, members []string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.record("ConferenceInvite", room, from, msg, members)
}

func (h *MockHost) ConferenceUserJoined(room, who string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.record("ConferenceUserJoined", room, who)
}

func (h *MockHost) ConferenceUserLeft(room, who string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.record("ConferenceUserLeft", room, who)
}

func (h *MockHost) ConferenceMessage(room, from, msg string, when time.Time) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.record("ConferenceMessage", room, from, msg, when)
}

func (h *MockHost) ConferenceNotice(room, text string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.record("ConferenceNotice", room, text)
}

func (h *MockHost) ChatInvite(room, from, msg string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.record("ChatInvite", room, from, msg)
}

func (h *MockHost) ChatJoined(room, topic string, members []string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.record("ChatJoined", room, topic, slices.Clone(members))
}

func (h *MockHost) ChatUsersJoined(room string, members []string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.record("ChatUsersJoined", room, slices.Clone(members))
}

func (h *MockHost) ChatUserLeft(room, who string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.record("ChatUserLeft", room, who)
}

func (h *MockHost) ChatTopic(room, topic string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.record("ChatTopic", room, topic)
}

func (h *MockHost) ChatMessage(room, from, msg string, when time.Time) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.record("ChatMessage", room, from, msg, when)
}

func (h *MockHost) ChatLeft(room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.record("ChatLeft", room)
}

func (h *MockHost) WhiteboardStarted(who string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.record("WhiteboardStarted", who)
}

func (h *MockHost) WhiteboardCleared(who string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.record("WhiteboardCleared", who)
}

func (h *MockHost) WhiteboardDraw(who string, stroke Stroke) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.record("WhiteboardDraw", who, stroke)
}

func (h *MockHost) WhiteboardClosed(who string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.record("WhiteboardClosed", who)
}

// Icons

func (h *MockHost) FetchIcon(who, url string, checksum int32) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.record("FetchIcon", who, url, checksum)
}

func (h *MockHost) ClearIcon(who string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.record("ClearIcon", who)
	delete(h.Checksums, who)
}

func (h *MockHost) IconChecksum(who string) (int32, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	c, ok := h.Checksums[who]
	return c, ok
}

func (h *MockHost) ForgetIcon(who string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.record("ForgetIcon", who)
	delete(h.Checksums, who)
}

func (h *MockHost) UploadIcon(data []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.record("UploadIcon", data)
}

func (h *MockHost) StorePicture(url string, checksum int32) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.record("StorePicture", url, checksum)
}
