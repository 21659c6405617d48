package botlib

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gen2brain/beeep"
	"github.com/patrickmn/go-cache"

	"github.com/aeolun/ymsg/pkg/client"
)

func desktopNotify(title, body string) error {
	return beeep.Notify(title, body, "")
}

// notifyDesktop shows a notification when enabled (best-effort)
func (b *Bot) notifyDesktop(title, body string) {
	if !b.config.NotifyDesktop {
		return
	}
	if len(body) > 100 {
		body = body[:97] + "..."
	}
	if err := b.notify(title, body); err != nil {
		b.logf("Failed to send desktop notification: %v", err)
	}
}

// Notifier

func (b *Bot) SetDisplayName(name string) {
	b.stateMu.Lock()
	b.displayName = name
	b.stateMu.Unlock()
}

func (b *Bot) Connected() {
	name := b.DisplayName()
	b.logf("Logged in as %s", name)
	if err := b.store.SetLastUsername(name); err != nil {
		b.logf("Failed to store username: %v", err)
	}
	b.emit(Event{Kind: EventConnected, Who: name})
	if b.onConnected != nil {
		b.queue(b.onConnected)
	}
}

func (b *Bot) ConnectionError(err *client.SessionError) {
	b.logf("Session error (%s): %v", err.Reason, err)
	b.emit(Event{Kind: EventError, Text: err.Error()})

	if errors.Is(err, client.ErrWebMessengerRequired) {
		if b.config.WebCookie == nil {
			b.setFatal(err)
			return
		}
		b.queue(b.webLogin)
		return
	}
	if err.Terminal {
		// conn is set before the first session starts
		if b.conn != nil {
			b.conn.DisableAutoReconnect()
		}
		b.setFatal(err)
	}
}

func (b *Bot) webLogin() {
	cookie, err := b.config.WebCookie(b.runContext())
	if err != nil {
		b.logf("Web messenger cookie failed: %v", err)
		b.setFatal(fmt.Errorf("web messenger login: %w", err))
		return
	}
	if err := b.Do(func(s *client.Session) error { return s.WebLogin(cookie) }); err != nil {
		b.logf("Web messenger login failed: %v", err)
	}
}

func (b *Bot) BuddyStatus(name string, state client.BuddyState) {
	b.roster.setState(name, state)
	text := state.State
	if state.Message != "" {
		text += " (" + state.Message + ")"
	}
	b.emit(Event{Kind: EventBuddyStatus, Who: name, Text: text})
}

func (b *Bot) Notice(title, text string) {
	b.logf("%s: %s", title, text)
	b.emit(Event{Kind: EventNotice, Text: title})
}

func (b *Bot) ErrorNotice(title, text string) {
	b.logf("ERROR %s: %s", title, text)
	b.emit(Event{Kind: EventNotice, Text: title + ": " + text})
}

func (b *Bot) Email(subject, from, to, url string) {
	b.logf("New mail for %s from %s: %s", to, from, subject)
	b.emit(Event{Kind: EventMail, Who: from, Text: subject})
	b.notifyDesktop("New Yahoo! Mail", fmt.Sprintf("%s: %s", from, subject))
}

func (b *Bot) EmailCount(count int, to, url string) {
	b.logf("%d new mails for %s", count, to)
	b.emit(Event{Kind: EventMail, Text: fmt.Sprintf("%d new", count)})
	b.notifyDesktop("New Yahoo! Mail", fmt.Sprintf("You have %d new e-mails.", count))
}

// RequestAuthorization accepts or denies according to AcceptAuthorization.
func (b *Bot) RequestAuthorization(who, msg string, accept func(), deny func(reason string)) {
	b.logf("%s added us to their list: %s", who, msg)
	b.notifyDesktop("Authorization request", fmt.Sprintf("%s wants to add you to their buddy list", who))

	if b.config.AcceptAuthorization && b.PrivacyCheck(who) {
		b.queue(func() { b.Do(func(*client.Session) error { accept(); return nil }) })
		return
	}
	b.queue(func() { b.Do(func(*client.Session) error { deny(""); return nil }) })
}

// Confirm always answers no; a bot does not rearrange its list unasked.
func (b *Bot) Confirm(title, text string, yes, no func()) {
	b.logf("%s: %s (declined)", title, text)
	b.queue(func() { b.Do(func(*client.Session) error { no(); return nil }) })
}

// Conversations

func (b *Bot) GotIM(from, msg string, when time.Time) {
	b.handleMessage(&Message{Kind: KindIM, From: from, HTML: msg, Time: when})
}

func (b *Bot) ConferenceMessage(room, from, msg string, when time.Time) {
	b.handleMessage(&Message{Kind: KindConference, From: from, Room: room, HTML: msg, Time: when})
}

func (b *Bot) ChatMessage(room, from, msg string, when time.Time) {
	b.handleMessage(&Message{Kind: KindChat, From: from, Room: room, HTML: msg, Time: when})
}

// handleMessage routes a message to the handlers, falling back to the
// auto reply for IMs.
func (b *Bot) handleMessage(msg *Message) {
	msg.Text = client.StripHTML(msg.HTML)
	msg.botName = b.DisplayName()

	// our own chat lines come back from the room
	if strings.EqualFold(msg.From, msg.botName) {
		return
	}

	b.logf("%s message from %s: %s", msg.Kind, msg.From, msg.Text)
	b.emit(Event{Kind: EventMessage, Who: msg.From, Room: msg.Room, Text: msg.Text, Time: msg.Time})

	ctx := &Context{bot: b, message: msg}
	switch {
	case msg.MentionsMe() && b.onMention != nil:
		b.queue(func() { b.onMention(ctx, msg) })
	case b.onMessage != nil:
		b.queue(func() { b.onMessage(ctx, msg) })
	case msg.IsDirect() && b.config.AutoReply != "":
		if b.replied.Add(client.Normalize(msg.From), struct{}{}, cache.DefaultExpiration) != nil {
			return
		}
		b.queue(func() {
			if err := ctx.Reply(b.config.AutoReply); err != nil {
				b.logf("Auto reply to %s failed: %v", msg.From, err)
			}
		})
	}
}

func (b *Bot) Typing(from string, typing bool) {
	text := "stopped typing"
	if typing {
		text = "typing"
	}
	b.emit(Event{Kind: EventTyping, Who: from, Text: text})
}

func (b *Bot) Buzz(from string, when time.Time) {
	b.logf("%s buzzed us", from)
	b.emit(Event{Kind: EventBuzz, Who: from, Time: when})
	b.notifyDesktop("BUZZ!", from+" buzzed you")
	if b.onBuzz != nil {
		msg := &Message{Kind: KindIM, From: from, Time: when, botName: b.DisplayName()}
		b.queue(func() { b.onBuzz(&Context{bot: b, message: msg}, msg) })
	}
}

func (b *Bot) FileOffer(from, filename string, size int64, url string) {
	b.logf("%s offered %s (%d bytes): %s", from, filename, size, url)
	b.emit(Event{Kind: EventFileOffer, Who: from, Text: filename})
}

func (b *Bot) ConferenceInvite(room, from, msg string, members []string) {
	b.logf("%s invited us to conference %s: %s", from, room, msg)
	b.emit(Event{Kind: EventRoom, Who: from, Room: room, Text: "conference invite"})

	if b.config.JoinConferences && b.PrivacyCheck(from) {
		b.queue(func() {
			if err := b.Do(func(s *client.Session) error { return s.JoinConference(room, msg, members) }); err != nil {
				b.logf("Failed to join conference %s: %v", room, err)
			}
		})
		return
	}
	b.queue(func() {
		if err := b.Do(func(s *client.Session) error { return s.DeclineConference(room, members, "") }); err != nil {
			b.logf("Failed to decline conference %s: %v", room, err)
		}
	})
}

func (b *Bot) ConferenceUserJoined(room, who string) {
	b.emit(Event{Kind: EventRoom, Who: who, Room: room, Text: "joined"})
}

func (b *Bot) ConferenceUserLeft(room, who string) {
	b.emit(Event{Kind: EventRoom, Who: who, Room: room, Text: "left"})
}

func (b *Bot) ConferenceNotice(room, text string) {
	b.logf("[%s] %s", room, text)
	b.emit(Event{Kind: EventRoom, Room: room, Text: text})
}

func (b *Bot) ChatInvite(room, from, msg string) {
	b.logf("%s invited us to chat room %s: %s", from, room, msg)
	b.emit(Event{Kind: EventRoom, Who: from, Room: room, Text: "chat invite"})
}

func (b *Bot) ChatJoined(room, topic string, members []string) {
	b.logf("Joined chat room %s (%d members): %s", room, len(members), topic)
	b.emit(Event{Kind: EventRoom, Room: room, Text: "joined: " + topic})
}

func (b *Bot) ChatUsersJoined(room string, members []string) {
	b.emit(Event{Kind: EventRoom, Room: room, Text: strings.Join(members, ", ") + " joined"})
}

func (b *Bot) ChatUserLeft(room, who string) {
	b.emit(Event{Kind: EventRoom, Who: who, Room: room, Text: "left"})
}

func (b *Bot) ChatTopic(room, topic string) {
	b.emit(Event{Kind: EventRoom, Room: room, Text: "topic: " + topic})
}

func (b *Bot) ChatLeft(room string) {
	b.logf("Left chat room %s", room)
	b.emit(Event{Kind: EventRoom, Room: room, Text: "left"})
}

// Whiteboards are not drawn on; a request is logged and the board closed.

func (b *Bot) WhiteboardStarted(who string) {
	b.logf("%s opened a doodle", who)
	b.queue(func() { b.Do(func(s *client.Session) error { return s.EndWhiteboard(who) }) })
}

func (b *Bot) WhiteboardCleared(who string) {}

func (b *Bot) WhiteboardDraw(who string, stroke client.Stroke) {}

func (b *Bot) WhiteboardClosed(who string) {
	b.logf("%s closed the doodle", who)
}
