package botlib

import (
	"fmt"

	"github.com/aeolun/ymsg/pkg/client"
)

// Context provides methods for responding to messages.
// It is passed to message handlers and answers in the place the message
// came from: the sender for IMs, the room for conferences and chat.
type Context struct {
	bot     *Bot
	message *Message
}

// Message returns the message that triggered this context.
func (c *Context) Message() *Message {
	return c.message
}

// Reply answers where the message was received.
func (c *Context) Reply(content string) error {
	msg := c.message
	return c.bot.Do(func(s *client.Session) error {
		switch msg.Kind {
		case KindConference:
			return s.SendConference(msg.Room, content)
		case KindChat:
			return s.SendChat(content)
		default:
			return s.SendIM(msg.From, content)
		}
	})
}

// ReplyDirect sends an IM to the author, wherever the message came from.
func (c *Context) ReplyDirect(content string) error {
	from := c.message.From
	return c.bot.Do(func(s *client.Session) error {
		return s.SendIM(from, content)
	})
}

// Buzz buzzes the author.
func (c *Context) Buzz() error {
	from := c.message.From
	return c.bot.Do(func(s *client.Session) error {
		return s.SendBuzz(from)
	})
}

// Typing tells the author we are (or stopped) typing. It does nothing
// outside instant messages.
func (c *Context) Typing(typing bool) error {
	if !c.message.IsDirect() {
		return nil
	}
	from := c.message.From
	return c.bot.Do(func(s *client.Session) error {
		return s.SendTyping(from, typing)
	})
}

// Author returns the handle of the message author.
func (c *Context) Author() string {
	return c.message.From
}

// BotName returns the handle the bot is logged in as.
func (c *Context) BotName() string {
	return c.bot.DisplayName()
}

// Log logs a message using the bot's logger.
func (c *Context) Log(format string, args ...interface{}) {
	if c.bot.logger != nil {
		c.bot.logger.Printf(format, args...)
	}
}

// String returns a debug representation of the context.
func (c *Context) String() string {
	return fmt.Sprintf("Context{kind=%s, room=%q, author=%s}",
		c.message.Kind, c.message.Room, c.message.From)
}
