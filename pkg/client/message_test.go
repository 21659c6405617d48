package client

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aeolun/ymsg/pkg/protocol"
)

func imPacket(status protocol.Status, pairs ...protocol.Pair) *protocol.Packet {
	return &protocol.Packet{Service: protocol.ServiceMessage, Status: status, Pairs: pairs}
}

func TestReceiveIM(t *testing.T) {
	s, host, _ := loggedIn(t)

	s.Dispatch(imPacket(1,
		protocol.Pair{Key: protocol.KeyMsgFrom, Value: "bob"},
		protocol.Pair{Key: protocol.KeyMsgTo, Value: "alice"},
		protocol.Pair{Key: protocol.KeyMsgUTF8, Value: "1"},
		protocol.Pair{Key: protocol.KeyMsgTime, Value: "1600000000"},
		protocol.Pair{Key: protocol.KeyMsgText, Value: "\x1b[1mhi\x1b[x1m\r\nthere"},
	))

	calls := host.CallsTo("GotIM")
	require.Len(t, calls, 1)
	assert.Equal(t, []any{"bob", "<B>hi</B>\nthere", time.Unix(1600000000, 0)}, calls[0].Args)
}

func TestReceiveSeveralIMs(t *testing.T) {
	s, host, _ := loggedIn(t)

	s.Dispatch(imPacket(messageOffline,
		protocol.Pair{Key: protocol.KeyMsgFrom, Value: "bob"},
		protocol.Pair{Key: protocol.KeyMsgText, Value: "one"},
		protocol.Pair{Key: protocol.KeyMsgFrom, Value: "carol"},
		protocol.Pair{Key: protocol.KeyMsgText, Value: "two"},
	))

	calls := host.CallsTo("GotIM")
	require.Len(t, calls, 2)
	assert.Equal(t, "bob", calls[0].Args[0])
	assert.Equal(t, "one", calls[0].Args[1])
	assert.Equal(t, "carol", calls[1].Args[0])
	assert.Equal(t, testNow, calls[1].Args[2])
}

func TestPrivacyDropsRestOfPacket(t *testing.T) {
	s, host, _ := loggedIn(t)
	host.Privacy = PrivacyDenyUsers
	host.Denied = []string{"carol"}

	s.Dispatch(imPacket(1,
		protocol.Pair{Key: protocol.KeyMsgFrom, Value: "bob"},
		protocol.Pair{Key: protocol.KeyMsgText, Value: "a"},
		protocol.Pair{Key: protocol.KeyMsgFrom, Value: "carol"},
		protocol.Pair{Key: protocol.KeyMsgText, Value: "b"},
		protocol.Pair{Key: protocol.KeyMsgFrom, Value: "dave"},
		protocol.Pair{Key: protocol.KeyMsgText, Value: "c"},
	))

	calls := host.CallsTo("GotIM")
	require.Len(t, calls, 1)
	assert.Equal(t, "bob", calls[0].Args[0])
}

func TestReceiveBuzz(t *testing.T) {
	s, host, _ := loggedIn(t)

	s.Dispatch(imPacket(1,
		protocol.Pair{Key: protocol.KeyMsgFrom, Value: "bob"},
		protocol.Pair{Key: protocol.KeyMsgText, Value: "<ding>"},
	))

	assert.True(t, host.Called("Buzz"))
	assert.False(t, host.Called("GotIM"))
}

func TestMessageNotSent(t *testing.T) {
	s, host, _ := loggedIn(t)

	s.Dispatch(imPacket(messageFailed))

	calls := host.CallsTo("ErrorNotice")
	require.Len(t, calls, 1)
	assert.Equal(t, "Your Yahoo! message did not get sent.", calls[0].Args[0])
}

func TestImvironmentRemembered(t *testing.T) {
	s, _, conn := loggedIn(t)

	s.Dispatch(imPacket(1,
		protocol.Pair{Key: protocol.KeyMsgFrom, Value: "bob"},
		protocol.Pair{Key: protocol.KeyMsgText, Value: "hi"},
		protocol.Pair{Key: protocol.KeyMsgIMV, Value: "hearts;5"},
	))
	assert.Equal(t, "hearts;5", s.Imvironment("bob"))

	require.NoError(t, s.SendIM("bob", "hello"))
	assert.Equal(t, "hearts;5", value(lastSent(t, conn), protocol.KeyMsgIMV))
}

func TestDoodleRequestInMessage(t *testing.T) {
	s, host, conn := loggedIn(t)

	s.Dispatch(imPacket(1,
		protocol.Pair{Key: protocol.KeyMsgFrom, Value: "bob"},
		protocol.Pair{Key: protocol.KeyMsgIMV, Value: imvDoodle},
	))

	wb, ok := s.Whiteboard("bob")
	require.True(t, ok)
	assert.Equal(t, WhiteboardRequested, wb.State)
	assert.Len(t, conn.SentService(protocol.ServiceP2PFileXfer), 2)
	assert.False(t, host.Called("GotIM"))
}

func TestSendIM(t *testing.T) {
	s, _, conn := loggedIn(t)

	require.NoError(t, s.SendIM("bob", "<b>hi</b>"))

	p := lastSent(t, conn)
	assert.Equal(t, protocol.ServiceMessage, p.Service)
	assert.Equal(t, protocol.StatusOffline, p.Status)
	assert.Equal(t, []protocol.Pair{
		{Key: protocol.KeyMsgMe, Value: "alice"},
		{Key: protocol.KeyMsgTo, Value: "bob"},
		{Key: protocol.KeyMsgUTF8, Value: "1"},
		{Key: protocol.KeyMsgText, Value: "\x1b[1mhi\x1b[x1m"},
		{Key: protocol.KeyMsgIMV, Value: imvShutdown},
		{Key: protocol.KeyMsgIMVFlag, Value: "0"},
		{Key: protocol.KeyMsgTrailer, Value: "1"},
		{Key: protocol.KeyMsgIcon, Value: "0"},
	}, p.Pairs)
}

func TestSendIMKeepsTextAfterLink(t *testing.T) {
	s, _, conn := loggedIn(t)

	require.NoError(t, s.SendIM("bob", `see <a href="http://x.y">here</a> ok`))

	text, ok := lastSent(t, conn).Get(protocol.KeyMsgText)
	require.True(t, ok)
	assert.Equal(t, "see \x1b[lmhttp://x.y\x1b[xlm ok", text)
}

func TestSendIMCarriesProtocol(t *testing.T) {
	s, _, conn := loggedIn(t)
	s.Dispatch(&protocol.Packet{Service: protocol.ServiceList15, Pairs: []protocol.Pair{
		{Key: protocol.KeyListGroup, Value: "Friends"},
		{Key: protocol.KeyListBuddy, Value: "msnbuddy"},
		{Key: protocol.KeyListProtocol, Value: "2"},
	}})

	require.NoError(t, s.SendIM("msnbuddy", "hi"))
	assert.Equal(t, "2", value(lastSent(t, conn), protocol.KeyMsgProtocol))
}

func TestSendIMTooLong(t *testing.T) {
	s, _, conn := loggedIn(t)

	err := s.SendIM("bob", strings.Repeat("x", MaxMessageLen))

	assert.ErrorIs(t, err, ErrMessageTooLong)
	assert.Empty(t, conn.SentPackets())
}

func TestSendBuzzAndTyping(t *testing.T) {
	s, _, conn := loggedIn(t)

	require.NoError(t, s.SendBuzz("bob"))
	assert.Equal(t, "<ding>", value(lastSent(t, conn), protocol.KeyMsgText))

	require.NoError(t, s.SendTyping("bob", true))
	p := lastSent(t, conn)
	assert.Equal(t, protocol.ServiceNotify, p.Service)
	assert.Equal(t, protocol.StatusTyping, p.Status)
	assert.Equal(t, "TYPING", value(p, protocol.KeyMsgNotify))
	assert.Equal(t, "1", value(p, protocol.KeyMsgState))
	assert.Equal(t, "bob", value(p, protocol.KeyMsgTo))
}

func TestTypingNotification(t *testing.T) {
	s, host, _ := loggedIn(t)

	s.Dispatch(protocol.NewPacket(protocol.ServiceNotify, protocol.StatusTyping, 0).
		Add(protocol.KeyMsgFrom, "bob").
		Add(protocol.KeyMsgNotify, "TYPING").
		Add(protocol.KeyMsgState, "1"))

	calls := host.CallsTo("Typing")
	require.Len(t, calls, 1)
	assert.Equal(t, []any{"bob", true}, calls[0].Args)
}

func TestGameNotification(t *testing.T) {
	s, host, _ := loggedIn(t)
	host.AddToList("bob", "Friends")
	s.Dispatch(statusPacket(
		protocol.Pair{Key: protocol.KeyStatusBuddy, Value: "bob"},
		protocol.Pair{Key: protocol.KeyStatusCode, Value: "0"},
	))
	host.Reset()

	s.Dispatch(protocol.NewPacket(protocol.ServiceNotify, protocol.StatusAvailable, 0).
		Add(protocol.KeyMsgFrom, "bob").
		Add(protocol.KeyMsgNotify, "GAME").
		Add(protocol.KeyMsgState, "1").
		Add(protocol.KeyMsgText, "chess"))

	calls := host.CallsTo("BuddyStatus")
	require.Len(t, calls, 1)
	assert.Equal(t, "chess", calls[0].Args[1].(BuddyState).Game)

	bob, _ := s.Friend("bob")
	assert.Equal(t, "Playing chess", StatusText(bob))
}

func TestSystemMessage(t *testing.T) {
	s, host, _ := loggedIn(t)

	s.Dispatch(protocol.NewPacket(protocol.ServiceSysMessage, protocol.StatusAvailable, 0).
		Add(protocol.KeyMsgText, "Maintenance tonight"))

	calls := host.CallsTo("Notice")
	require.Len(t, calls, 1)
	assert.Equal(t, []any{"Yahoo! system message for alice:", "Maintenance tonight"}, calls[0].Args)
}

func TestNewMail(t *testing.T) {
	s, host, _ := loggedIn(t)

	s.Dispatch(protocol.NewPacket(protocol.ServiceNewMail, protocol.StatusAvailable, 0).
		Add(protocol.KeyMailCount, "3"))
	s.Dispatch(protocol.NewPacket(protocol.ServiceNewMail, protocol.StatusAvailable, 0).
		Add(protocol.KeyMailCount, "1").
		Add(protocol.KeyMailFromName, "Bob").
		Add(protocol.KeyMailFromAddr, "bob@example.com").
		Add(protocol.KeyMailSubject, `Caf\351`))

	counts := host.CallsTo("EmailCount")
	require.Len(t, counts, 1)
	assert.Equal(t, []any{3, "alice", MailURL}, counts[0].Args)

	mails := host.CallsTo("Email")
	require.Len(t, mails, 1)
	assert.Equal(t, []any{"Café", "Bob (bob@example.com)", "alice", MailURL}, mails[0].Args)
}

func TestNewMailDisabled(t *testing.T) {
	s, host, _ := loggedIn(t, func(o *Options) { o.CheckMail = false })

	s.Dispatch(protocol.NewPacket(protocol.ServiceNewMail, protocol.StatusAvailable, 0).
		Add(protocol.KeyMailCount, "3"))

	assert.False(t, host.Called("EmailCount"))
}

func TestAudible(t *testing.T) {
	s, host, _ := loggedIn(t)

	s.Dispatch(protocol.NewPacket(protocol.ServiceAudible, protocol.StatusAvailable, 0).
		Add(protocol.KeyMsgFrom, "bob").
		Add(protocol.KeyMsgAudibleID, "base.us.smiley.smiley43").
		Add(protocol.KeyMsgAudible, "hehe"))

	calls := host.CallsTo("GotIM")
	require.Len(t, calls, 1)
	assert.Equal(t, "[ Audible "+AudibleURL+"/us/base.us.smiley.smiley43.swf ] hehe", calls[0].Args[1])
}

func TestAudibleText(t *testing.T) {
	assert.Equal(t, "hehe", audibleText("nodots", "hehe"))
	assert.Equal(t, "[ Audible "+AudibleURL+"/tw/base.tw.x.swf ] hi", audibleText("base.tw.x", "hi"))
}
