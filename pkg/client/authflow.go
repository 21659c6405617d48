package client

import (
	"fmt"

	"github.com/aeolun/ymsg/pkg/auth"
	"github.com/aeolun/ymsg/pkg/protocol"
)

// Auth methods announced in key 13 of the challenge
const (
	authMethodOld = 0
	authMethodNew = 1
	authMethodV2  = 2
)

// AUTHRESP error codes (key 66)
const (
	authErrInvalidName = 3
	authErrBadPassword = 13
	authErrLocked      = 14
)

var answerNewChallenge = auth.New

// Login starts the handshake. The server answers with an AUTH challenge.
func (s *Session) Login() error {
	name := s.normalizedName()
	if name == "" {
		return ErrEmptyName
	}
	return s.send(protocol.NewPacket(protocol.ServiceAuth, s.status, 0).
		Add(protocol.KeyAuthScreenName, name))
}

// WebLogin logs in with a cookie obtained from the web messenger login
// page instead of answering a challenge.
func (s *Session) WebLogin(cookie string) error {
	name := s.normalizedName()
	if name == "" {
		return ErrEmptyName
	}
	s.web = true
	return s.send(protocol.NewPacket(protocol.ServiceWebLogin, protocol.StatusWebLogin, 0).
		Add(protocol.KeyAuthName, name).
		Add(protocol.KeyAuthScreenName, name).
		Add(protocol.KeyAuthCookie, cookie))
}

// handleAuth answers the server's challenge. The response goes out
// before any other packet is processed.
func (s *Session) handleAuth(p *protocol.Packet) {
	var seed string
	haveSeed := false
	method := 0

	for _, pair := range p.Pairs {
		switch pair.Key {
		case protocol.KeyAuthSeed:
			seed, haveSeed = pair.Value, true
		case protocol.KeyAuthMethod:
			method = protocol.Atoi(pair.Value)
		}
	}
	if !haveSeed {
		return
	}

	switch method {
	case authMethodOld:
		s.answerOld(seed)
	case authMethodNew, authMethodV2:
		s.answerNew(seed)
	default:
		s.host.ErrorNotice("Failed Yahoo! Authentication",
			"The Yahoo server has requested the use of an unrecognized authentication method. "+
				"Signing on will likely fail.")
		s.answerNew(seed)
	}
}

func (s *Session) answerOld(seed string) {
	name := s.normalizedName()
	resp := auth.Old(name, s.opts.Password, seed)
	s.metrics.RecordAuthAttempt("old")

	pkt := protocol.NewPacket(protocol.ServiceAuthResp, protocol.StatusAvailable, 0).
		Add(protocol.KeyAuthName, name).
		Add(protocol.KeyAuthResult6, resp.Result6).
		Add(protocol.KeyAuthResult96, resp.Result96).
		Add(protocol.KeyAuthScreenName, name)
	if err := s.send(pkt); err != nil {
		s.logf("Failed to answer auth challenge: %v", err)
	}
}

func (s *Session) answerNew(seed string) {
	name := s.normalizedName()
	resp := answerNewChallenge(name, s.opts.Password, seed, auth.NewOptions{
		Fixup:  s.opts.KeyFixup,
		Encode: s.encode,
		Logger: s.logger,
	})
	s.metrics.RecordAuthAttempt("new")
	if resp.KeyUnfixed {
		s.host.ErrorNotice("Failed Yahoo! Authentication",
			"The Yahoo server sent a challenge that needs a key fixup and none is configured. "+
				"Signing on will likely fail.")
	}

	pkt := protocol.NewPacket(protocol.ServiceAuthResp, s.status, 0).
		Add(protocol.KeyAuthName, name).
		Add(protocol.KeyAuthResult6, resp.Result6).
		Add(protocol.KeyAuthResult96, resp.Result96).
		Add(protocol.KeyAuthScreenName, name).
		Add(protocol.KeyAuthVersion, ClientVersion)
	if s.pictureChecksum != 0 {
		pkt.AddInt(protocol.KeyAuthIconChecksum, int(s.pictureChecksum))
	}
	if err := s.send(pkt); err != nil {
		s.logf("Failed to answer auth challenge: %v", err)
	}
}

// handleAuthResp reports a failed login. Every outcome but the first bad
// password is terminal.
func (s *Session) handleAuthResp(p *protocol.Packet) {
	code := 0
	url := ""
	for _, pair := range p.Pairs {
		switch pair.Key {
		case protocol.KeyAuthError:
			code = protocol.Atoi(pair.Value)
		case protocol.KeyAuthURL:
			url = pair.Value
		}
	}

	var (
		msg    string
		reason = ReasonAuth
	)
	switch code {
	case authErrInvalidName:
		msg = "Invalid screen name."
		reason = ReasonInvalidName
	case authErrBadPassword:
		if !s.web {
			s.web = true
			s.host.Notice("Normal authentication failed!",
				"The normal authentication method has failed. This means either your password is incorrect, "+
					"or Yahoo!'s authentication scheme has changed. Web Messenger authentication will be "+
					"attempted, which will result in reduced functionality and features.")
			s.fail(ReasonAuth, false, "Normal authentication failed!", ErrWebMessengerRequired)
			return
		}
		msg = "Incorrect password."
	case authErrLocked:
		msg = "Your account is locked, please log in to the Yahoo! website."
		reason = ReasonLocked
	default:
		msg = fmt.Sprintf("Unknown error number %d. Logging into the Yahoo! website may fix this.", code)
	}

	if url != "" {
		msg += "\n" + url
	}
	s.fail(reason, true, msg, nil)
}
