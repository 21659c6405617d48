package client

import (
	"strings"

	"github.com/aeolun/ymsg/pkg/protocol"
)

// Picture types sent in key 206 of picture and avatar updates
const (
	pictureNone   = 0
	pictureAvatar = 1
	pictureIcon   = 2
)

// Key 13 of a PICTURE packet
const (
	pictureRequest = 1
	pictureInfo    = 2
)

// PictureLifetime is how long the server keeps an uploaded icon, in seconds.
const PictureLifetime = 604800

// IconChecksum hashes icon data the way the official client does, so
// checksums compare equal across clients.
func IconChecksum(data []byte) int32 {
	var h uint32
	for _, b := range data {
		h = h*31 + uint32(int32(int8(b)))
	}
	return int32(h)
}

// iconChecksumSeen handles key 192 of a status packet.
func (s *Session) iconChecksumSeen(name string, f *Friend, checksum int32) {
	if checksum == 0 || checksum == -1 {
		if f != nil {
			f.NeedsIconRequest = true
		}
		s.host.ClearIcon(name)
		return
	}
	if f == nil {
		return
	}
	f.NeedsIconRequest = false
	if s.host.HasBuddy(name) && !s.iconCurrent(name, checksum) {
		s.sendPictureRequest(name)
	}
}

// iconCurrent reports whether the host already has the icon with checksum.
func (s *Session) iconCurrent(who string, checksum int32) bool {
	stored, _ := s.host.IconChecksum(who)
	return stored == checksum
}

// handlePicture handles icon requests from peers and icon info replies.
func (s *Session) handlePicture(p *protocol.Packet) {
	var (
		who, url string
		checksum int32
		sendInfo bool
		gotInfo  bool
	)
	for _, pair := range p.Pairs {
		switch pair.Key {
		case protocol.KeyPicMe, protocol.KeyPicFrom:
			who = pair.Value
		case protocol.KeyPicType:
			switch protocol.Atoi(pair.Value) {
			case pictureRequest:
				sendInfo = true
			case pictureInfo:
				gotInfo = true
			}
		case protocol.KeyPicURL:
			url = pair.Value
		case protocol.KeyPicChecksum:
			checksum = int32(protocol.Atoi(pair.Value))
		}
	}

	// the official client sends 0.png when no icon is set
	if who != "" && gotInfo && url != "" && len(url) >= 7 && strings.EqualFold(url[:7], "http://") {
		if s.host.HasBuddy(who) && s.iconCurrent(who, checksum) {
			return
		}
		s.host.FetchIcon(who, url, checksum)
	} else if who != "" && sendInfo {
		if err := s.sendPictureInfo(who); err != nil {
			s.logf("Attempted to send picture info: %v", err)
		}
	}
}

// handlePictureUpdate covers PICTURE_UPDATE and AVATAR_UPDATE.
func (s *Session) handlePictureUpdate(p *protocol.Packet) {
	who := ""
	kind := pictureNone
	for _, pair := range p.Pairs {
		switch pair.Key {
		case protocol.KeyPicFrom:
			who = pair.Value
		case protocol.KeyPicAvatar:
			kind = protocol.Atoi(pair.Value)
		}
	}
	if who == "" {
		return
	}

	switch kind {
	case pictureIcon:
		s.sendPictureRequest(who)
	case pictureNone, pictureAvatar:
		s.host.ClearIcon(who)
		if f := s.friends.find(who); f != nil {
			f.NeedsIconRequest = true
		}
		s.logf("Setting user %s's icon to nil", who)
	}
}

func (s *Session) handlePictureChecksum(p *protocol.Packet) {
	who := ""
	var checksum int32
	for _, pair := range p.Pairs {
		switch pair.Key {
		case protocol.KeyPicFrom:
			who = pair.Value
		case protocol.KeyPicChecksum:
			checksum = int32(protocol.Atoi(pair.Value))
		}
	}
	if who != "" && s.host.HasBuddy(who) && !s.iconCurrent(who, checksum) {
		s.sendPictureRequest(who)
	}
}

// handlePictureUpload receives the url our uploaded icon is served from.
func (s *Session) handlePictureUpload(p *protocol.Packet) {
	url, ok := p.Get(protocol.KeyPicURL)
	if !ok {
		return
	}
	s.pictureURL = url
	s.host.StorePicture(url, s.pictureChecksum)
	s.sendPictureUpdate(pictureIcon)
	if err := s.sendPictureChecksum(); err != nil {
		s.logf("Failed to send picture checksum: %v", err)
	}
}

// SetPicture sets our buddy icon. nil clears it. Data that matches the
// stored checksum and url is not uploaded again.
func (s *Session) SetPicture(data []byte) {
	if data == nil {
		s.pictureURL = ""
		s.pictureChecksum = 0
		s.pendingUpload = nil
		s.host.StorePicture("", 0)
		if s.loggedIn {
			s.sendPictureUpdate(pictureNone)
		}
		return
	}

	old := s.opts.PictureChecksum
	checksum := IconChecksum(data)
	s.pictureChecksum = checksum

	fresh := s.opts.PictureExpires > s.now().Unix()+24*60*60
	if checksum == old && old != 0 && fresh && s.opts.PictureURL != "" {
		s.logf("Buddy icon is up to date, not uploading")
		s.pictureURL = s.opts.PictureURL
		return
	}

	if !s.loggedIn {
		s.pendingUpload = data
		return
	}
	s.host.UploadIcon(data)
}

// PictureURL is where our icon is served from, if one was uploaded.
func (s *Session) PictureURL() string { return s.pictureURL }

// PictureChecksum is the checksum of our current icon.
func (s *Session) PictureChecksum() int32 { return s.pictureChecksum }

func (s *Session) sendPictureInfo(who string) error {
	if s.pictureURL == "" {
		return ErrNoPicture
	}
	return s.send(protocol.NewPacket(protocol.ServicePicture, protocol.StatusAvailable, 0).
		Add(protocol.KeyPicMe, s.displayName).
		Add(protocol.KeyPicFrom, s.displayName).
		Add(protocol.KeyPicTo, who).
		AddInt(protocol.KeyPicType, pictureInfo).
		Add(protocol.KeyPicURL, s.pictureURL).
		AddInt(protocol.KeyPicChecksum, int(s.pictureChecksum)))
}

func (s *Session) sendPictureRequest(who string) {
	err := s.send(protocol.NewPacket(protocol.ServicePicture, protocol.StatusAvailable, 0).
		Add(protocol.KeyPicFrom, s.displayName).
		Add(protocol.KeyPicTo, who).
		AddInt(protocol.KeyPicType, pictureRequest))
	if err != nil {
		s.logf("Failed to request picture from %s: %v", who, err)
	}
}

func (s *Session) sendPictureChecksum() error {
	return s.send(protocol.NewPacket(protocol.ServicePictureChecksum, protocol.StatusAvailable, 0).
		Add(protocol.KeyPicMe, s.displayName).
		Add(protocol.KeyPicShared, "1").
		AddInt(protocol.KeyPicChecksum, int(s.pictureChecksum)))
}

func (s *Session) sendPictureUpdateTo(who string, kind int) error {
	return s.send(protocol.NewPacket(protocol.ServicePictureUpdate, protocol.StatusAvailable, 0).
		Add(protocol.KeyPicMe, s.displayName).
		Add(protocol.KeyPicTo, who).
		AddInt(protocol.KeyPicAvatar, kind))
}

// sendPictureUpdate tells every online friend about our icon.
func (s *Session) sendPictureUpdate(kind int) {
	for _, who := range s.sortedFriends() {
		if s.friends[who].Status == protocol.StatusOffline {
			continue
		}
		if err := s.sendPictureUpdateTo(who, kind); err != nil {
			s.logf("Failed to send picture update to %s: %v", who, err)
		}
	}
}
