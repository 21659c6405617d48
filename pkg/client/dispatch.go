package client

import (
	"github.com/aeolun/ymsg/pkg/protocol"
)

// Dispatch routes one received packet to its handler.
func (s *Session) Dispatch(p *protocol.Packet) {
	if s.closed {
		return
	}
	s.metrics.RecordPacketReceived(p.Service.String())

	switch p.Service {
	case protocol.ServiceLogon, protocol.ServiceLogoff,
		protocol.ServiceIsAway, protocol.ServiceIsBack,
		protocol.ServiceGameLogon, protocol.ServiceGameLogoff,
		protocol.ServiceChatLogon, protocol.ServiceChatLogoff,
		protocol.ServiceStatusUpdate, protocol.ServiceStatus15:
		s.handleStatus(p)
	case protocol.ServiceNotify:
		s.handleNotify(p)
	case protocol.ServiceMessage, protocol.ServiceGameMsg, protocol.ServiceChatMsg:
		s.handleMessage(p)
	case protocol.ServiceSysMessage:
		s.handleSysMessage(p)
	case protocol.ServiceNewMail:
		s.handleMail(p)
	case protocol.ServiceNewContact:
		s.handleNewContact(p)
	case protocol.ServiceAuthResp:
		s.handleAuthResp(p)
	case protocol.ServiceList:
		s.handleList(p)
	case protocol.ServiceList15:
		s.handleList15(p)
	case protocol.ServiceAuth:
		s.handleAuth(p)
	case protocol.ServiceAddBuddy:
		s.handleAddBuddy(p)
	case protocol.ServiceIgnoreContact:
		s.handleIgnoreContact(p)

	case protocol.ServiceConfInvite, protocol.ServiceConfAddInvite:
		s.handleConfInvite(p)
	case protocol.ServiceConfDecline:
		s.handleConfDecline(p)
	case protocol.ServiceConfLogon:
		s.handleConfLogon(p)
	case protocol.ServiceConfLogoff:
		s.handleConfLogoff(p)
	case protocol.ServiceConfMsg:
		s.handleConfMessage(p)

	case protocol.ServiceChatOnline:
		s.handleChatOnline(p)
	case protocol.ServiceChatLogout:
		s.handleChatLogout(p)
	case protocol.ServiceChatGoto:
		s.handleChatGoto(p)
	case protocol.ServiceChatJoin:
		s.handleChatJoin(p)
	case protocol.ServiceChatLeave, protocol.ServiceChatExit:
		s.handleChatExit(p)
	case protocol.ServiceChatInvite, protocol.ServiceChatAddInvite:
		s.handleChatInvite(p)
	case protocol.ServiceComment:
		s.handleChatMessage(p)
	case protocol.ServiceChatPing, protocol.ServicePing:

	case protocol.ServicePresencePerm, protocol.ServicePresenceSession:
		s.handlePresence(p)

	case protocol.ServiceP2PFileXfer:
		s.handleImvironment(p)
		s.handleFileTransfer(p)
	case protocol.ServiceFileTransfer:
		s.handleFileTransfer(p)
	case protocol.ServicePeerToPeer:
		s.handlePeerToPeer(p)

	case protocol.ServicePicture:
		s.handlePicture(p)
	case protocol.ServicePictureUpdate, protocol.ServiceAvatarUpdate:
		s.handlePictureUpdate(p)
	case protocol.ServicePictureChecksum:
		s.handlePictureChecksum(p)
	case protocol.ServicePictureUpload:
		s.handlePictureUpload(p)

	case protocol.ServiceAudible:
		s.handleAudible(p)

	default:
		s.logf("Unhandled service 0x%02x", uint16(p.Service))
	}
}
