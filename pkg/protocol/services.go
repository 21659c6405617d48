package protocol

import "fmt"

// Service identifies the operation a packet carries
type Service uint16

const (
	ServiceLogon           Service = 0x01
	ServiceLogoff          Service = 0x02
	ServiceIsAway          Service = 0x03
	ServiceIsBack          Service = 0x04
	ServiceIdle            Service = 0x05
	ServiceMessage         Service = 0x06
	ServiceIDActivate      Service = 0x07
	ServiceIDDeactivate    Service = 0x08
	ServiceMailStat        Service = 0x09
	ServiceUserStat        Service = 0x0a
	ServiceNewMail         Service = 0x0b
	ServiceChatInvite      Service = 0x0c
	ServiceCalendar        Service = 0x0d
	ServiceNewPersonalMail Service = 0x0e
	ServiceNewContact      Service = 0x0f
	ServiceAddIdent        Service = 0x10
	ServiceAddIgnore       Service = 0x11
	ServicePing            Service = 0x12
	ServiceGotGroupRename  Service = 0x13
	ServiceSysMessage      Service = 0x14
	ServiceSkinName        Service = 0x15
	ServicePassthrough2    Service = 0x16
	ServiceConfInvite      Service = 0x18
	ServiceConfLogon       Service = 0x19
	ServiceConfDecline     Service = 0x1a
	ServiceConfLogoff      Service = 0x1b
	ServiceConfAddInvite   Service = 0x1c
	ServiceConfMsg         Service = 0x1d
	ServiceChatLogon       Service = 0x1e
	ServiceChatLogoff      Service = 0x1f
	ServiceChatMsg         Service = 0x20
	ServiceGameLogon       Service = 0x28
	ServiceGameLogoff      Service = 0x29
	ServiceGameMsg         Service = 0x2a
	ServiceFileTransfer    Service = 0x46
	ServiceVoiceChat       Service = 0x4a
	ServiceNotify          Service = 0x4b
	ServiceVerify          Service = 0x4c
	ServiceP2PFileXfer     Service = 0x4d
	ServicePeerToPeer      Service = 0x4f // Checks if P2P possible
	ServiceWebcam          Service = 0x50
	ServiceAuthResp        Service = 0x54
	ServiceList            Service = 0x55
	ServiceAuth            Service = 0x57
	ServiceAuthBuddy       Service = 0x6d
	ServiceAddBuddy        Service = 0x83
	ServiceRemBuddy        Service = 0x84
	ServiceIgnoreContact   Service = 0x85 // > 1, 7, 13 < 1, 66, 13, 0
	ServiceRejectContact   Service = 0x86
	ServiceGroupRename     Service = 0x89 // > 1, 65(new), 66(0), 67(old)
	ServiceKeepalive       Service = 0x8a
	ServiceChatOnline      Service = 0x96 // > 109(id), 1, 6(abcde) < 0,1
	ServiceChatGoto        Service = 0x97
	ServiceChatJoin        Service = 0x98 // > 1 104-room 129-1600326591 62-2
	ServiceChatLeave       Service = 0x99
	ServiceChatExit        Service = 0x9b
	ServiceChatAddInvite   Service = 0x9d
	ServiceChatLogout      Service = 0xa0
	ServiceChatPing        Service = 0xa1
	ServiceComment         Service = 0xa8
	ServicePresencePerm    Service = 0xb9
	ServicePresenceSession Service = 0xba
	ServiceAvatar          Service = 0xbc
	ServicePictureChecksum Service = 0xbd
	ServicePicture         Service = 0xbe
	ServicePictureUpdate   Service = 0xc1
	ServicePictureUpload   Service = 0xc2
	ServiceVisibleToggle   Service = 0xc5 // Y6 invisible toggle
	ServiceStatusUpdate    Service = 0xc6 // Y6 status update
	ServiceAvatarUpdate    Service = 0xc7
	ServiceVerifyIDExists  Service = 0xc8
	ServiceAudible         Service = 0xd0
	ServiceStatus15        Service = 0xf0
	ServiceList15          Service = 0xf1
	ServiceWebLogin        Service = 0x0226
)

var serviceNames = map[Service]string{
	ServiceLogon:           "LOGON",
	ServiceLogoff:          "LOGOFF",
	ServiceIsAway:          "ISAWAY",
	ServiceIsBack:          "ISBACK",
	ServiceIdle:            "IDLE",
	ServiceMessage:         "MESSAGE",
	ServiceIDActivate:      "IDACT",
	ServiceIDDeactivate:    "IDDEACT",
	ServiceMailStat:        "MAILSTAT",
	ServiceUserStat:        "USERSTAT",
	ServiceNewMail:         "NEWMAIL",
	ServiceChatInvite:      "CHATINVITE",
	ServiceCalendar:        "CALENDAR",
	ServiceNewPersonalMail: "NEWPERSONALMAIL",
	ServiceNewContact:      "NEWCONTACT",
	ServiceAddIdent:        "ADDIDENT",
	ServiceAddIgnore:       "ADDIGNORE",
	ServicePing:            "PING",
	ServiceGotGroupRename:  "GOTGROUPRENAME",
	ServiceSysMessage:      "SYSMESSAGE",
	ServiceSkinName:        "SKINNAME",
	ServicePassthrough2:    "PASSTHROUGH2",
	ServiceConfInvite:      "CONFINVITE",
	ServiceConfLogon:       "CONFLOGON",
	ServiceConfDecline:     "CONFDECLINE",
	ServiceConfLogoff:      "CONFLOGOFF",
	ServiceConfAddInvite:   "CONFADDINVITE",
	ServiceConfMsg:         "CONFMSG",
	ServiceChatLogon:       "CHATLOGON",
	ServiceChatLogoff:      "CHATLOGOFF",
	ServiceChatMsg:         "CHATMSG",
	ServiceGameLogon:       "GAMELOGON",
	ServiceGameLogoff:      "GAMELOGOFF",
	ServiceGameMsg:         "GAMEMSG",
	ServiceFileTransfer:    "FILETRANSFER",
	ServiceVoiceChat:       "VOICECHAT",
	ServiceNotify:          "NOTIFY",
	ServiceVerify:          "VERIFY",
	ServiceP2PFileXfer:     "P2PFILEXFER",
	ServicePeerToPeer:      "PEERTOPEER",
	ServiceWebcam:          "WEBCAM",
	ServiceAuthResp:        "AUTHRESP",
	ServiceList:            "LIST",
	ServiceAuth:            "AUTH",
	ServiceAuthBuddy:       "AUTHBUDDY",
	ServiceAddBuddy:        "ADDBUDDY",
	ServiceRemBuddy:        "REMBUDDY",
	ServiceIgnoreContact:   "IGNORECONTACT",
	ServiceRejectContact:   "REJECTCONTACT",
	ServiceGroupRename:     "GROUPRENAME",
	ServiceKeepalive:       "KEEPALIVE",
	ServiceChatOnline:      "CHATONLINE",
	ServiceChatGoto:        "CHATGOTO",
	ServiceChatJoin:        "CHATJOIN",
	ServiceChatLeave:       "CHATLEAVE",
	ServiceChatExit:        "CHATEXIT",
	ServiceChatAddInvite:   "CHATADDINVITE",
	ServiceChatLogout:      "CHATLOGOUT",
	ServiceChatPing:        "CHATPING",
	ServiceComment:         "COMMENT",
	ServicePresencePerm:    "PRESENCE_PERM",
	ServicePresenceSession: "PRESENCE_SESSION",
	ServiceAvatar:          "AVATAR",
	ServicePictureChecksum: "PICTURE_CHECKSUM",
	ServicePicture:         "PICTURE",
	ServicePictureUpdate:   "PICTURE_UPDATE",
	ServicePictureUpload:   "PICTURE_UPLOAD",
	ServiceVisibleToggle:   "Y6_VISIBLE_TOGGLE",
	ServiceStatusUpdate:    "Y6_STATUS_UPDATE",
	ServiceAvatarUpdate:    "AVATAR_UPDATE",
	ServiceVerifyIDExists:  "VERIFY_ID_EXISTS",
	ServiceAudible:         "AUDIBLE",
	ServiceStatus15:        "STATUS_15",
	ServiceList15:          "LIST_15",
	ServiceWebLogin:        "WEBLOGIN",
}

func (s Service) String() string {
	if name, ok := serviceNames[s]; ok {
		return name
	}
	return fmt.Sprintf("SERVICE_0x%04X", uint16(s))
}
