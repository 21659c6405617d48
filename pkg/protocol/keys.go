package protocol

// Key is a pair key. The same number means different things in different
// services, so keys are declared per service family below and handlers only
// switch over the constants of their own family.
type Key int

// Presence and status update keys (LOGON, ISAWAY, Y6_STATUS_UPDATE, STATUS_15, ...)
const (
	KeyStatusMe           Key = 0
	KeyStatusName         Key = 1 // our own name; marks the first logon packet
	KeyStatusBuddy        Key = 7 // starts a new buddy record
	KeyStatusCount        Key = 8
	KeyStatusCode         Key = 10
	KeyStatusSession      Key = 11
	KeyStatusOnline       Key = 13 // "0" forces the buddy offline
	KeyStatusError        Key = 16
	KeyStatusChat         Key = 17
	KeyStatusMessage      Key = 19
	KeyStatusAway         Key = 47
	KeyStatusSMS          Key = 60
	KeyStatusIdleSeconds  Key = 137
	KeyStatusIdleHidden   Key = 138
	KeyStatusIconChecksum Key = 192
	KeyStatusRich         Key = 197 // base64 avatar/rich status blob
)

// Buddy list keys (LIST, LIST_15)
const (
	KeyListBuddy    Key = 7
	KeyListCookie   Key = 59
	KeyListGroup    Key = 65
	KeyListBuddies  Key = 87 // legacy buddy list fragment
	KeyListIgnore   Key = 88 // legacy ignore list fragment
	KeyListPresence Key = 185
	KeyListProtocol Key = 241
	KeyListMarker   Key = 302
)

// Authentication keys (AUTH, AUTHRESP, WEBLOGIN)
const (
	KeyAuthName         Key = 0
	KeyAuthScreenName   Key = 1
	KeyAuthCookie       Key = 6
	KeyAuthResult6      Key = 6
	KeyAuthMethod       Key = 13
	KeyAuthURL          Key = 20
	KeyAuthError        Key = 66
	KeyAuthSeed         Key = 94
	KeyAuthResult96     Key = 96
	KeyAuthVersion      Key = 135
	KeyAuthIconChecksum Key = 192
)

// Instant message keys (MESSAGE, NOTIFY, SYSMESSAGE)
const (
	KeyMsgMe        Key = 1
	KeyMsgFrom      Key = 4
	KeyMsgTo        Key = 5
	KeyMsgState     Key = 13
	KeyMsgText      Key = 14
	KeyMsgTime      Key = 15
	KeyMsgNotify    Key = 49
	KeyMsgIMV       Key = 63
	KeyMsgIMVFlag   Key = 64
	KeyMsgUTF8      Key = 97
	KeyMsgIcon      Key = 206
	KeyMsgProtocol  Key = 241
	KeyMsgTrailer   Key = 1002
	KeyMsgAudibleID Key = 230
	KeyMsgAudible   Key = 231
)

// Contact management keys (ADDBUDDY, REMBUDDY, NEWCONTACT, IGNORECONTACT, ...)
const (
	KeyContactMe       Key = 0
	KeyContactID       Key = 1
	KeyContactWho      Key = 3
	KeyContactBuddy    Key = 7
	KeyContactFlag     Key = 13
	KeyContactText     Key = 14
	KeyContactTime     Key = 15
	KeyContactGroup    Key = 65
	KeyContactError    Key = 66
	KeyContactNewGroup Key = 67
)

// Mail notification keys (NEWMAIL)
const (
	KeyMailCount    Key = 9
	KeyMailSubject  Key = 18
	KeyMailFromAddr Key = 42
	KeyMailFromName Key = 43
)

// Buddy icon keys (PICTURE, PICTURE_CHECKSUM, PICTURE_UPLOAD, AVATAR_UPDATE)
const (
	KeyPicMe       Key = 1
	KeyPicFrom     Key = 4
	KeyPicTo       Key = 5
	KeyPicType     Key = 13
	KeyPicURL      Key = 20
	KeyPicChecksum Key = 192
	KeyPicAvatar   Key = 206
	KeyPicShared   Key = 212
	KeyPicShow     Key = 213
)

// Conference keys (CONF*)
const (
	KeyConfMe       Key = 1
	KeyConfFrom     Key = 3
	KeyConfFlag     Key = 13
	KeyConfText     Key = 14
	KeyConfInviter  Key = 50
	KeyConfBuddy    Key = 51
	KeyConfInvitee  Key = 52
	KeyConfMember   Key = 53
	KeyConfDecliner Key = 54
	KeyConfLeaver   Key = 56
	KeyConfRoom     Key = 57
	KeyConfInvite   Key = 58
	KeyConfUTF8     Key = 97
)

// Chat room keys (CHAT*, COMMENT)
const (
	KeyChatMe       Key = 1
	KeyChatCookie   Key = 6
	KeyChatCategory Key = 62
	KeyChatRoom     Key = 104
	KeyChatTopic    Key = 105
	KeyChatLeaving  Key = 108
	KeyChatMember   Key = 109
	KeyChatFlag     Key = 112
	KeyChatText     Key = 117
	KeyChatBuddy    Key = 118
	KeyChatInviter  Key = 119
	KeyChatMsgType  Key = 124
	KeyChatID       Key = 129
	KeyChatUTF8     Key = 97
	KeyChatLocale   Key = 98
	KeyChatVersion  Key = 135
)

// IMVironment keys (P2PFILEXFER with 49=IMVIRONMENT)
const (
	KeyIMVMe      Key = 1
	KeyIMVFrom    Key = 4
	KeyIMVTo      Key = 5
	KeyIMVCommand Key = 13
	KeyIMVText    Key = 14
	KeyIMVService Key = 49
	KeyIMVName    Key = 63
	KeyIMVFlag    Key = 64
	KeyIMVTrailer Key = 1002
)

// Presence override keys (PRESENCE_PERM, PRESENCE_SESSION)
const (
	KeyPresenceMe    Key = 1
	KeyPresenceBuddy Key = 7
	KeyPresenceFlag  Key = 13
	KeyPresenceValue Key = 31
)

// File transfer keys (FILETRANSFER, P2PFILEXFER)
const (
	KeyFileFrom    Key = 4
	KeyFileTo      Key = 5
	KeyFileText    Key = 14
	KeyFileURL     Key = 20
	KeyFileName    Key = 27
	KeyFileSize    Key = 28
	KeyFileExpires Key = 38
	KeyFileService Key = 49
)

// Peer to peer announce keys (PEERTOPEER)
const (
	KeyP2PMe   Key = 1
	KeyP2PFrom Key = 4
	KeyP2PTo   Key = 5
	KeyP2PIP   Key = 12
)
