package protocol

import "strconv"

// Status is the header status field. For presence services it carries
// one of the presence codes below; elsewhere it is a generic result code.
type Status int32

const (
	StatusAvailable   Status = 0
	StatusBRB         Status = 1
	StatusBusy        Status = 2
	StatusNotAtHome   Status = 3
	StatusNotAtDesk   Status = 4
	StatusNotInOffice Status = 5
	StatusOnPhone     Status = 6
	StatusOnVacation  Status = 7
	StatusOutToLunch  Status = 8
	StatusSteppedOut  Status = 9
	StatusInvisible   Status = 12
	StatusCustom      Status = 99
	StatusIdle        Status = 999
	StatusWebLogin    Status = 0x5a55aa55
	StatusOffline     Status = 0x5a55aa56 // Don't ask
	StatusTyping      Status = 0x16

	// StatusDisconnected is what LOGOFF carries when the account
	// signed on from somewhere else.
	StatusDisconnected Status = -1
)

// IsAway reports whether s is one of the canned away states.
func (s Status) IsAway() bool {
	return s >= StatusBRB && s <= StatusSteppedOut
}

// Description returns the human readable label for a presence code.
func (s Status) Description() string {
	switch s {
	case StatusBRB:
		return "Be Right Back"
	case StatusBusy:
		return "Busy"
	case StatusNotAtHome:
		return "Not at Home"
	case StatusNotAtDesk:
		return "Not at Desk"
	case StatusNotInOffice:
		return "Not in Office"
	case StatusOnPhone:
		return "On the Phone"
	case StatusOnVacation:
		return "On Vacation"
	case StatusOutToLunch:
		return "Out to Lunch"
	case StatusSteppedOut:
		return "Stepped Out"
	case StatusInvisible:
		return "Invisible"
	case StatusIdle:
		return "Idle"
	case StatusOffline:
		return "Offline"
	default:
		return "Available"
	}
}

// String formats the status as its decimal wire value.
func (s Status) String() string {
	return strconv.Itoa(int(s))
}
