package client

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/aeolun/ymsg/pkg/protocol"
)

// WhiteboardState tracks the doodle handshake with one peer.
type WhiteboardState int

const (
	// WhiteboardRequesting: we asked the peer and wait for ready/confirm
	WhiteboardRequesting WhiteboardState = iota
	// WhiteboardRequested: the peer asked us
	WhiteboardRequested
	WhiteboardEstablished
)

func (s WhiteboardState) String() string {
	switch s {
	case WhiteboardRequesting:
		return "requesting"
	case WhiteboardRequested:
		return "requested"
	case WhiteboardEstablished:
		return "established"
	default:
		return "unknown"
	}
}

// Doodle commands (key 13)
const (
	doodleReady   = 0
	doodleRequest = 1
	doodleClear   = 2
	doodleDraw    = 3
	doodleExtra   = 4
	doodleConfirm = 5
)

const (
	imvDoodle   = "doodle;11"
	imvShutdown = ";0"
	imvService  = "IMVIRONMENT"

	doodleExtraNone = "0"
)

// Canvas size and default brush of the doodle IMVironment
const (
	DoodleWidth      = 368
	DoodleHeight     = 256
	DoodleBrushSmall = 2
	DoodleColorRed   = 0xcc0000
)

// Whiteboard is a doodle session with one peer.
type Whiteboard struct {
	Who   string
	State WhiteboardState

	BrushSize  int
	BrushColor int
}

// Point is a position on the doodle canvas.
type Point struct {
	X, Y int
}

// Stroke is one drawn line. Points are absolute canvas positions.
type Stroke struct {
	Color  int
	Size   int
	Points []Point
}

// parseStroke decodes the comma separated draw list: colour, size, start
// x and y, then pairs of deltas. A trailing odd delta is ignored.
func parseStroke(values []int) (Stroke, bool) {
	if len(values) < 4 {
		return Stroke{}, false
	}
	st := Stroke{Color: values[0], Size: values[1]}
	x, y := values[2], values[3]
	st.Points = append(st.Points, Point{x, y})
	for i := 4; i+1 < len(values); i += 2 {
		x += values[i]
		y += values[i+1]
		st.Points = append(st.Points, Point{x, y})
	}
	return st, true
}

// drawString encodes points as colour, size, start, then deltas.
func drawString(color, size int, points []Point) string {
	var b strings.Builder
	fmt.Fprintf(&b, "\"%d,%d", color, size)
	for i, pt := range points {
		if i == 0 {
			fmt.Fprintf(&b, ",%d,%d", pt.X, pt.Y)
			continue
		}
		prev := points[i-1]
		fmt.Fprintf(&b, ",%d,%d", pt.X-prev.X, pt.Y-prev.Y)
	}
	b.WriteByte('"')
	return b.String()
}

func (s *Session) newWhiteboard(who string, state WhiteboardState) *Whiteboard {
	wb := &Whiteboard{Who: who, State: state, BrushSize: DoodleBrushSmall, BrushColor: DoodleColorRed}
	s.whiteboards[who] = wb
	return wb
}

// Whiteboard returns the doodle session with who, if any.
func (s *Session) Whiteboard(who string) (*Whiteboard, bool) {
	wb, ok := s.whiteboards[who]
	return wb, ok
}

// handleImvironment handles P2PFILEXFER packets that carry IMVironment
// commands rather than file transfers.
func (s *Session) handleImvironment(p *protocol.Packet) {
	var (
		from, msg, command, service, imv string
		haveIMV                          bool
	)
	for _, pair := range p.Pairs {
		switch pair.Key {
		case protocol.KeyIMVFrom:
			from = pair.Value
		case protocol.KeyIMVService:
			service = pair.Value
		case protocol.KeyIMVText:
			msg = pair.Value
		case protocol.KeyIMVCommand:
			command = pair.Value
		case protocol.KeyIMVName:
			imv, haveIMV = pair.Value, true
		}
	}

	if service != imvService || !haveIMV {
		return
	}
	if from != "" {
		s.imvironments[from] = imv
	}

	switch imv {
	case imvDoodle:
		if command == "" {
			return
		}
		s.doodleCommand(from, protocol.Atoi(command), msg)
	case imvShutdown:
		s.doodleShutdown(from)
	}
}

func (s *Session) doodleCommand(from string, command int, msg string) {
	switch command {
	case doodleRequest:
		s.logf("doodle: got request (%s)", from)
		if _, ok := s.whiteboards[from]; !ok {
			s.newWhiteboard(from, WhiteboardRequested)
			s.sendDoodle(from, "Request")
		}

	case doodleReady:
		s.logf("doodle: got ready (%s)", from)
		wb, ok := s.whiteboards[from]
		if !ok {
			return
		}
		if wb.State == WhiteboardRequesting {
			s.host.WhiteboardStarted(from)
			wb.State = WhiteboardEstablished
			s.sendDoodle(from, "Confirm")
		}
		if wb.State == WhiteboardEstablished {
			s.host.WhiteboardCleared(from)
		}
		if wb.State == WhiteboardRequested {
			s.sendDoodle(from, "Request")
		}

	case doodleClear:
		if wb, ok := s.whiteboards[from]; ok && wb.State == WhiteboardEstablished {
			s.host.WhiteboardCleared(from)
		}

	case doodleDraw:
		if _, ok := s.whiteboards[from]; !ok {
			return
		}
		if len(msg) < 2 || msg[0] != '"' || msg[len(msg)-1] != '"' {
			return
		}
		var values []int
		for _, tok := range strings.Split(msg[1:len(msg)-1], ",") {
			values = append(values, protocol.Atoi(tok))
		}
		if st, ok := parseStroke(values); ok {
			s.host.WhiteboardDraw(from, st)
		}

	case doodleExtra:
		// extras are always declined
		s.sendDoodleCommand(from, doodleExtraNone, doodleExtra, "", "1")

	case doodleConfirm:
		wb, ok := s.whiteboards[from]
		if !ok {
			return
		}
		switch wb.State {
		case WhiteboardRequesting:
			wb.State = WhiteboardEstablished
			s.host.WhiteboardStarted(from)
			s.sendDoodle(from, "Confirm")
		case WhiteboardRequested:
			wb.State = WhiteboardEstablished
			s.host.WhiteboardStarted(from)
		}
	}
}

func (s *Session) doodleShutdown(from string) {
	if _, ok := s.whiteboards[from]; !ok {
		return
	}
	delete(s.whiteboards, from)
	s.host.WhiteboardClosed(from)
}

// sendDoodleCommand writes one IMVironment packet. An empty imv means the
// doodle IMVironment.
func (s *Session) sendDoodleCommand(to, msg string, command int, imv, flag string) {
	if imv == "" {
		imv = imvDoodle
	}
	pkt := protocol.NewPacket(protocol.ServiceP2PFileXfer, protocol.StatusAvailable, 0).
		Add(protocol.KeyIMVService, imvService).
		Add(protocol.KeyIMVMe, s.opts.Username).
		Add(protocol.KeyIMVText, msg).
		Add(protocol.KeyIMVCommand, strconv.Itoa(command)).
		Add(protocol.KeyIMVTo, to).
		Add(protocol.KeyIMVName, imv).
		Add(protocol.KeyIMVFlag, flag).
		Add(protocol.KeyIMVTrailer, "1")
	if err := s.send(pkt); err != nil {
		s.logf("doodle: %v", err)
	}
}

// sendDoodle sends one of the fixed form commands.
func (s *Session) sendDoodle(to, kind string) {
	s.logf("doodle: sent %s (%s)", kind, to)
	switch kind {
	case "Request":
		s.sendDoodleCommand(to, "1", doodleRequest, "", "1")
	case "Ready":
		s.sendDoodleCommand(to, "", doodleReady, "", "0")
	case "Clear":
		s.sendDoodleCommand(to, " ", doodleClear, "", "1")
	case "Confirm":
		s.sendDoodleCommand(to, "1", doodleConfirm, "", "1")
	case "Shutdown":
		s.sendDoodleCommand(to, "", doodleReady, imvShutdown, "0")
	}
}

// StartWhiteboard asks who for a doodle session.
func (s *Session) StartWhiteboard(who string) error {
	if who == "" {
		return ErrEmptyName
	}
	if !s.loggedIn {
		return ErrNotLoggedIn
	}
	if _, ok := s.whiteboards[who]; !ok {
		s.newWhiteboard(who, WhiteboardRequesting)
	}
	s.sendDoodle(who, "Request")
	s.sendDoodle(who, "Ready")
	return nil
}

// DrawWhiteboard sends a stroke using the session's brush.
func (s *Session) DrawWhiteboard(who string, points []Point) error {
	wb, ok := s.whiteboards[who]
	if !ok {
		return ErrNoWhiteboard
	}
	if len(points) == 0 {
		return nil
	}
	s.logf("doodle: sent Draw (%s)", who)
	s.sendDoodleCommand(who, drawString(wb.BrushColor, wb.BrushSize, points), doodleDraw, "", "1")
	return nil
}

// SetBrush changes the brush used by later strokes.
func (s *Session) SetBrush(who string, size, color int) error {
	wb, ok := s.whiteboards[who]
	if !ok {
		return ErrNoWhiteboard
	}
	wb.BrushSize, wb.BrushColor = size, color
	return nil
}

// ClearWhiteboard clears the canvas on both ends.
func (s *Session) ClearWhiteboard(who string) error {
	if _, ok := s.whiteboards[who]; !ok {
		return ErrNoWhiteboard
	}
	s.sendDoodle(who, "Clear")
	return nil
}

// EndWhiteboard closes the doodle session and tells the peer.
func (s *Session) EndWhiteboard(who string) error {
	if _, ok := s.whiteboards[who]; !ok {
		return ErrNoWhiteboard
	}
	delete(s.whiteboards, who)
	s.sendDoodle(who, "Shutdown")
	return nil
}
