package session

import (
	"time"

	"futurebot/internal/model"
	"futurebot/internal/model/enum"
	"futurebot/internal/obs"
)

// State is the protocol state shared by both sessions.
type State struct {
	ConnEstablished    bool
	Authorized         bool
	Terminated         bool
	CloseRequested     bool
	ReceivedCloseFrame bool
	LastHeartbeat      time.Time

	// Unsent is drained in order. Sent is kept for audit only.
	Unsent []string
	Sent   []string

	// Responses holds generic {i, s} acks.
	Responses []model.ResponseAck

	nextID int64
}

func newState(now time.Time, firstID int64) State {
	return State{LastHeartbeat: now, nextID: firstID}
}

// NextRequestID returns a fresh request id for this session.
func (s *State) NextRequestID() int64 {
	id := s.nextID
	s.nextID++
	return id
}

// Phase derives the protocol phase from the flags.
func (s *State) Phase() enum.SessionPhase {
	switch {
	case s.ReceivedCloseFrame:
		return enum.PhaseClosedByPeer
	case s.CloseRequested:
		return enum.PhaseClosing
	case s.Terminated:
		return enum.PhaseClosed
	case s.Authorized:
		return enum.PhaseAuthorized
	case s.ConnEstablished && len(s.Sent) > 0:
		return enum.PhaseAuthorizing
	case s.ConnEstablished:
		return enum.PhaseOpened
	default:
		return enum.PhaseIdle
	}
}

// RequestClose asks the drainer to run the close handshake and marks the
// session terminated.
func (s *State) RequestClose() {
	s.CloseRequested = true
	s.Terminated = true
}

// heartbeatDue reports whether an idle heartbeat should be sent at now.
func (s *State) heartbeatDue(now time.Time, interval time.Duration) bool {
	return now.Sub(s.LastHeartbeat) >= interval && !s.Terminated && !s.CloseRequested
}

// Recorder receives audit log lines.
type Recorder interface {
	Record(category, item string)
}

// Writer sends frames on a connection.
type Writer interface {
	WriteText(msg string) error
	WriteClose() error
}

// Reader receives frames from a connection.
type Reader interface {
	ReadFrame() ([]byte, error)
}

// Deps are the collaborators of dispatchers and drainers. Every field is
// optional.
type Deps struct {
	Recorder Recorder
	Metrics  *obs.Metrics
	// OnPeerClose runs when the peer closes the connection.
	OnPeerClose func(kind enum.SessionKind)
	Now         func() time.Time
}

func (d Deps) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

func (d Deps) record(kind enum.SessionKind, item string) {
	if d.Recorder != nil {
		d.Recorder.Record(kind.String(), item)
	}
}
