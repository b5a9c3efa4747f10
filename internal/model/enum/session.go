package enum

// SessionKind identifies one of the two websocket sessions.
type SessionKind uint8

const (
	SessionMarketData SessionKind = iota + 1
	SessionAccount
)

// String returns the category tag used in log lines.
func (k SessionKind) String() string {
	switch k {
	case SessionMarketData:
		return "MarketData"
	case SessionAccount:
		return "Trading"
	default:
		return "Any"
	}
}

// SessionPhase is the protocol phase derived from a session's flags.
type SessionPhase uint8

const (
	PhaseIdle SessionPhase = iota
	PhaseOpened
	PhaseAuthorizing
	PhaseAuthorized
	PhaseClosing
	PhaseClosed
	PhaseClosedByPeer
)

func (p SessionPhase) String() string {
	switch p {
	case PhaseOpened:
		return "Opened"
	case PhaseAuthorizing:
		return "Authorizing"
	case PhaseAuthorized:
		return "Authorized"
	case PhaseClosing:
		return "Closing"
	case PhaseClosed:
		return "Closed"
	case PhaseClosedByPeer:
		return "ClosedByPeer"
	default:
		return "Idle"
	}
}
