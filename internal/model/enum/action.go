package enum

import "strconv"

// Action is the side of an order or an inferred trade side.
type Action uint8

const (
	ActionUnknown Action = iota
	ActionBuy
	ActionSell
)

func (a Action) String() string {
	switch a {
	case ActionBuy:
		return "Buy"
	case ActionSell:
		return "Sell"
	default:
		return "Unknown"
	}
}

// IsKnown reports whether a is Buy or Sell.
func (a Action) IsKnown() bool {
	return a == ActionBuy || a == ActionSell
}

// Opposite returns the other side. Unknown stays Unknown.
func (a Action) Opposite() Action {
	switch a {
	case ActionBuy:
		return ActionSell
	case ActionSell:
		return ActionBuy
	default:
		return ActionUnknown
	}
}

// Sign returns +1 for Buy, -1 for Sell and 0 otherwise.
func (a Action) Sign() int64 {
	switch a {
	case ActionBuy:
		return 1
	case ActionSell:
		return -1
	default:
		return 0
	}
}

// ActionFromNet returns the side that holds a signed net quantity.
func ActionFromNet(net int64) Action {
	switch {
	case net > 0:
		return ActionBuy
	case net < 0:
		return ActionSell
	default:
		return ActionUnknown
	}
}

func (a Action) MarshalJSON() ([]byte, error) {
	return strconv.AppendQuote(nil, a.String()), nil
}

func (a *Action) UnmarshalJSON(b []byte) error {
	s, err := strconv.Unquote(string(b))
	if err != nil {
		return err
	}
	switch s {
	case "Buy":
		*a = ActionBuy
	case "Sell":
		*a = ActionSell
	default:
		*a = ActionUnknown
	}
	return nil
}
