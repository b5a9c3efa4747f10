package model

// ContractDescriptor describes a tradable futures contract.
type ContractDescriptor struct {
	Symbol       string  `json:"name"`
	ID           int64   `json:"id"`
	HistoricalID int64   `json:"-"`
	TickSize     float64 `json:"-"`
	PointValue   float64 `json:"-"`
}

// ProductCode strips the month and year code from a contract symbol.
// ESM2 becomes ES.
func ProductCode(symbol string) string {
	if len(symbol) <= 2 {
		return symbol
	}
	return symbol[:len(symbol)-2]
}
