package model

import (
	"sort"
	"time"

	"futurebot/internal/model/enum"
)

// QuoteMessage is a quote snapshot event.
type QuoteMessage struct {
	Event string    `json:"e"`
	Data  QuoteData `json:"d"`
}

type QuoteData struct {
	Quotes []Quote `json:"quotes"`
}

// Quote is the latest quote of one contract.
type Quote struct {
	ID         int64                 `json:"id"`
	ContractID int64                 `json:"contractId"`
	Timestamp  string                `json:"timestamp"`
	Entries    map[string]QuoteEntry `json:"entries"`
}

type QuoteEntry struct {
	Price float64 `json:"price"`
	Size  float64 `json:"size"`
}

// DOMMessage is a depth-of-market snapshot event.
type DOMMessage struct {
	Event string  `json:"e"`
	Data  DOMData `json:"d"`
}

type DOMData struct {
	DOMs []DOM `json:"doms"`
}

// DOM is the aggregated book of one contract.
type DOM struct {
	ContractID int64      `json:"contractId"`
	Timestamp  string     `json:"timestamp"`
	Bids       []DOMLevel `json:"bids"`
	Offers     []DOMLevel `json:"offers"`
}

type DOMLevel struct {
	Price float64 `json:"price"`
	Size  int64   `json:"size"`
}

// ContractID returns the contract of the first snapshot in the message.
func (m DOMMessage) ContractID() (int64, bool) {
	if len(m.Data.DOMs) == 0 {
		return 0, false
	}
	return m.Data.DOMs[0].ContractID, true
}

// ChartMessage is a tick chart batch event.
type ChartMessage struct {
	Event string    `json:"e"`
	Data  ChartData `json:"d"`
}

type ChartData struct {
	Charts []Chart `json:"charts"`
}

// Chart is a packet of ticks relative to a base price and timestamp.
type Chart struct {
	HistoricalID  int64   `json:"id"`
	BasePrice     int64   `json:"bp"`
	BaseTimestamp int64   `json:"bt"`
	TickSize      float64 `json:"ts"`
	TradeDate     int64   `json:"td"`
	Source        string  `json:"s"`
	EndOfHistory  bool    `json:"eoh"`
	Ticks         []Tick  `json:"tks"`
}

// Tick carries prices in tick units relative to the chart base price.
type Tick struct {
	ID        int64 `json:"id"`
	Price     int64 `json:"p"`
	Volume    int64 `json:"s"`
	Timestamp int64 `json:"t"`
	Bid       int64 `json:"b"`
	BidSize   int64 `json:"bs"`
	Ask       int64 `json:"a"`
	AskSize   int64 `json:"as"`
}

// TradeTick is a single executed trade with its inferred side.
type TradeTick struct {
	HistoricalID int64       `json:"historicalId"`
	Side         enum.Action `json:"side"`
	Qty          int64       `json:"qty"`
	Price        float64     `json:"price"`
	Bid          float64     `json:"bid"`
	Ask          float64     `json:"ask"`
	Timestamp    int64       `json:"timestamp"`
	ReceiptDelay int64       `json:"receiptDelay"`
}

// Time returns the trade time.
func (t TradeTick) Time() time.Time {
	return time.UnixMilli(t.Timestamp)
}

// SyntheticQuote is a bid/ask derived from the trade tape.
type SyntheticQuote struct {
	Bid float64 `json:"bid"`
	Ask float64 `json:"ask"`
}

// InferSide classifies a trade against the midpoint of the book.
func InferSide(price, bid, ask float64) enum.Action {
	mid := 0.5 * (bid + ask)
	switch {
	case price > mid:
		return enum.ActionBuy
	case price < mid:
		return enum.ActionSell
	default:
		return enum.ActionUnknown
	}
}

// TradeTicks expands the chart into absolute trade ticks.
func (c Chart) TradeTicks(now time.Time) []TradeTick {
	base := float64(c.BasePrice) * c.TickSize
	nowMs := now.UnixMilli()
	out := make([]TradeTick, 0, len(c.Ticks))
	for _, tk := range c.Ticks {
		price := base + c.TickSize*float64(tk.Price)
		bid := base + c.TickSize*float64(tk.Bid)
		ask := base + c.TickSize*float64(tk.Ask)
		ts := c.BaseTimestamp + tk.Timestamp
		out = append(out, TradeTick{
			HistoricalID: c.HistoricalID,
			Side:         InferSide(price, bid, ask),
			Qty:          tk.Volume,
			Price:        price,
			Bid:          bid,
			Ask:          ask,
			Timestamp:    ts,
			ReceiptDelay: nowMs - ts,
		})
	}
	return out
}

// TradeTicks expands every chart of the batch and sorts by timestamp.
func (m ChartMessage) TradeTicks(now time.Time) []TradeTick {
	var out []TradeTick
	for _, c := range m.Data.Charts {
		out = append(out, c.TradeTicks(now)...)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp < out[j].Timestamp
	})
	return out
}
