package session

import (
	"bytes"
	"encoding/json"

	"futurebot/internal/model/enum"
	"futurebot/pkg/exception"

	"github.com/bytedance/sonic"
)

// Route is the handler an inbound message is dispatched to.
type Route uint8

const (
	RouteUnrecognized Route = iota
	RouteGenericAck
	RouteSubscriptionAck
	RouteResponseAck
	RouteOrderIDAck
	RouteUserData
	RouteOrderUpdate
	RouteCharts
	RouteQuotes
	RouteDOMs
)

func (r Route) String() string {
	switch r {
	case RouteGenericAck:
		return "generic_ack"
	case RouteSubscriptionAck:
		return "subscription_ack"
	case RouteResponseAck:
		return "response_ack"
	case RouteOrderIDAck:
		return "order_id_ack"
	case RouteUserData:
		return "user_data"
	case RouteOrderUpdate:
		return "order_update"
	case RouteCharts:
		return "charts"
	case RouteQuotes:
		return "quotes"
	case RouteDOMs:
		return "doms"
	default:
		return "unrecognized"
	}
}

// envelope is a decoded message with its top level values left raw.
type envelope map[string]json.RawMessage

func decodeEnvelope(raw []byte) (envelope, error) {
	var env envelope
	if err := sonic.Unmarshal(raw, &env); err != nil {
		return nil, exception.ErrMalformedMessage
	}
	if env == nil {
		return nil, exception.ErrMalformedMessage
	}
	return env, nil
}

func (e envelope) has(key string) bool {
	_, ok := e[key]
	return ok
}

func (e envelope) isGenericAck() bool {
	return len(e) == 2 && e.has("i") && e.has("s")
}

// event returns the value of "e" when it is a string.
func (e envelope) event() string {
	raw, ok := e["e"]
	if !ok {
		return ""
	}
	var s string
	if err := sonic.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}

// dataHas reports whether "d" is an object holding key.
func (e envelope) dataHas(key string) bool {
	d, err := decodeEnvelope(e["d"])
	if err != nil {
		return false
	}
	return d.has(key)
}

// dataFirstKey returns the first key of the "d" object in wire order.
func (e envelope) dataFirstKey() string {
	raw, ok := e["d"]
	if !ok {
		return ""
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	if tok, err := dec.Token(); err != nil || tok != json.Delim('{') {
		return ""
	}
	tok, err := dec.Token()
	if err != nil {
		return ""
	}
	key, _ := tok.(string)
	return key
}

// accountContentRoute routes by the contents of "d".
func (e envelope) accountContentRoute() Route {
	switch {
	case e.dataHas("orderId"):
		return RouteOrderIDAck
	case e.dataHas("accounts"), e.dataHas("positions"):
		return RouteUserData
	default:
		return RouteUnrecognized
	}
}

// marketEventRoute routes md and chart events by the first key of "d".
func (e envelope) marketEventRoute() Route {
	switch e.event() {
	case "md", "chart":
	default:
		return RouteUnrecognized
	}
	switch e.dataFirstKey() {
	case "charts":
		return RouteCharts
	case "quotes":
		return RouteQuotes
	case "doms":
		return RouteDOMs
	default:
		return RouteUnrecognized
	}
}

// classify picks the route of one decoded message. Checks run in precedence
// order.
func classify(kind enum.SessionKind, e envelope) Route {
	if e.isGenericAck() {
		return RouteGenericAck
	}
	if e.has("s") {
		if kind == enum.SessionMarketData {
			return RouteSubscriptionAck
		}
		if r := e.accountContentRoute(); r != RouteUnrecognized {
			return r
		}
		return RouteResponseAck
	}
	if kind == enum.SessionAccount {
		if (e.has("e") && e.dataHas("entity")) || len(e) > 2 {
			return RouteOrderUpdate
		}
		if len(e) == 2 {
			if r := e.accountContentRoute(); r != RouteUnrecognized {
				return r
			}
		}
	}
	return e.marketEventRoute()
}

// ClassifyMessage decodes raw and classifies it.
func ClassifyMessage(kind enum.SessionKind, raw []byte) (Route, error) {
	env, err := decodeEnvelope(raw)
	if err != nil {
		return RouteUnrecognized, err
	}
	return classify(kind, env), nil
}
