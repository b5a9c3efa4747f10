package codec

import (
	"strconv"
	"strings"
	"time"

	"futurebot/internal/model/enum"

	"github.com/bytedance/sonic"
)

// Request endpoints.
const (
	EndpointAuthorize          = "authorize"
	EndpointSyncRequest        = "user/syncrequest"
	EndpointSubscribeDOM       = "md/subscribeDOM"
	EndpointSubscribeQuote     = "md/subscribeQuote"
	EndpointSubscribeHistogram = "md/subscribeHistogram"
	EndpointGetChart           = "md/getChart"
	EndpointUnsubscribeDOM     = "md/unsubscribeDOM"
	EndpointUnsubscribeQuote   = "md/unsubscribeQuote"
	EndpointUnsubscribeHist    = "md/unsubscribeHistogram"
	EndpointCancelChart        = "md/cancelChart"
	EndpointPlaceOrder         = "order/placeorder"
)

// Reserved request ids.
const (
	AuthorizeRequestID = 1
	SyncRequestID      = 2

	// SubscriptionIDOffset maps a subscription index to its request id.
	SubscriptionIDOffset = 2
)

// Protocol frames.
const (
	HeartbeatFrame = "[]"
	CloseFrame     = "c"
)

// EncodeRequest builds a request frame "<endpoint>\n<id>\n\n<body>".
func EncodeRequest(endpoint string, id int64, body string) string {
	var b strings.Builder
	b.Grow(len(endpoint) + len(body) + 24)
	b.WriteString(endpoint)
	b.WriteByte('\n')
	b.WriteString(strconv.FormatInt(id, 10))
	b.WriteString("\n\n")
	b.WriteString(body)
	return b.String()
}

// AuthorizeMessage returns the authorization request for a token.
func AuthorizeMessage(token string) string {
	return EncodeRequest(EndpointAuthorize, AuthorizeRequestID, token)
}

type syncBody struct {
	Users []int64 `json:"users"`
}

// SyncMessage returns the user sync request for a user id.
func SyncMessage(userID int64) (string, error) {
	body, err := sonic.ConfigFastest.Marshal(syncBody{Users: []int64{userID}})
	if err != nil {
		return "", err
	}
	return EncodeRequest(EndpointSyncRequest, SyncRequestID, string(body)), nil
}

type symbolBody struct {
	Symbol string `json:"symbol"`
}

type chartDescription struct {
	UnderlyingType  string `json:"underlyingType"`
	ElementSize     int    `json:"elementSize"`
	ElementSizeUnit string `json:"elementSizeUnit"`
	WithHistogram   bool   `json:"withHistogram"`
}

type timeRange struct {
	AsFarAsTimestamp string `json:"asFarAsTimestamp"`
}

type chartBody struct {
	Symbol           string           `json:"symbol"`
	ChartDescription chartDescription `json:"chartDescription"`
	TimeRange        timeRange        `json:"timeRange"`
}

type cancelChartBody struct {
	SubscriptionID int64 `json:"subscriptionId"`
}

// SubscribeEndpoint returns the endpoint that opens a stream of kind.
func SubscribeEndpoint(kind enum.DataKind) string {
	switch kind {
	case enum.DataKindDOM:
		return EndpointSubscribeDOM
	case enum.DataKindQuote:
		return EndpointSubscribeQuote
	case enum.DataKindHistogram:
		return EndpointSubscribeHistogram
	case enum.DataKindChart:
		return EndpointGetChart
	default:
		return ""
	}
}

// UnsubscribeEndpoint returns the endpoint that closes a stream of kind.
func UnsubscribeEndpoint(kind enum.DataKind) string {
	switch kind {
	case enum.DataKindDOM:
		return EndpointUnsubscribeDOM
	case enum.DataKindQuote:
		return EndpointUnsubscribeQuote
	case enum.DataKindHistogram:
		return EndpointUnsubscribeHist
	case enum.DataKindChart:
		return EndpointCancelChart
	default:
		return ""
	}
}

// SubscribeMessage builds the subscription request of kind for symbol.
// Chart requests ask for one minute of tick history before now.
func SubscribeMessage(kind enum.DataKind, symbol string, id int64, now time.Time) (string, error) {
	var (
		body []byte
		err  error
	)
	if kind == enum.DataKindChart {
		body, err = sonic.ConfigFastest.Marshal(chartBody{
			Symbol: symbol,
			ChartDescription: chartDescription{
				UnderlyingType:  "Tick",
				ElementSize:     1,
				ElementSizeUnit: "UnderlyingUnits",
				WithHistogram:   false,
			},
			TimeRange: timeRange{
				AsFarAsTimestamp: now.Add(-time.Minute).UTC().Format(time.RFC3339),
			},
		})
	} else {
		body, err = sonic.ConfigFastest.Marshal(symbolBody{Symbol: symbol})
	}
	if err != nil {
		return "", err
	}
	return EncodeRequest(SubscribeEndpoint(kind), id, string(body)), nil
}

// UnsubscribeMessage builds the request that ends a subscription. Charts are
// cancelled by their historical id.
func UnsubscribeMessage(kind enum.DataKind, symbol string, historicalID, id int64) (string, error) {
	var (
		body []byte
		err  error
	)
	if kind == enum.DataKindChart {
		body, err = sonic.ConfigFastest.Marshal(cancelChartBody{SubscriptionID: historicalID})
	} else {
		body, err = sonic.ConfigFastest.Marshal(symbolBody{Symbol: symbol})
	}
	if err != nil {
		return "", err
	}
	return EncodeRequest(UnsubscribeEndpoint(kind), id, string(body)), nil
}

// FrameKind is the class of an inbound frame, taken from its first byte.
type FrameKind uint8

const (
	FrameUnknown FrameKind = iota
	FrameOpen
	FrameHeartbeat
	FrameData
	FrameClose
)

func (k FrameKind) String() string {
	switch k {
	case FrameOpen:
		return "open"
	case FrameHeartbeat:
		return "heartbeat"
	case FrameData:
		return "data"
	case FrameClose:
		return "close"
	default:
		return "unknown"
	}
}

// ClassifyFrame returns the frame kind and, for data frames, the JSON array
// that follows the prefix.
func ClassifyFrame(frame []byte) (FrameKind, []byte) {
	if len(frame) == 0 {
		return FrameUnknown, nil
	}
	switch frame[0] {
	case 'o':
		return FrameOpen, nil
	case 'h':
		return FrameHeartbeat, nil
	case 'a':
		return FrameData, frame[1:]
	case 'c':
		return FrameClose, nil
	default:
		return FrameUnknown, nil
	}
}
