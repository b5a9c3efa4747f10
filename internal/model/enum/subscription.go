package enum

// DataKind is the market data stream a subscription asks for.
type DataKind uint8

const (
	_dataKind_beg DataKind = iota
	DataKindDOM
	DataKindQuote
	DataKindHistogram
	DataKindChart
	_dataKind_end
)

func (k DataKind) IsAvailable() bool {
	return k > _dataKind_beg && k < _dataKind_end
}

func (k DataKind) String() string {
	switch k {
	case DataKindDOM:
		return "DOM"
	case DataKindQuote:
		return "Quote"
	case DataKindHistogram:
		return "Histogram"
	case DataKindChart:
		return "Chart"
	default:
		return "Unknown"
	}
}

// ParseDataKind maps a config name to a DataKind.
func ParseDataKind(s string) DataKind {
	switch s {
	case "dom", "DOM":
		return DataKindDOM
	case "quote", "Quote":
		return DataKindQuote
	case "histogram", "Histogram":
		return DataKindHistogram
	case "chart", "Chart":
		return DataKindChart
	default:
		return _dataKind_beg
	}
}

// RequestStatus is the lifecycle of a subscription request.
type RequestStatus uint8

const (
	RequestUnsent RequestStatus = iota
	RequestSent
	RequestCanceled
)

func (s RequestStatus) String() string {
	switch s {
	case RequestSent:
		return "Sent"
	case RequestCanceled:
		return "Canceled"
	default:
		return "Unsent"
	}
}
