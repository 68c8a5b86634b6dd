package market

import "strings"

// Side is the trade direction produced by strategies.
type Side string

const (
	Buy  Side = "BUY"
	Sell Side = "SELL"
)

func (s Side) Opposite() Side {
	if s == Buy {
		return Sell
	}
	return Buy
}

// SideOf maps a side or contract type name onto a Side. Unknown names are
// returned empty.
func SideOf(name string) Side {
	switch strings.ToUpper(name) {
	case "BUY", "CALL", "MULTUP":
		return Buy
	case "SELL", "PUT", "MULTDOWN":
		return Sell
	}
	return ""
}
