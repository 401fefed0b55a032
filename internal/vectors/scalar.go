package vectors

import (
	"encoding/json"
	"math"
	"strconv"
)

// Scalar is a float64 that survives JSON. Finite values marshal as
// numbers; NaN and the infinities marshal as the strings "NaN",
// "Infinity" and "-Infinity", since bare JSON has no tokens for them.
// CBOR is unaffected and keeps its native non-finite encodings.
type Scalar float64

// Symbol returns the textual name of a non-finite value and whether the
// value needed one.
func Symbol(v float64) (string, bool) {
	switch {
	case math.IsNaN(v):
		return "NaN", true
	case math.IsInf(v, 1):
		return "Infinity", true
	case math.IsInf(v, -1):
		return "-Infinity", true
	}
	return "", false
}

func (s Scalar) MarshalJSON() ([]byte, error) {
	v := float64(s)
	if sym, ok := Symbol(v); ok {
		return strconv.AppendQuote(nil, sym), nil
	}
	return json.Marshal(v)
}

func (s *Scalar) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var token string
		if err := json.Unmarshal(data, &token); err != nil {
			return err
		}
		v, err := ParseValue(token)
		if err != nil {
			return err
		}
		*s = Scalar(v)
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*s = Scalar(v)
	return nil
}

// String renders the scalar the way it appears on the wire, minus quotes.
func (s Scalar) String() string {
	v := float64(s)
	if sym, ok := Symbol(v); ok {
		return sym
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}
