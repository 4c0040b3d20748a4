package jsontime

import (
	"encoding/json"
	"time"
)

// Unix is a time.Time that serializes to/from Unix seconds in JSON.
// Session creation times travel in this form.
type Unix time.Time

// NowEpoch returns the current time as Unix.
func NowEpoch() Unix {
	return Unix(time.Now())
}

// Time returns the underlying time.Time value.
func (ep Unix) Time() time.Time {
	return time.Time(ep)
}

// UnmarshalJSON implements json.Unmarshaler.
func (ep *Unix) UnmarshalJSON(b []byte) error {
	var t int64
	if err := json.Unmarshal(b, &t); err != nil {
		return err
	}
	*ep = Unix(time.Unix(t, 0))
	return nil
}

// MarshalJSON implements json.Marshaler.
func (ep Unix) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Time(ep).Unix())
}

// String returns the time formatted as a string.
func (ep Unix) String() string {
	return time.Time(ep).String()
}

// IsZero reports whether ep represents the zero time instant.
func (ep Unix) IsZero() bool {
	return time.Time(ep).IsZero()
}
