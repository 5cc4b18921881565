package shiprocket

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// FlexString decodes a JSON string, number or null into text. Shiprocket
// returns identifiers as numbers on some endpoints and strings on others.
type FlexString string

// UnmarshalJSON implements json.Unmarshaler.
func (s *FlexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*s = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var v string
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*s = FlexString(v)
		return nil
	}
	*s = FlexString(data)
	return nil
}

// String returns the text value.
func (s FlexString) String() string {
	return string(s)
}

// FlexFloat decodes a JSON number or numeric string.
type FlexFloat float64

// UnmarshalJSON implements json.Unmarshaler.
func (f *FlexFloat) UnmarshalJSON(data []byte) error {
	var s FlexString
	if err := s.UnmarshalJSON(data); err != nil {
		return err
	}
	txt := strings.TrimSpace(s.String())
	if txt == "" {
		*f = 0
		return nil
	}
	v, err := strconv.ParseFloat(txt, 64)
	if err != nil {
		return err
	}
	*f = FlexFloat(v)
	return nil
}

// idValue renders an identifier the way Shiprocket expects it: numeric ids
// as JSON numbers, anything else as a string.
func idValue(id string) any {
	if _, err := strconv.ParseInt(id, 10, 64); err == nil {
		return json.Number(id)
	}
	return id
}
