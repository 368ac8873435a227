package protocol

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
)

// ErrMalformed wraps every decode failure so callers can branch on "the
// bytes were not valid protocol data" without caring which field broke.
var ErrMalformed = errors.New("malformed protocol data")

// Decode unmarshals wire bytes into v. The root element name is not
// checked: requests arrive under scheduler_request, acct_mgr_request and
// friends depending on the speaker, and the payload shape is what matters.
func Decode(data []byte, v any) error {
	if err := xml.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return nil
}

// Encode marshals v under the given root tag.
func Encode(v any, root string) ([]byte, error) {
	var buf bytes.Buffer
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "    ")
	start := xml.StartElement{Name: xml.Name{Local: root}}
	if err := enc.EncodeElement(v, start); err != nil {
		return nil, fmt.Errorf("encoding %s: %w", root, err)
	}
	if err := enc.Flush(); err != nil {
		return nil, fmt.Errorf("encoding %s: %w", root, err)
	}
	return buf.Bytes(), nil
}

// RepairAmpersands escapes bare & characters to &amp;. Some upstream
// schedulers emit unescaped ampersands in text content, which is invalid
// XML and would otherwise make the reply undecodable. Ampersands that
// already start an entity reference are left alone.
func RepairAmpersands(data []byte) []byte {
	var out bytes.Buffer
	out.Grow(len(data))
	for i := 0; i < len(data); i++ {
		if data[i] != '&' {
			out.WriteByte(data[i])
			continue
		}
		if isEntityStart(data[i:]) {
			out.WriteByte('&')
			continue
		}
		out.WriteString("&amp;")
	}
	return out.Bytes()
}

// isEntityStart reports whether data (starting with '&') begins a
// syntactically valid entity reference: &name; &#123; or &#x1F;.
func isEntityStart(data []byte) bool {
	i := 1
	if i < len(data) && data[i] == '#' {
		i++
		if i < len(data) && (data[i] == 'x' || data[i] == 'X') {
			i++
		}
		start := i
		for i < len(data) && isHexDigit(data[i]) {
			i++
		}
		return i > start && i < len(data) && data[i] == ';'
	}
	start := i
	for i < len(data) && isAlphaNum(data[i]) {
		i++
	}
	return i > start && i < len(data) && data[i] == ';'
}

func isAlphaNum(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z' || b >= '0' && b <= '9'
}

func isHexDigit(b byte) bool {
	return b >= '0' && b <= '9' || b >= 'a' && b <= 'f' || b >= 'A' && b <= 'F'
}
