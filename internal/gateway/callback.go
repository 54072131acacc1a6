package gateway

import (
	"encoding/base64"
	"errors"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/iliyamo/futsal-booking/internal/signature"
)

// ErrMalformedCallback is returned when a callback cannot be decoded into a
// JSON object.
var ErrMalformedCallback = errors.New("esewa: malformed callback payload")

// Callback is a decoded eSewa redirect payload. The raw JSON is kept so the
// signed fields can be read in exactly the form eSewa signed them.
type Callback struct {
	TransactionUUID  string
	Status           string
	TotalAmount      string
	TransactionCode  string
	SignedFieldNames string
	Signature        string

	raw gjson.Result
}

// DecodeCallback decodes the base64 "data" parameter eSewa appends to the
// redirect URL. The payload is treated strictly as JSON data.
func DecodeCallback(encoded string) (*Callback, error) {
	// query decoding turns '+' into ' '
	encoded = strings.ReplaceAll(strings.TrimSpace(encoded), " ", "+")
	if encoded == "" {
		return nil, ErrMalformedCallback
	}
	decoded, err := decodeBase64(encoded)
	if err != nil {
		return nil, ErrMalformedCallback
	}
	if !gjson.ValidBytes(decoded) {
		return nil, ErrMalformedCallback
	}
	raw := gjson.ParseBytes(decoded)
	if !raw.IsObject() {
		return nil, ErrMalformedCallback
	}
	cb := &Callback{raw: raw}
	cb.TransactionUUID, _ = cb.Value("transaction_uuid")
	cb.Status, _ = cb.Value("status")
	cb.TotalAmount, _ = cb.Value("total_amount")
	cb.TransactionCode, _ = cb.Value("transaction_code")
	cb.SignedFieldNames, _ = cb.Value("signed_field_names")
	cb.Signature, _ = cb.Value("signature")
	return cb, nil
}

// Value returns a top-level field as text. Strings are unescaped; numbers
// and literals keep their raw JSON text so 1000.0 stays "1000.0".
func (c *Callback) Value(name string) (string, bool) {
	r := c.raw.Get(gjson.Escape(name))
	if !r.Exists() {
		return "", false
	}
	if r.Type == gjson.String {
		return r.Str, true
	}
	return r.Raw, true
}

// SignedFields returns the fields named in signed_field_names, in that
// order, ready for signature verification.
func (c *Callback) SignedFields() ([]signature.Field, error) {
	return signature.FieldsFrom(signature.ParseNames(c.SignedFieldNames), c.Value)
}

func decodeBase64(s string) ([]byte, error) {
	for _, enc := range []*base64.Encoding{
		base64.StdEncoding, base64.URLEncoding, base64.RawStdEncoding, base64.RawURLEncoding,
	} {
		if b, err := enc.DecodeString(s); err == nil {
			return b, nil
		}
	}
	return nil, ErrMalformedCallback
}
