// Package signature computes and checks the HMAC-SHA256 signatures used by
// the eSewa payment gateway. A signature covers an ordered list of fields
// rendered as "name=value" pairs joined by commas.
package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strings"
)

// InitiationFields is the field list the gateway expects on payment
// initiation forms.
const InitiationFields = "total_amount,transaction_uuid,product_code"

// Field is one signed name/value pair.
type Field struct {
	Name  string
	Value string
}

// Message renders fields in order as "a=1,b=2".
func Message(fields []Field) string {
	var b strings.Builder
	for i, f := range fields {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(f.Name)
		b.WriteByte('=')
		b.WriteString(f.Value)
	}
	return b.String()
}

// Sign returns base64(HMAC-SHA256(secret, Message(fields))).
func Sign(fields []Field, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(Message(fields)))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// Verify recomputes the signature over fields and compares it with provided
// in constant time.
func Verify(fields []Field, secret, provided string) bool {
	if provided == "" {
		return false
	}
	want := Sign(fields, secret)
	return hmac.Equal([]byte(want), []byte(provided))
}

// ParseNames splits a signed_field_names value, trimming blanks.
func ParseNames(list string) []string {
	parts := strings.Split(list, ",")
	names := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			names = append(names, p)
		}
	}
	return names
}

// FieldsFrom builds the field list in the order given by names, reading each
// value through lookup. A declared field that lookup cannot resolve is an
// error; the signature could never match.
func FieldsFrom(names []string, lookup func(name string) (string, bool)) ([]Field, error) {
	if len(names) == 0 {
		return nil, fmt.Errorf("signature: empty signed field list")
	}
	fields := make([]Field, 0, len(names))
	for _, n := range names {
		v, ok := lookup(n)
		if !ok {
			return nil, fmt.Errorf("signature: signed field %q missing from payload", n)
		}
		fields = append(fields, Field{Name: n, Value: v})
	}
	return fields, nil
}
