package catalog

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// LocalizedText is a language-keyed string map that remembers the order keys appeared in.
//
// The catalog encodes an empty map as "[]"; both forms decode to an empty value.
type LocalizedText struct {
	keys   []string
	values map[string]string
}

// NewLocalizedText builds a value from alternating key/value pairs.
func NewLocalizedText(pairs ...string) LocalizedText {
	var t LocalizedText
	for i := 0; i+1 < len(pairs); i += 2 {
		t.set(pairs[i], pairs[i+1])
	}
	return t
}

func (t *LocalizedText) set(k, v string) {
	if t.values == nil {
		t.values = make(map[string]string)
	}
	if _, ok := t.values[k]; !ok {
		t.keys = append(t.keys, k)
	}
	t.values[k] = v
}

// Pick returns the value for locale, else the first non-empty value in document order.
func (t LocalizedText) Pick(locale string) string {
	if v := t.values[locale]; v != "" {
		return v
	}
	for _, k := range t.keys {
		if v := t.values[k]; v != "" {
			return v
		}
	}
	return ""
}

// Get returns the value for one locale.
func (t LocalizedText) Get(locale string) (string, bool) {
	v, ok := t.values[locale]
	return v, ok
}

// Len returns the number of locales present.
func (t LocalizedText) Len() int {
	return len(t.keys)
}

// UnmarshalJSON implements [json.Unmarshaler].
func (t *LocalizedText) UnmarshalJSON(data []byte) error {
	*t = LocalizedText{}

	trimmed := bytes.TrimSpace(data)
	if bytes.Equal(trimmed, []byte("null")) {
		return nil
	}
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var arr []json.RawMessage
		if err := json.Unmarshal(trimmed, &arr); err != nil {
			return err
		}
		if len(arr) != 0 {
			return fmt.Errorf("localized text: unexpected non-empty array")
		}
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("localized text: expected object, got %v", tok)
	}

	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, _ := keyTok.(string)

		var value string
		if err := dec.Decode(&value); err != nil {
			return fmt.Errorf("localized text %q: %w", key, err)
		}
		t.set(key, value)
	}

	_, err = dec.Token()
	return err
}

// MarshalJSON implements [json.Marshaler], keeping key order.
func (t LocalizedText) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range t.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, _ := json.Marshal(k)
		vb, _ := json.Marshal(t.values[k])
		buf.Write(kb)
		buf.WriteByte(':')
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
