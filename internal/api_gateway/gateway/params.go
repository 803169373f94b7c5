package gateway

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
)

// Params keeps a JSON object's scalar values in transmitted order. Click signs the
// concatenation of those values, so a map would lose information.
type Params struct {
	keys   []string
	values map[string]string
}

// NewParams builds params from alternating key, value pairs.
func NewParams(pairs ...string) Params {
	p := Params{values: make(map[string]string, len(pairs)/2)}
	for i := 0; i+1 < len(pairs); i += 2 {
		p.keys = append(p.keys, pairs[i])
		p.values[pairs[i]] = pairs[i+1]
	}
	return p
}

func (p *Params) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		return nil
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return errors.New("params must be a JSON object")
	}

	p.keys = nil
	p.values = make(map[string]string)
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, _ := keyTok.(string)

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return err
		}
		p.keys = append(p.keys, key)
		p.values[key] = scalar(raw)
	}
	_, err = dec.Token()
	return err
}

// scalar renders a raw JSON value the way it was transmitted, strings unquoted.
func scalar(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	text := strings.TrimSpace(string(raw))
	if text == "null" {
		return ""
	}
	return text
}

func (p Params) Get(key string) string {
	return p.values[key]
}

func (p Params) Has(key string) bool {
	_, ok := p.values[key]
	return ok
}

// IV concatenates the values in transmitted order.
func (p Params) IV() string {
	var b strings.Builder
	for _, k := range p.keys {
		b.WriteString(p.values[k])
	}
	return b.String()
}
