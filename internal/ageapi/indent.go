package ageapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// indentJSON re-encodes a JSON document with two space indentation. Key order
// is preserved and strings are written without \u escapes for printable
// characters or HTML-safe escaping, so the result reads like the body the
// service sent.
func indentJSON(body []byte) (string, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var out strings.Builder
	if err := writeValue(dec, &out, 0); err != nil {
		return "", err
	}
	return out.String(), nil
}

func writeValue(dec *json.Decoder, out *strings.Builder, depth int) error {
	tok, err := dec.Token()
	if err != nil {
		return err
	}

	switch t := tok.(type) {
	case json.Delim:
		return writeContainer(dec, out, t, depth)
	case string:
		return writeString(out, t)
	case json.Number:
		out.WriteString(t.String())
	case bool:
		out.WriteString(strconv.FormatBool(t))
	case nil:
		out.WriteString("null")
	default:
		return fmt.Errorf("unexpected json token %v", tok)
	}
	return nil
}

func writeContainer(dec *json.Decoder, out *strings.Builder, open json.Delim, depth int) error {
	closing := byte('}')
	if open == '[' {
		closing = ']'
	}
	out.WriteByte(byte(open))

	n := 0
	for dec.More() {
		if n > 0 {
			out.WriteByte(',')
		}
		out.WriteByte('\n')
		out.WriteString(strings.Repeat("  ", depth+1))

		if open == '{' {
			key, err := dec.Token()
			if err != nil {
				return err
			}
			name, ok := key.(string)
			if !ok {
				return fmt.Errorf("unexpected object key %v", key)
			}
			if err := writeString(out, name); err != nil {
				return err
			}
			out.WriteString(": ")
		}
		if err := writeValue(dec, out, depth+1); err != nil {
			return err
		}
		n++
	}

	if _, err := dec.Token(); err != nil {
		return err
	}
	if n > 0 {
		out.WriteByte('\n')
		out.WriteString(strings.Repeat("  ", depth))
	}
	out.WriteByte(closing)
	return nil
}

func writeString(out *strings.Builder, s string) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return err
	}
	out.Write(bytes.TrimSuffix(buf.Bytes(), []byte("\n")))
	return nil
}
