package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"unicode/utf8"
)

// Pool of buffers shared by concurrent broadcasters
var bufferPool = sync.Pool{
	New: func() any {
		return &bytes.Buffer{}
	},
}

// ErrEmptyText is returned for a Say with nothing but whitespace
var ErrEmptyText = errors.New("empty text")

// Marshal serializes an event to a JSON frame
func Marshal(ev *Event) ([]byte, error) {
	buf := bufferPool.Get().(*bytes.Buffer)
	buf.Reset()
	defer bufferPool.Put(buf)

	if err := json.NewEncoder(buf).Encode(ev); err != nil {
		return nil, fmt.Errorf("encode event: %w", err)
	}
	// Encode appends a newline, websocket frames don't need it
	out := bytes.TrimRight(buf.Bytes(), "\n")
	return append([]byte(nil), out...), nil
}

// Unmarshal decodes an event frame
func Unmarshal(data []byte, ev *Event) error {
	if err := json.Unmarshal(data, ev); err != nil {
		return fmt.Errorf("decode event: %w", err)
	}
	return nil
}

// DecodeSay decodes and validates a client line
func DecodeSay(data []byte) (Say, error) {
	var s Say
	if err := json.Unmarshal(data, &s); err != nil {
		return Say{}, fmt.Errorf("decode say: %w", err)
	}
	s.Text = strings.TrimSpace(s.Text)
	if s.Text == "" {
		return Say{}, ErrEmptyText
	}
	if !utf8.ValidString(s.Text) {
		return Say{}, fmt.Errorf("decode say: invalid utf-8")
	}
	if len(s.Text) > MaxTextLength {
		return Say{}, fmt.Errorf("decode say: text longer than %d bytes", MaxTextLength)
	}
	return s, nil
}
