// Package stream maintains the single multiplexed metadata connection and
// fans frames out to registered runs.
package stream

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/itachisky/livecap/internal/runs"
)

// Placeholder is shown for metric chips and timestamps with no value.
const Placeholder = "—"

// Frame is one multiplexed metadata event. Removed frames are out-of-band
// deletion notices; Data carries the caption payload otherwise.
type Frame struct {
	RunID   string  `json:"runId"`
	Removed bool    `json:"removed"`
	Data    Payload `json:"data"`
}

// Payload is a tagged union over plain text and a structured result object.
// Any other JSON shape is kept raw and stringified losslessly for display.
type Payload struct {
	Text       string
	IsText     bool
	Structured *Result

	raw json.RawMessage
}

// Result is the structured caption payload.
type Result struct {
	Result           string     `json:"result"`
	Metrics          *Metrics   `json:"metrics"`
	TimestampSeconds *float64   `json:"timestamp_seconds"`
	Timestamp        *WallClock `json:"timestamp"`
}

// Metrics carries the upstream-computed inference metrics. All fields are
// optional.
type Metrics struct {
	TTFTMean       *float64 `json:"ttft_mean"`
	TPOTMean       *float64 `json:"tpot_mean"`
	ThroughputMean *float64 `json:"throughput_mean"`
}

// WallClock accepts either an epoch-milliseconds number or an RFC 3339
// string.
type WallClock struct {
	time.Time
}

// UnmarshalJSON implements json.Unmarshaler.
func (w *WallClock) UnmarshalJSON(b []byte) error {
	var ms float64
	if err := json.Unmarshal(b, &ms); err == nil {
		w.Time = time.UnixMilli(int64(ms))
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	w.Time = t
	return nil
}

// UnmarshalJSON decodes the union once at the boundary.
func (p *Payload) UnmarshalJSON(b []byte) error {
	p.raw = append(p.raw[:0], b...)

	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		p.Text = s
		p.IsText = true
		return nil
	}

	var r Result
	if err := json.Unmarshal(b, &r); err == nil && bytes.HasPrefix(bytes.TrimSpace(b), []byte("{")) {
		p.Structured = &r
	}
	// Numbers, arrays, bools fall through with only raw set; Caption
	// stringifies them.
	return nil
}

// Caption extracts the display caption: the result field when present, the
// raw string for plain-text payloads, otherwise the compacted JSON.
func (p Payload) Caption() string {
	if p.IsText {
		return p.Text
	}
	if p.Structured != nil && p.Structured.Result != "" {
		return p.Structured.Result
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, p.raw); err != nil {
		return string(p.raw)
	}
	return buf.String()
}

// Chips renders the metric chips, placeholder for anything absent.
func (p Payload) Chips() runs.MetricChips {
	chips := runs.MetricChips{TTFT: Placeholder, TPOT: Placeholder, Throughput: Placeholder}
	if p.Structured == nil || p.Structured.Metrics == nil {
		return chips
	}
	m := p.Structured.Metrics
	if m.TTFTMean != nil {
		chips.TTFT = fmt.Sprintf("%.0f ms", *m.TTFTMean)
	}
	if m.TPOTMean != nil {
		chips.TPOT = fmt.Sprintf("%.2f ms", *m.TPOTMean)
	}
	if m.ThroughputMean != nil {
		chips.Throughput = fmt.Sprintf("%.2f tok/s", *m.ThroughputMean)
	}
	return chips
}

// TimestampLabel prefers the elapsed-in-stream timestamp, then the wall
// clock one, then the placeholder.
func (p Payload) TimestampLabel() string {
	if p.Structured == nil {
		return Placeholder
	}
	if p.Structured.TimestampSeconds != nil {
		return fmt.Sprintf("Updated %.2fs into stream", *p.Structured.TimestampSeconds)
	}
	if p.Structured.Timestamp != nil {
		return "Updated at " + p.Structured.Timestamp.Local().Format("15:04:05")
	}
	return Placeholder
}

// AlertFor scans a caption case-insensitively for the affirmative and
// negative tokens. Affirmative wins; the states are mutually exclusive.
func AlertFor(caption string) runs.AlertState {
	lower := strings.ToLower(caption)
	switch {
	case strings.Contains(lower, "yes"):
		return runs.AlertActive
	case strings.Contains(lower, "no"):
		return runs.AlertSafe
	default:
		return runs.AlertNone
	}
}
