package heightlog

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
)

// Wire format of data/heights.json. Field names and null semantics are a
// contract with other tooling; do not rename.
type wireLog struct {
	Player      *string       `json:"player"`
	FloorTarget *float64      `json:"floor_target"`
	LastUpdated string        `json:"last_updated"`
	DataPoints  *[]wireSample `json:"data_points"`
}

type wireSample struct {
	Timestamp  string   `json:"timestamp"`
	LiveHeight *float64 `json:"live_height"`
	IsPlaying  bool     `json:"is_playing"`
}

// Timestamps written by older tooling are naive ISO-8601 (no zone) with
// optional fractional seconds; those are read as UTC.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

// ParseTimestamp parses an ISO-8601 instant as written by any version of the
// recorder.
func ParseTimestamp(raw string) (time.Time, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, errors.New("empty timestamp")
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid timestamp %q", raw)
}

// FormatTimestamp renders t the way the recorder persists it.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// Decode parses and validates a heights document.
//
// Every failure wraps ErrDocumentCorrupt. Samples are normalized
// (is_playing=true with a null height becomes false).
func Decode(data []byte) (*HeightLog, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty file", ErrDocumentCorrupt)
	}

	var w wireLog
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&w); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDocumentCorrupt, err)
	}
	// reject trailing tokens (e.g. two documents concatenated by a bad merge)
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return nil, fmt.Errorf("%w: trailing data", ErrDocumentCorrupt)
	}

	switch {
	case w.Player == nil || strings.TrimSpace(*w.Player) == "":
		return nil, fmt.Errorf("%w: player is required", ErrDocumentCorrupt)
	case w.FloorTarget == nil || *w.FloorTarget <= 0:
		return nil, fmt.Errorf("%w: floor_target must be > 0", ErrDocumentCorrupt)
	case w.DataPoints == nil:
		return nil, fmt.Errorf("%w: data_points is required", ErrDocumentCorrupt)
	}

	out := &HeightLog{
		Player:      *w.Player,
		FloorTarget: *w.FloorTarget,
		DataPoints:  make([]Sample, 0, len(*w.DataPoints)),
	}
	if strings.TrimSpace(w.LastUpdated) != "" {
		t, err := ParseTimestamp(w.LastUpdated)
		if err != nil {
			return nil, fmt.Errorf("%w: last_updated: %v", ErrDocumentCorrupt, err)
		}
		out.LastUpdated = t
	}
	for i, ws := range *w.DataPoints {
		t, err := ParseTimestamp(ws.Timestamp)
		if err != nil {
			return nil, fmt.Errorf("%w: data_points[%d]: %v", ErrDocumentCorrupt, i, err)
		}
		out.DataPoints = append(out.DataPoints, NewSample(t, ws.LiveHeight, ws.IsPlaying))
	}
	return out, nil
}

// Encode renders the document as indented JSON with a trailing newline.
func Encode(l *HeightLog) ([]byte, error) {
	if l == nil {
		return nil, errors.New("nil document")
	}
	player := l.Player
	target := l.FloorTarget
	points := make([]wireSample, 0, len(l.DataPoints))
	for _, s := range l.DataPoints {
		s = s.normalized()
		points = append(points, wireSample{
			Timestamp:  FormatTimestamp(s.Timestamp),
			LiveHeight: s.LiveHeight,
			IsPlaying:  s.IsPlaying,
		})
	}
	w := wireLog{
		Player:      &player,
		FloorTarget: &target,
		LastUpdated: FormatTimestamp(l.LastUpdated),
		DataPoints:  &points,
	}
	b, err := json.MarshalIndent(w, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal heights document: %w", err)
	}
	return append(b, '\n'), nil
}

// DecodeSamples reads either a full heights document or a bare JSON array of
// samples. It is used by backfill imports.
func DecodeSamples(data []byte) ([]Sample, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var raw []wireSample
		if err := json.Unmarshal(trimmed, &raw); err != nil {
			return nil, fmt.Errorf("decode samples: %w", err)
		}
		out := make([]Sample, 0, len(raw))
		for i, ws := range raw {
			t, err := ParseTimestamp(ws.Timestamp)
			if err != nil {
				return nil, fmt.Errorf("samples[%d]: %w", i, err)
			}
			out = append(out, NewSample(t, ws.LiveHeight, ws.IsPlaying))
		}
		return out, nil
	}
	doc, err := Decode(trimmed)
	if err != nil {
		return nil, err
	}
	return doc.DataPoints, nil
}
