package telemetry

import (
	"bufio"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"sync"

	json "github.com/json-iterator/go"
	"github.com/peterstace/simplefeatures/geom"
)

// Memory keeps every record in memory. It is safe for concurrent use.
type Memory struct {
	mu      sync.RWMutex
	records []Record
}

// NewMemory returns an empty Memory sink.
func NewMemory() *Memory { return &Memory{} }

// Write implements Sink.
func (m *Memory) Write(_ context.Context, r Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, r)
	return nil
}

// Flush implements Sink.
func (m *Memory) Flush(context.Context) error { return nil }

// Records returns a copy of everything written so far.
func (m *Memory) Records() []Record {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]Record(nil), m.records...)
}

// Len is the number of records held.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}

// WriteJSON encodes the records as a JSON array.
func (m *Memory) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	if err := enc.Encode(m.Records()); err != nil {
		return fmt.Errorf("encoding telemetry: %w", err)
	}
	return nil
}

// WriteGzip is WriteJSON through gzip.
func (m *Memory) WriteGzip(w io.Writer) error {
	zw := gzip.NewWriter(w)
	if err := m.WriteJSON(zw); err != nil {
		zw.Close()
		return err
	}
	return zw.Close()
}

// ReadJSON decodes records written by WriteJSON, transparently handling gzip.
func ReadJSON(r io.Reader) ([]Record, error) {
	br, err := maybeGunzip(r)
	if err != nil {
		return nil, err
	}
	var out []Record
	if err := json.NewDecoder(br).Decode(&out); err != nil {
		return nil, fmt.Errorf("decoding telemetry: %w", err)
	}
	return out, nil
}

func maybeGunzip(r io.Reader) (io.Reader, error) {
	br := bufio.NewReader(r)
	magic, err := br.Peek(2)
	if err == nil && magic[0] == 0x1f && magic[1] == 0x8b {
		zr, err := gzip.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("reading telemetry: %w", err)
		}
		return zr, nil
	}
	return br, nil
}

// Trajectory returns the ground-plane path driven, X=x and Y=z. Runs with
// fewer than two distinct positions yield an empty line string.
func (m *Memory) Trajectory() geom.LineString {
	recs := m.Records()
	return Trajectory(recs)
}

// Trajectory builds the ground-plane path through the record positions.
func Trajectory(recs []Record) geom.LineString {
	coords := make([]float64, 0, 2*len(recs))
	distinct := 0
	for i, r := range recs {
		if i > 0 && r.Position.X() == recs[i-1].Position.X() && r.Position.Z() == recs[i-1].Position.Z() {
			continue
		}
		coords = append(coords, r.Position.X(), r.Position.Z())
		distinct++
	}
	if distinct < 2 {
		return geom.LineString{}
	}
	return geom.NewLineString(geom.NewSequence(coords, geom.DimXY))
}

// WKT renders the trajectory as well-known text.
func (m *Memory) WKT() string { return m.Trajectory().AsText() }

// Distance is the ground-plane length of the trajectory in metres.
func (m *Memory) Distance() float64 { return m.Trajectory().Length() }
