package analysis

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

type rawOutput struct {
	Status     string          `json:"status"`
	Class      string          `json:"class"`
	Confidence json.RawMessage `json:"confidence"`
	Cycles     json.RawMessage `json:"cycles"`
	GraphData  json.RawMessage `json:"graph_data"`
	Message    string          `json:"message"`
}

// ParseOutput interprets the classifier's stdout as exactly one JSON record.
// Unparseable text yields ErrMalformedOutput; a record with status "error"
// yields a *ClassificationError carrying its message.
func ParseOutput(stdout []byte) (Output, error) {
	text := bytes.TrimSpace(stdout)
	if len(text) == 0 {
		return Output{}, fmt.Errorf("%w: empty output", ErrMalformedOutput)
	}

	dec := json.NewDecoder(bytes.NewReader(text))
	var raw rawOutput
	if err := dec.Decode(&raw); err != nil {
		return Output{}, fmt.Errorf("%w: %v", ErrMalformedOutput, err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return Output{}, fmt.Errorf("%w: trailing data after record", ErrMalformedOutput)
	}

	switch Status(strings.ToLower(strings.TrimSpace(raw.Status))) {
	case StatusError:
		msg := strings.TrimSpace(raw.Message)
		if msg == "" {
			msg = "el clasificador no devolvió detalles"
		}
		return Output{}, &ClassificationError{Message: msg}
	case StatusOK:
	default:
		return Output{}, fmt.Errorf("%w: unknown status %q", ErrMalformedOutput, raw.Status)
	}

	if strings.TrimSpace(raw.Class) == "" {
		return Output{}, fmt.Errorf("%w: missing class", ErrMalformedOutput)
	}
	conf, err := parseNumber(raw.Confidence)
	if err != nil {
		return Output{}, fmt.Errorf("%w: confidence: %v", ErrMalformedOutput, err)
	}
	if conf < 0 {
		return Output{}, fmt.Errorf("%w: confidence %v is negative", ErrMalformedOutput, conf)
	}
	cycles, err := parseNumber(raw.Cycles)
	if err != nil {
		return Output{}, fmt.Errorf("%w: cycles: %v", ErrMalformedOutput, err)
	}
	// ciclos_latidos is a 32-bit INT column in both schemas
	if cycles < 0 || math.Trunc(cycles) > math.MaxInt32 {
		return Output{}, fmt.Errorf("%w: cycles %v out of range", ErrMalformedOutput, cycles)
	}
	graph, err := NormalizeGraphData(raw.GraphData)
	if err != nil {
		return Output{}, fmt.Errorf("%w: graph_data: %v", ErrMalformedOutput, err)
	}

	return Output{
		Status:     StatusOK,
		Class:      raw.Class,
		Confidence: conf,
		Cycles:     int(math.Trunc(cycles)),
		GraphData:  graph,
		Message:    raw.Message,
	}, nil
}

// parseNumber accepts a JSON number or a numeric string.
func parseNumber(raw json.RawMessage) (float64, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return 0, fmt.Errorf("missing value")
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, fmt.Errorf("not a finite number: %s", raw)
		}
		return f, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, fmt.Errorf("not a number: %s", raw)
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("not a number: %q", s)
	}
	return f, nil
}

// NormalizeGraphData returns the canonical text form of graph data: a JSON
// string is taken verbatim, any other value is compacted JSON. Absent or null
// gives nil.
func NormalizeGraphData(raw json.RawMessage) (*string, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || string(trimmed) == "null" {
		return nil, nil
	}
	if trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return nil, err
		}
		return &s, nil
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, trimmed); err != nil {
		return nil, err
	}
	s := buf.String()
	return &s, nil
}

// DecodeGraphData turns stored graph text back into JSON. Text that does not
// parse gives nil, never an error.
func DecodeGraphData(stored *string) json.RawMessage {
	if stored == nil || strings.TrimSpace(*stored) == "" {
		return nil
	}
	if !json.Valid([]byte(*stored)) {
		return nil
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, []byte(*stored)); err != nil {
		return nil
	}
	return buf.Bytes()
}
