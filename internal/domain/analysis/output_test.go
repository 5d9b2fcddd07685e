package analysis

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"
)

func TestParseOutput_OK(t *testing.T) {
	out, err := ParseOutput([]byte("\n{\"status\":\"ok\",\"class\":\"Normal\",\"confidence\":92.5,\"cycles\":14}\n"))
	if err != nil {
		t.Fatalf("ParseOutput error: %v", err)
	}
	if out.Class != "Normal" || out.Confidence != 92.5 || out.Cycles != 14 {
		t.Fatalf("unexpected output: %+v", out)
	}
	if !out.IsNormal() {
		t.Errorf("expected Normal to be normal")
	}
	if out.GraphData != nil {
		t.Errorf("expected no graph data, got %q", *out.GraphData)
	}
}

func TestParseOutput_NumericStrings(t *testing.T) {
	out, err := ParseOutput([]byte(`{"status":"ok","class":"Murmur","confidence":"81.25","cycles":"9"}`))
	if err != nil {
		t.Fatalf("ParseOutput error: %v", err)
	}
	if out.Confidence != 81.25 || out.Cycles != 9 {
		t.Fatalf("unexpected numbers: %+v", out)
	}
	if out.IsNormal() {
		t.Errorf("Murmur must not be normal")
	}
}

func TestParseOutput_Malformed(t *testing.T) {
	cases := map[string]string{
		"empty":          "",
		"not json":       "Traceback (most recent call last):",
		"array":          `[1,2]`,
		"two records":    `{"status":"ok","class":"Normal","confidence":1,"cycles":1}{"status":"ok"}`,
		"unknown status": `{"status":"maybe","class":"Normal","confidence":1,"cycles":1}`,
		"no status":      `{"class":"Normal","confidence":1,"cycles":1}`,
		"no class":       `{"status":"ok","confidence":1,"cycles":1}`,
		"bad confidence": `{"status":"ok","class":"Normal","confidence":"high","cycles":1}`,
		"no cycles":      `{"status":"ok","class":"Normal","confidence":1}`,
		"huge cycles":    `{"status":"ok","class":"Normal","confidence":1,"cycles":1e20}`,
		"int32 overflow": `{"status":"ok","class":"Normal","confidence":1,"cycles":2147483648}`,
		"overflow float": `{"status":"ok","class":"Normal","confidence":1,"cycles":1e400}`,
		"neg cycles":     `{"status":"ok","class":"Normal","confidence":1,"cycles":-3}`,
		"neg str cycles": `{"status":"ok","class":"Normal","confidence":1,"cycles":"-1"}`,
		"inf cycles":     `{"status":"ok","class":"Normal","confidence":1,"cycles":"Inf"}`,
		"neg confidence": `{"status":"ok","class":"Normal","confidence":-0.5,"cycles":1}`,
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseOutput([]byte(in))
			if !errors.Is(err, ErrMalformedOutput) {
				t.Fatalf("expected ErrMalformedOutput, got %v", err)
			}
		})
	}
}

func TestParseOutput_CyclesBounds(t *testing.T) {
	out, err := ParseOutput([]byte(`{"status":"ok","class":"Normal","confidence":0,"cycles":2147483647.9}`))
	if err != nil {
		t.Fatalf("largest int32 should parse: %v", err)
	}
	if out.Cycles != 2147483647 || out.Confidence != 0 {
		t.Errorf("unexpected output %+v", out)
	}
	out, err = ParseOutput([]byte(`{"status":"ok","class":"Normal","confidence":50,"cycles":0}`))
	if err != nil || out.Cycles != 0 {
		t.Fatalf("zero cycles: %+v, %v", out, err)
	}
}

func TestParseOutput_ClassificationError(t *testing.T) {
	_, err := ParseOutput([]byte(`{"status":"error","message":"audio too short"}`))
	var ce *ClassificationError
	if !errors.As(err, &ce) {
		t.Fatalf("expected ClassificationError, got %v", err)
	}
	if ce.Message != "audio too short" {
		t.Errorf("message = %q", ce.Message)
	}
	if errors.Is(err, ErrMalformedOutput) {
		t.Errorf("classification error must not be reported as malformed")
	}
}

func TestParseOutput_GraphDataForms(t *testing.T) {
	asObject, err := ParseOutput([]byte(`{"status":"ok","class":"Normal","confidence":90,"cycles":3,"graph_data":{"env": [0.1, 0.2], "fs": 2000}}`))
	if err != nil {
		t.Fatalf("object form: %v", err)
	}
	asString, err := ParseOutput([]byte(`{"status":"ok","class":"Normal","confidence":90,"cycles":3,"graph_data":"{\"env\":[0.1,0.2],\"fs\":2000}"}`))
	if err != nil {
		t.Fatalf("string form: %v", err)
	}
	if asObject.GraphData == nil || asString.GraphData == nil {
		t.Fatal("graph data missing")
	}
	if *asObject.GraphData != `{"env":[0.1,0.2],"fs":2000}` {
		t.Errorf("object form not canonical: %s", *asObject.GraphData)
	}
	if *asObject.GraphData != *asString.GraphData {
		t.Errorf("forms differ: %s vs %s", *asObject.GraphData, *asString.GraphData)
	}
}

func TestGraphDataRoundTrip(t *testing.T) {
	original := map[string]any{
		"envelope": []any{0.0, 0.5, 1.0},
		"peaks":    map[string]any{"s1": []any{12.0, 40.0}},
		"fs":       2000.0,
	}
	raw, _ := json.Marshal(original)

	stored, err := NormalizeGraphData(raw)
	if err != nil || stored == nil {
		t.Fatalf("NormalizeGraphData: %v", err)
	}
	var back map[string]any
	if err := json.Unmarshal(DecodeGraphData(stored), &back); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !reflect.DeepEqual(original, back) {
		t.Fatalf("round trip mismatch:\n%v\n%v", original, back)
	}
}

func TestDecodeGraphData_Invalid(t *testing.T) {
	bad := "{not json"
	if got := DecodeGraphData(&bad); got != nil {
		t.Errorf("expected nil for invalid graph data, got %s", got)
	}
	if got := DecodeGraphData(nil); got != nil {
		t.Errorf("expected nil for absent graph data")
	}
}
