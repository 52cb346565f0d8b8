package nodes

import (
	"encoding/json"
	"math"
	"testing"
)

func TestStringify(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in   any
		want string
	}{
		{in: nil, want: "null"},
		{in: "text", want: "text"},
		{in: true, want: "true"},
		{in: 3.0, want: "3"},
		{in: 0.25, want: "0.25"},
		{in: 1e21, want: "1000000000000000000000"},
		{in: 7, want: "7"},
		{in: json.Number("12"), want: "12"},
		{in: []any{"a", 1.0}, want: `["a",1]`},
		{in: map[string]any{"k": nil}, want: `{"k":null}`},
		{in: math.Inf(1), want: "+Inf"},
	}
	for _, tt := range tests {
		if got := Stringify(tt.in); got != tt.want {
			t.Errorf("Stringify(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestTypeName(t *testing.T) {
	t.Parallel()
	tests := map[string]any{
		"null":     nil,
		"boolean":  false,
		"string":   "",
		"number":   1.5,
		"sequence": []any{},
		"mapping":  map[string]any{},
		"unknown":  struct{}{},
	}
	for want, v := range tests {
		if got := TypeName(v); got != want {
			t.Errorf("TypeName(%v) = %q, want %q", v, got, want)
		}
	}
}

func TestToNumber(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in     any
		want   float64
		wantOK bool
	}{
		{in: 2.5, want: 2.5, wantOK: true},
		{in: " 4 ", want: 4, wantOK: true},
		{in: "", want: 0, wantOK: true},
		{in: true, want: 1, wantOK: true},
		{in: "NaN", wantOK: false},
		{in: "four", wantOK: false},
		{in: nil, wantOK: false},
		{in: []any{}, wantOK: false},
	}
	for _, tt := range tests {
		got, ok := toNumber(tt.in)
		if ok != tt.wantOK || (ok && got != tt.want) {
			t.Errorf("toNumber(%v) = %v, %v; want %v, %v", tt.in, got, ok, tt.want, tt.wantOK)
		}
	}
}
