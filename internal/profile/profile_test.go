package profile

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestThreadName(t *testing.T) {
	tests := []struct {
		index int64
		want  string
	}{
		{-1, "Mean (No Null)"},
		{-2, "Total"},
		{-3, "Std Dev (No Null)"},
		{-4, "Min"},
		{-5, "Max"},
		{-6, "Mean"},
		{-7, "Std Dev"},
		{0, "0"},
		{3, "3"},
		{-8, "-8"},
	}
	for _, tt := range tests {
		if got := ThreadName(tt.index); got != tt.want {
			t.Errorf("ThreadName(%d) = %q, want %q", tt.index, got, tt.want)
		}
	}
}

func TestParseValueType(t *testing.T) {
	tests := []struct {
		in      string
		want    ValueType
		wantErr bool
	}{
		{"", Exclusive, false},
		{"exclusive", Exclusive, false},
		{"inclusive", Inclusive, false},
		{"INCLUSIVE", "", true},
		{"total", "", true},
	}
	for _, tt := range tests {
		got, err := ParseValueType(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseValueType(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseValueType(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
	if Inclusive.Toggle() != Exclusive || Exclusive.Toggle() != Inclusive {
		t.Error("Toggle does not swap value types")
	}
}

func TestOrderedPreservesOrder(t *testing.T) {
	in := OrderedTrials([]Trial{{ID: 30, Name: "c"}, {ID: 10, Name: "a"}, {ID: 20, Name: "b"}})

	data, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if want := `{"30":"c","10":"a","20":"b"}`; string(data) != want {
		t.Fatalf("Marshal = %s, want %s", data, want)
	}

	var out Ordered
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	trials, err := out.Trials()
	if err != nil {
		t.Fatalf("Trials: %v", err)
	}
	want := []Trial{{ID: 30, Name: "c"}, {ID: 10, Name: "a"}, {ID: 20, Name: "b"}}
	if diff := cmp.Diff(want, trials); diff != "" {
		t.Errorf("Trials mismatch (-want +got):\n%s", diff)
	}
}

func TestOrderedUnmarshalLenient(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want Ordered
	}{
		{"empty php array", `[]`, Ordered{}},
		{"number value", `{"5":3}`, Ordered{{Key: "5", Value: "3"}}},
		{"null value", `{"5":null}`, Ordered{{Key: "5", Value: ""}}},
		{"null object", `null`, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got Ordered
			if err := json.Unmarshal([]byte(tt.in), &got); err != nil {
				t.Fatalf("Unmarshal(%s): %v", tt.in, err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("mismatch (-want +got):\n%s", diff)
			}
		})
	}

	var bad Ordered
	if err := json.Unmarshal([]byte(`["a"]`), &bad); err == nil {
		t.Error("expected error for non-object array")
	}
	o := Ordered{{Key: "x", Value: "1"}}
	if _, err := o.Metrics(); err == nil {
		t.Error("expected error for non-integer id key")
	}
}

func TestProfileRowSelectors(t *testing.T) {
	r := ProfileRow{InclusiveValue: 10, InclusivePercent: 50, ExclusiveValue: 4, ExclusivePercent: 20}
	if r.Value(Inclusive) != 10 || r.Percent(Inclusive) != 50 {
		t.Errorf("inclusive selectors = %v/%v", r.Value(Inclusive), r.Percent(Inclusive))
	}
	if r.Value(Exclusive) != 4 || r.Percent(Exclusive) != 20 {
		t.Errorf("exclusive selectors = %v/%v", r.Value(Exclusive), r.Percent(Exclusive))
	}
}
