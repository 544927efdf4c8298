package metrics

import (
	"reflect"
	"testing"
)

func TestFlattenStatusBuckets(t *testing.T) {
	tests := []struct {
		name    string
		buckets map[string]map[string]int
		want    []StatusBucket
	}{
		{name: "nil", buckets: nil, want: nil},
		{name: "empty", buckets: map[string]map[string]int{}, want: nil},
		{
			name: "count descending across versions",
			buckets: map[string]map[string]int{
				"HTTP/1.1": {"200": 10, "503": 5},
				"HTTP/1.0": {"200": 20},
			},
			want: []StatusBucket{
				{Protocol: "HTTP/1.0", Code: "200", Count: 20},
				{Protocol: "HTTP/1.1", Code: "200", Count: 10},
				{Protocol: "HTTP/1.1", Code: "503", Count: 5},
			},
		},
		{
			name: "ties ordered by protocol then code",
			buckets: map[string]map[string]int{
				"HTTP/1.1": {"404": 3, "201": 3},
				"HTTP/1.0": {"301": 3},
			},
			want: []StatusBucket{
				{Protocol: "HTTP/1.0", Code: "301", Count: 3},
				{Protocol: "HTTP/1.1", Code: "201", Count: 3},
				{Protocol: "HTTP/1.1", Code: "404", Count: 3},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FlattenStatusBuckets(tt.buckets)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("FlattenStatusBuckets() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestStatusClass(t *testing.T) {
	for code, want := range map[string]string{
		"100": "1xx",
		"204": "2xx",
		"304": "3xx",
		"418": "4xx",
		"599": "5xx",
		"42":  "other",
		"abc": "other",
		"":    "other",
	} {
		if got := StatusClass(code); got != want {
			t.Errorf("StatusClass(%q) = %q, want %q", code, got, want)
		}
	}
	if got := (StatusBucket{Code: "502"}).Class(); got != "5xx" {
		t.Errorf("Class() = %q, want 5xx", got)
	}
}

func TestStatusClassCounts(t *testing.T) {
	if got := StatusClassCounts(nil); got != nil {
		t.Fatalf("expected nil for no buckets, got %v", got)
	}
	got := StatusClassCounts(map[string]map[string]int{
		"HTTP/1.1": {"200": 7, "204": 1, "500": 2},
		"HTTP/1.0": {"200": 3, "404": 1},
	})
	want := map[string]int{"2xx": 11, "4xx": 1, "5xx": 2}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("StatusClassCounts() = %v, want %v", got, want)
	}
}
