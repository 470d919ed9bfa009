package sanitizer

import (
	"reflect"
	"strings"
	"testing"
)

func TestNormalizeUsers(t *testing.T) {
	tests := []struct {
		name  string
		input []string
		want  []string
	}{
		{
			name:  "trim whitespace",
			input: []string{" alice ", "bob"},
			want:  []string{"alice", "bob"},
		},
		{
			name:  "remove duplicates keeping first",
			input: []string{"bob", "alice", " bob"},
			want:  []string{"bob", "alice"},
		},
		{
			name:  "filter empty strings",
			input: []string{"alice", "", "  ", "carol"},
			want:  []string{"alice", "carol"},
		},
		{
			name:  "case is significant",
			input: []string{"Alice", "alice"},
			want:  []string{"Alice", "alice"},
		},
		{
			name:  "empty input",
			input: []string{},
			want:  []string{},
		},
		{
			name:  "nil input",
			input: nil,
			want:  []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeUsers(tt.input)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("NormalizeUsers(%v) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestNormalizeStringSlice_CustomNormalizer(t *testing.T) {
	got := NormalizeStringSlice([]string{"A1", "a1", "B2"}, strings.ToLower)
	want := []string{"a1", "b2"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("NormalizeStringSlice() = %v, want %v", got, want)
	}
}
