package util

import (
	"reflect"
	"testing"
)

func TestExpandRange(t *testing.T) {
	tests := []struct {
		spec    string
		want    []int
		wantErr bool
	}{
		{"", nil, false},
		{"1-5", []int{1, 2, 3, 4, 5}, false},
		{"1,3,5", []int{1, 3, 5}, false},
		{"1-3,5,7-9", []int{1, 2, 3, 5, 7, 8, 9}, false},
		{"5-1", nil, true},
		{"abc", nil, true},
		{"1-abc", nil, true},
	}
	for _, tt := range tests {
		got, err := ExpandRange(tt.spec)
		if (err != nil) != tt.wantErr {
			t.Errorf("ExpandRange(%q) error = %v, wantErr %v", tt.spec, err, tt.wantErr)
			continue
		}
		if err == nil && !reflect.DeepEqual(got, tt.want) {
			t.Errorf("ExpandRange(%q) = %v, want %v", tt.spec, got, tt.want)
		}
	}
}

func TestCompactRange(t *testing.T) {
	got := CompactRange([]int{1, 2, 3, 5, 7, 8, 9})
	if want := "1-3,5,7-9"; got != want {
		t.Errorf("CompactRange() = %q, want %q", got, want)
	}
	if got := CompactRange(nil); got != "" {
		t.Errorf("CompactRange(nil) = %q, want empty", got)
	}
}

func TestExpandLabelRange(t *testing.T) {
	got, err := ExpandLabelRange("1-100")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 100 {
		t.Errorf("expected 100 labels, got %d", len(got))
	}

	if _, err := ExpandLabelRange("0-10"); err == nil {
		t.Error("expected error for label 0 (below MinLabel)")
	}
	if _, err := ExpandLabelRange("4000-5000"); err == nil {
		t.Error("expected error for label above MaxLabel")
	}
}
