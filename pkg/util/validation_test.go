package util

import "testing"

func TestValidationBuilderNoErrors(t *testing.T) {
	v := &ValidationBuilder{}
	v.Add(true, "should not appear")
	if v.HasErrors() {
		t.Fatal("expected no errors")
	}
	if err := v.Build(); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
}

func TestValidationBuilderAccumulates(t *testing.T) {
	v := &ValidationBuilder{}
	v.Add(false, "first failure")
	v.AddErrorf("second failure: %d", 2)
	if !v.HasErrors() {
		t.Fatal("expected errors")
	}
	err := v.Build()
	if err == nil {
		t.Fatal("expected a non-nil error")
	}
	msg := err.Error()
	if !contains(msg, "first failure") || !contains(msg, "second failure: 2") {
		t.Errorf("expected both messages in %q", msg)
	}
}

func contains(s, substr string) bool {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return true
		}
	}
	return false
}
