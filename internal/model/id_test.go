package model

import "testing"

func TestNewID(t *testing.T) {
	id, err := NewID(IDTypeJob)
	if err != nil {
		t.Fatalf("NewID: %v", err)
	}
	if !ValidateID(id) {
		t.Errorf("generated ID does not validate: %s", id)
	}

	idType, err := ParseIDType(id)
	if err != nil {
		t.Fatalf("ParseIDType: %v", err)
	}
	if idType != IDTypeJob {
		t.Errorf("expected job, got %s", idType)
	}
}

func TestNewID_InvalidType(t *testing.T) {
	if _, err := NewID(IDType("bogus")); err == nil {
		t.Error("expected error for invalid ID type")
	}
}

func TestValidateID_Rejects(t *testing.T) {
	for _, id := range []string{"", "job_", "job_123", "unknown_9f1c0c1e-0000-0000-0000-000000000000"} {
		if ValidateID(id) {
			t.Errorf("expected %q to be rejected", id)
		}
	}
}
