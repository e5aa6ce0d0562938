package domain

import "testing"

func TestPriority_TotalAndPure(t *testing.T) {
	cases := map[ServiceType]int{
		ServiceDoctor:       10,
		ServicePsychologist: 7,
		ServiceSpecialist:   5,
		ServiceNutritionist: 3,
		"":                  1,
		"dentist":           1,
		"DOCTOR":            1, // case-sensitive: only the canonical values map
	}
	for in, want := range cases {
		if got := Priority(in); got != want {
			t.Errorf("Priority(%q) = %d; want %d", in, got, want)
		}
	}
}

func TestParseServiceType(t *testing.T) {
	cases := map[string]ServiceType{
		"doctor":           ServiceDoctor,
		" Doctor ":         ServiceDoctor,
		"psychology":       ServicePsychologist,
		"psychologist":     ServicePsychologist,
		"nutrition":        ServiceNutritionist,
		"specialist":       ServiceSpecialist,
		"general_medicine": ServiceDoctor,
	}
	for in, want := range cases {
		got, ok := ParseServiceType(in)
		if !ok || got != want {
			t.Errorf("ParseServiceType(%q) = %q,%v; want %q", in, got, ok, want)
		}
	}
	if _, ok := ParseServiceType("dentist"); ok {
		t.Fatalf("expected unknown service type to be rejected")
	}
}

func TestServiceType_Valid(t *testing.T) {
	if !ServiceNutritionist.Valid() || ServiceType("x").Valid() {
		t.Fatalf("Valid() mismatch")
	}
}
