package model

import (
	"fmt"
	"strings"
)

type PatientKind string

const (
	// PatientSelf references a self-registered patient account.
	PatientSelf PatientKind = "self"
	// PatientDependent references a guardian-managed dependent record.
	PatientDependent PatientKind = "dependent"
)

// PatientRef is a tagged reference to either a patient or a dependent.
// The two variants live in separate tables; the tag picks the table, so a
// ref is never a pair of nullable foreign keys.
type PatientRef struct {
	Kind PatientKind
	ID   string
}

func SelfRef(patientID string) PatientRef {
	return PatientRef{Kind: PatientSelf, ID: patientID}
}

func DependentRef(dependentID string) PatientRef {
	return PatientRef{Kind: PatientDependent, ID: dependentID}
}

func (r PatientRef) Validate() error {
	if r.Kind != PatientSelf && r.Kind != PatientDependent {
		return fmt.Errorf("unknown patient kind %q", r.Kind)
	}
	if strings.TrimSpace(r.ID) == "" {
		return fmt.Errorf("patient id required")
	}
	return nil
}

func (r PatientRef) String() string {
	return string(r.Kind) + ":" + r.ID
}

// Contact is the capability surface both patient variants provide: enough to
// address a notification, nothing more.
type Contact struct {
	FullName string
	Phone    string
}
