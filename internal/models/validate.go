package models

import (
	"errors"
	"fmt"
)

// ErrMalformedShelter marks a shelter record that is missing required policy fields.
var ErrMalformedShelter = errors.New("malformed shelter record")

// ValidationError is a client-side input problem. Matching is never attempted.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func invalid(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// Validate checks the invariants a profile must satisfy before it reaches the matcher.
func (u UserProfile) Validate() error {
	if u.Gender == "" {
		return invalid("gender", "gender is required")
	}
	if !u.Gender.Valid() {
		return invalid("gender", "gender %q is not recognised", u.Gender)
	}
	if u.GroupType != "" && !u.GroupType.Valid() {
		return invalid("groupType", "groupType %q is not recognised", u.GroupType)
	}
	if u.GroupSize <= 0 {
		return invalid("groupSize", "groupSize must be positive")
	}
	if u.ChildrenCount < 0 {
		return invalid("childrenCount", "childrenCount must not be negative")
	}
	if u.DesiredStay != "" && u.DesiredStay.Rank() == 0 {
		return invalid("desiredStayType", "desiredStayType %q is not recognised", u.DesiredStay)
	}
	return nil
}

// Validate reports records the matcher must exclude rather than score.
func (s ShelterCandidate) Validate() error {
	if s.ID == "" {
		return fmt.Errorf("%w: id missing", ErrMalformedShelter)
	}
	if !s.GenderPolicy.Valid() {
		return fmt.Errorf("%w: shelter %s gender policy %q", ErrMalformedShelter, s.ID, s.GenderPolicy)
	}
	if !s.PetPolicy.Valid() {
		return fmt.Errorf("%w: shelter %s pet policy %q", ErrMalformedShelter, s.ID, s.PetPolicy)
	}
	if s.MaxStayLength != "" && s.MaxStayLength.Rank() == 0 {
		return fmt.Errorf("%w: shelter %s max stay %q", ErrMalformedShelter, s.ID, s.MaxStayLength)
	}
	if s.MinAge != nil && s.MaxAge != nil && *s.MinAge > *s.MaxAge {
		return fmt.Errorf("%w: shelter %s age bounds %d > %d", ErrMalformedShelter, s.ID, *s.MinAge, *s.MaxAge)
	}
	return nil
}

// Info copies the fields a result carries about its shelter.
func (s ShelterCandidate) Info() ShelterInfo {
	info := ShelterInfo{
		Name:            s.Name,
		Locality:        s.Locality,
		GenderPolicy:    s.GenderPolicy,
		MaxStayLength:   s.MaxStayLength,
		PetPolicy:       s.PetPolicy,
		AcceptsFamilies: s.AcceptsFamilies,
		AcceptsCouples:  s.AcceptsCouples,
	}
	if s.Location != nil {
		c := *s.Location
		info.Location = &c
	}
	if s.WheelchairAccessible != nil {
		info.WheelchairAccessible = *s.WheelchairAccessible
	}
	return info
}
