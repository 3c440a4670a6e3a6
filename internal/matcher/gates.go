package matcher

import "github.com/example/shelter-matching/internal/models"

// DefaultGates returns the eligibility gates in evaluation order.
func DefaultGates() []Gate {
	return []Gate{
		{Name: GateGenderPolicy, Allow: genderGate},
		{Name: GateAgeBounds, Allow: ageGate},
		{Name: GateGroupCapacity, Allow: groupGate},
		{Name: GatePets, Allow: petsGate},
		{Name: GateWheelchair, Allow: wheelchairGate},
	}
}

func genderGate(s Subject) bool {
	policy := s.Shelter.GenderPolicy
	// wantsWomenOnly narrows the choice; it never admits anyone the policy refuses.
	if s.User.WantsWomenOnly && policy != models.PolicyWomenOnly {
		return false
	}
	switch policy {
	case models.PolicyMenOnly:
		return s.User.Gender == models.GenderMale
	case models.PolicyWomenOnly:
		return s.User.Gender == models.GenderFemale
	case models.PolicyAllGenders:
		return true
	}
	return false
}

// ageGate fails closed: a bounded shelter cannot admit a user of unknown age.
func ageGate(s Subject) bool {
	minAge, maxAge := s.Shelter.MinAge, s.Shelter.MaxAge
	if minAge == nil && maxAge == nil {
		return true
	}
	age := s.User.AgeAt(s.Now)
	if age < 0 {
		return false
	}
	if minAge != nil && age < *minAge {
		return false
	}
	if maxAge != nil && age > *maxAge {
		return false
	}
	return true
}

func groupGate(s Subject) bool {
	switch s.User.GroupType {
	case models.GroupFamily:
		if !s.Shelter.AcceptsFamilies {
			return false
		}
		if limit := s.Shelter.MaxFamilySize; limit != nil && s.User.GroupSize > *limit {
			return false
		}
	case models.GroupCouple:
		return s.Shelter.AcceptsCouples
	}
	return true
}

func petsGate(s Subject) bool {
	return !s.User.HasPets || s.Shelter.PetPolicy != models.PetsNone
}

// wheelchairGate treats unknown accessibility as inaccessible.
func wheelchairGate(s Subject) bool {
	if !s.User.NeedsWheelchairAccess {
		return true
	}
	return s.Shelter.WheelchairAccessible != nil && *s.Shelter.WheelchairAccessible
}
