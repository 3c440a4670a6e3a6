package matcher

import (
	"strings"

	"github.com/example/shelter-matching/internal/geo"
	"github.com/example/shelter-matching/internal/models"
)

// Weights holds the maximum score of every default criterion and the location thresholds.
type Weights struct {
	GenderPolicy   float64
	StayLength     float64
	Location       float64
	Pets           float64
	Security       float64
	Curfew         float64
	CommunalLiving float64
	Smoking        float64

	// NearKm gets full location marks; CutoffKm and beyond get none.
	NearKm   float64
	CutoffKm float64
}

func DefaultWeights() Weights {
	return Weights{
		GenderPolicy:   10,
		StayLength:     10,
		Location:       10,
		Pets:           5,
		Security:       5,
		Curfew:         5,
		CommunalLiving: 5,
		Smoking:        5,
		NearKm:         10,
		CutoffKm:       100,
	}
}

// shelters with an unknown policy on an expressed preference get this share
const unknownPolicyRatio = 0.5

// DefaultCriteria builds the scoring table in the order it is reported.
func DefaultCriteria(w Weights) []Criterion {
	return []Criterion{
		{Name: CriterionGenderPolicy, MaxScore: w.GenderPolicy, Compare: genderScore},
		{Name: CriterionStayLength, MaxScore: w.StayLength, Compare: stayScore},
		{Name: CriterionLocation, MaxScore: w.Location, Compare: locationScore(w.NearKm, w.CutoffKm)},
		{Name: CriterionPets, MaxScore: w.Pets, Compare: petsScore},
		{Name: CriterionSecurity, MaxScore: w.Security, Compare: securityScore},
		{Name: CriterionCurfew, MaxScore: w.Curfew, Compare: curfewScore},
		{Name: CriterionCommunalLiving, MaxScore: w.CommunalLiving, Compare: communalScore},
		{Name: CriterionSmoking, MaxScore: w.Smoking, Compare: smokingScore},
	}
}

// Passing the gender gate already guarantees compatibility.
func genderScore(Subject) (float64, bool) { return 1, true }

// stayScore is omitted when the user gave no stay; a shelter that does not
// state one scores 0.
func stayScore(s Subject) (float64, bool) {
	want, offered := s.User.DesiredStay.Rank(), s.Shelter.MaxStayLength.Rank()
	switch {
	case want == 0:
		return 0, false
	case offered == 0:
		return 0, true
	case offered >= want:
		return 1, true
	default:
		return 0.5, true
	}
}

func locationScore(nearKm, cutoffKm float64) func(Subject) (float64, bool) {
	return func(s Subject) (float64, bool) {
		from, to := s.User.Location.Coord, s.Shelter.Location
		if from == nil && strings.TrimSpace(s.User.Location.Locality) == "" {
			return 0, false
		}
		if from == nil || to == nil {
			return localityScore(s.User.Location.Locality, s.Shelter.Locality), true
		}
		d := geo.DistanceKm(*from, *to)
		switch {
		case d <= nearKm:
			return 1, true
		case d >= cutoffKm:
			return 0, true
		default:
			return (cutoffKm - d) / (cutoffKm - nearKm), true
		}
	}
}

func localityScore(a, b string) float64 {
	a, b = strings.TrimSpace(a), strings.TrimSpace(b)
	if a != "" && strings.EqualFold(a, b) {
		return 1
	}
	return 0
}

func petsScore(s Subject) (float64, bool) {
	if !s.User.HasPets {
		return 0, false
	}
	switch s.Shelter.PetPolicy {
	case models.PetsAll:
		return 1, true
	case models.PetsSmall:
		if s.User.PetSize == models.PetSizeLarge {
			return 0, true
		}
		return 0.5, true
	}
	return 0, true
}

func securityScore(s Subject) (float64, bool) {
	if s.User.NeedsSecurity == nil {
		return 0, false
	}
	if !*s.User.NeedsSecurity {
		return 1, true
	}
	return whenKnown(s.Shelter.HasSecurity, 1, 0), true
}

func curfewScore(s Subject) (float64, bool) {
	if s.User.HasCurfewTolerance == nil {
		return 0, false
	}
	if *s.User.HasCurfewTolerance {
		return 1, true
	}
	return whenKnown(s.Shelter.HasCurfew, 0, 1), true
}

func communalScore(s Subject) (float64, bool) {
	if s.User.AcceptsCommunalLiving == nil {
		return 0, false
	}
	if *s.User.AcceptsCommunalLiving {
		return 1, true
	}
	return whenKnown(s.Shelter.CommunalLiving, 0, 1), true
}

func smokingScore(s Subject) (float64, bool) {
	if s.User.IsSmoker == nil {
		return 0, false
	}
	if *s.User.IsSmoker {
		return whenKnown(s.Shelter.SmokingAllowed, 1, 0), true
	}
	return whenKnown(s.Shelter.SmokingAllowed, unknownPolicyRatio, 1), true
}

// whenKnown maps a shelter's optional policy flag to a ratio.
func whenKnown(policy *bool, ifTrue, ifFalse float64) float64 {
	switch {
	case policy == nil:
		return unknownPolicyRatio
	case *policy:
		return ifTrue
	default:
		return ifFalse
	}
}
