package matcher

import (
	"time"

	"github.com/example/shelter-matching/internal/models"
)

// Subject is the pair under evaluation plus the evaluation instant.
type Subject struct {
	User    *models.UserProfile
	Shelter *models.ShelterCandidate
	Now     time.Time
}

// Gate is a hard eligibility rule. A shelter failing any gate is excluded.
type Gate struct {
	Name  string
	Allow func(Subject) bool
}

// Criterion is a scored dimension. Compare returns a ratio in [0,1] of MaxScore.
// When applicable is false the criterion is left out of the result and the denominator.
type Criterion struct {
	Name     string
	MaxScore float64
	Compare  func(Subject) (ratio float64, applicable bool)
}

// Criterion names as they appear in matchDetails.
const (
	CriterionGenderPolicy   = "Gender Policy"
	CriterionStayLength     = "Stay Length"
	CriterionLocation       = "Location"
	CriterionPets           = "Pets"
	CriterionSecurity       = "Security"
	CriterionCurfew         = "Curfew"
	CriterionCommunalLiving = "Communal Living"
	CriterionSmoking        = "Smoking"
)

// Gate names reported when a shelter is excluded.
const (
	GateGenderPolicy  = "gender-policy"
	GateAgeBounds     = "age-bounds"
	GateGroupCapacity = "group-capacity"
	GatePets          = "pets"
	GateWheelchair    = "wheelchair"

	// GateMalformed is reported for records that fail validation before gating.
	GateMalformed = "malformed"
)
