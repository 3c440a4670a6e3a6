package intake

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/example/shelter-matching/internal/models"
)

const dateLayout = "2006-01-02"

// Form is the intake questionnaire as submitted by the intake pages.
type Form struct {
	Gender                string        `json:"gender" validate:"required,oneof=male female non-binary other"`
	DateOfBirth           string        `json:"dateOfBirth" validate:"omitempty,datetime=2006-01-02"`
	GroupType             string        `json:"groupType" validate:"omitempty,oneof=individual couple family group"`
	GroupSize             *int          `json:"groupSize" validate:"omitempty,min=1,max=50"`
	ChildrenCount         int           `json:"childrenCount" validate:"min=0,max=30"`
	DesiredStayType       string        `json:"desiredStayType" validate:"omitempty,oneof=short-term medium-term long-term"`
	Location              *LocationForm `json:"location" validate:"omitempty"`
	WantsWomenOnly        bool          `json:"wantsWomenOnly"`
	HasPets               bool          `json:"hasPets"`
	PetSize               string        `json:"petSize" validate:"omitempty,oneof=small large"`
	NeedsWheelchairAccess bool          `json:"needsWheelchairAccess"`

	NeedsSecurity         *bool `json:"needsSecurity"`
	HasCurfewTolerance    *bool `json:"hasCurfewTolerance"`
	AcceptsCommunalLiving *bool `json:"acceptsCommunalLiving"`
	IsSmoker              *bool `json:"isSmoker"`
}

type LocationForm struct {
	Lat      *float64 `json:"lat" validate:"omitempty,gte=-90,lte=90"`
	Lon      *float64 `json:"lon" validate:"omitempty,gte=-180,lte=180"`
	Locality string   `json:"locality" validate:"max=200"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

var genderAliases = map[string]string{
	"nonbinary":         string(models.GenderNonBinary),
	"non binary":        string(models.GenderNonBinary),
	"unspecified":       string(models.GenderOther),
	"other/unspecified": string(models.GenderOther),
}

func normalize(v string) string {
	v = strings.ToLower(strings.TrimSpace(v))
	if alias, ok := genderAliases[v]; ok {
		return alias
	}
	return v
}

// ParseForm validates a submitted form and converts it to a profile.
// All failures are *models.ValidationError.
func ParseForm(f Form) (models.UserProfile, error) {
	f.Gender = normalize(f.Gender)
	f.GroupType = normalize(f.GroupType)
	f.DesiredStayType = normalize(f.DesiredStayType)
	f.PetSize = normalize(f.PetSize)

	if err := validate.Struct(f); err != nil {
		return models.UserProfile{}, translate(err)
	}

	p := models.UserProfile{
		Gender:                models.Gender(f.Gender),
		GroupType:             models.GroupType(f.GroupType),
		ChildrenCount:         f.ChildrenCount,
		DesiredStay:           models.StayType(f.DesiredStayType),
		WantsWomenOnly:        f.WantsWomenOnly,
		HasPets:               f.HasPets,
		PetSize:               models.PetSize(f.PetSize),
		NeedsWheelchairAccess: f.NeedsWheelchairAccess,
		NeedsSecurity:         f.NeedsSecurity,
		HasCurfewTolerance:    f.HasCurfewTolerance,
		AcceptsCommunalLiving: f.AcceptsCommunalLiving,
		IsSmoker:              f.IsSmoker,
	}
	if p.GroupType == "" {
		p.GroupType = models.GroupIndividual
	}
	if f.DateOfBirth != "" {
		dob, err := time.Parse(dateLayout, f.DateOfBirth)
		if err != nil {
			return models.UserProfile{}, &models.ValidationError{Field: "dateOfBirth", Message: "dateOfBirth must be a date in YYYY-MM-DD format"}
		}
		p.DateOfBirth = dob
	}
	if f.Location != nil {
		if (f.Location.Lat == nil) != (f.Location.Lon == nil) {
			return models.UserProfile{}, &models.ValidationError{Field: "location", Message: "location needs both lat and lon"}
		}
		p.Location.Locality = strings.TrimSpace(f.Location.Locality)
		if f.Location.Lat != nil && f.Location.Lon != nil {
			p.Location.Coord = &models.Coord{Lat: *f.Location.Lat, Lon: *f.Location.Lon}
		}
	}
	if f.GroupSize != nil {
		p.GroupSize = *f.GroupSize
	} else {
		p.GroupSize = defaultGroupSize(p.GroupType, p.ChildrenCount)
	}
	if p.GroupType == models.GroupFamily && p.GroupSize <= p.ChildrenCount {
		return models.UserProfile{}, &models.ValidationError{Field: "groupSize", Message: "groupSize must include at least one adult besides the children"}
	}
	if err := p.Validate(); err != nil {
		return models.UserProfile{}, err
	}
	return p, nil
}

func defaultGroupSize(g models.GroupType, children int) int {
	switch g {
	case models.GroupCouple:
		return 2
	case models.GroupFamily:
		return children + 1
	}
	return 1
}

func translate(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return &models.ValidationError{Message: err.Error()}
	}
	fe := verrs[0]
	field := fe.Field()
	var msg string
	switch fe.Tag() {
	case "required":
		msg = fmt.Sprintf("%s is required", field)
	case "oneof":
		msg = fmt.Sprintf("%s must be one of: %s", field, strings.ReplaceAll(fe.Param(), " ", ", "))
	case "datetime":
		msg = fmt.Sprintf("%s must be a date in YYYY-MM-DD format", field)
	case "min", "max", "gte", "lte":
		msg = fmt.Sprintf("%s is out of range", field)
	default:
		msg = fmt.Sprintf("%s is invalid", field)
	}
	return &models.ValidationError{Field: field, Message: msg}
}
