package models

import "time"

type Gender string

const (
	GenderMale      Gender = "male"
	GenderFemale    Gender = "female"
	GenderNonBinary Gender = "non-binary"
	GenderOther     Gender = "other"
)

func (g Gender) Valid() bool {
	switch g {
	case GenderMale, GenderFemale, GenderNonBinary, GenderOther:
		return true
	}
	return false
}

type GroupType string

const (
	GroupIndividual GroupType = "individual"
	GroupCouple     GroupType = "couple"
	GroupFamily     GroupType = "family"
	GroupGroup      GroupType = "group"
)

func (g GroupType) Valid() bool {
	switch g {
	case GroupIndividual, GroupCouple, GroupFamily, GroupGroup:
		return true
	}
	return false
}

// StayType is both the user's desired stay and the shelter's maximum stay.
type StayType string

const (
	StayShort  StayType = "short-term"
	StayMedium StayType = "medium-term"
	StayLong   StayType = "long-term"
)

// Rank orders stay types by duration. Unknown values rank 0.
func (s StayType) Rank() int {
	switch s {
	case StayShort:
		return 1
	case StayMedium:
		return 2
	case StayLong:
		return 3
	}
	return 0
}

type GenderPolicy string

const (
	PolicyMenOnly    GenderPolicy = "men-only"
	PolicyWomenOnly  GenderPolicy = "women-only"
	PolicyAllGenders GenderPolicy = "all-genders"
)

func (p GenderPolicy) Valid() bool {
	switch p {
	case PolicyMenOnly, PolicyWomenOnly, PolicyAllGenders:
		return true
	}
	return false
}

type PetPolicy string

const (
	PetsNone  PetPolicy = "no-pets"
	PetsSmall PetPolicy = "small-pets"
	PetsAll   PetPolicy = "all-pets"
)

func (p PetPolicy) Valid() bool {
	switch p {
	case PetsNone, PetsSmall, PetsAll:
		return true
	}
	return false
}

type PetSize string

const (
	PetSizeSmall PetSize = "small"
	PetSizeLarge PetSize = "large"
)

type Coord struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Location holds a coordinate, a free-text locality, or both.
type Location struct {
	Coord    *Coord `json:"coord,omitempty"`
	Locality string `json:"locality,omitempty"`
}

// UserProfile is the intake answers of one person or group.
// Nil preference pointers mean "no preference expressed".
type UserProfile struct {
	Gender                Gender    `json:"gender"`
	DateOfBirth           time.Time `json:"dateOfBirth"`
	GroupType             GroupType `json:"groupType"`
	GroupSize             int       `json:"groupSize"`
	ChildrenCount         int       `json:"childrenCount"`
	DesiredStay           StayType  `json:"desiredStayType"`
	Location              Location  `json:"location"`
	WantsWomenOnly        bool      `json:"wantsWomenOnly"`
	HasPets               bool      `json:"hasPets"`
	PetSize               PetSize   `json:"petSize,omitempty"`
	NeedsWheelchairAccess bool      `json:"needsWheelchairAccess"`

	NeedsSecurity         *bool `json:"needsSecurity,omitempty"`
	HasCurfewTolerance    *bool `json:"hasCurfewTolerance,omitempty"`
	AcceptsCommunalLiving *bool `json:"acceptsCommunalLiving,omitempty"`
	IsSmoker              *bool `json:"isSmoker,omitempty"`
}

// AgeAt returns the age in whole years on day t, or -1 when no date of birth is known.
func (u UserProfile) AgeAt(t time.Time) int {
	if u.DateOfBirth.IsZero() {
		return -1
	}
	dob := u.DateOfBirth.UTC()
	t = t.UTC()
	age := t.Year() - dob.Year()
	if t.Month() < dob.Month() || (t.Month() == dob.Month() && t.Day() < dob.Day()) {
		age--
	}
	return age
}

// ShelterCandidate is a read-only snapshot of one shelter for a matching run.
type ShelterCandidate struct {
	ID                   string       `json:"id"`
	Name                 string       `json:"name"`
	Location             *Coord       `json:"location,omitempty"`
	Locality             string       `json:"locality,omitempty"`
	GenderPolicy         GenderPolicy `json:"genderPolicy"`
	MaxStayLength        StayType     `json:"maxStayLength,omitempty"`
	PetPolicy            PetPolicy    `json:"petPolicy"`
	AcceptsFamilies      bool         `json:"acceptsFamilies"`
	MaxFamilySize        *int         `json:"maxFamilySize,omitempty"`
	AcceptsCouples       bool         `json:"acceptsCouples"`
	MinAge               *int         `json:"minAge,omitempty"`
	MaxAge               *int         `json:"maxAge,omitempty"`
	WheelchairAccessible *bool        `json:"wheelchairAccessible,omitempty"`

	HasSecurity    *bool `json:"hasSecurity,omitempty"`
	HasCurfew      *bool `json:"hasCurfew,omitempty"`
	CommunalLiving *bool `json:"communalLiving,omitempty"`
	SmokingAllowed *bool `json:"smokingAllowed,omitempty"`
}

type MatchDetail struct {
	Criterion string  `json:"criterion"`
	Score     float64 `json:"score"`
	MaxScore  float64 `json:"maxScore"`
}

// ShelterInfo is the denormalized copy of a shelter carried by each result.
type ShelterInfo struct {
	Name                 string       `json:"name"`
	Location             *Coord       `json:"location,omitempty"`
	Locality             string       `json:"locality,omitempty"`
	GenderPolicy         GenderPolicy `json:"genderPolicy"`
	MaxStayLength        StayType     `json:"maxStayLength,omitempty"`
	PetPolicy            PetPolicy    `json:"petPolicy"`
	AcceptsFamilies      bool         `json:"acceptsFamilies"`
	AcceptsCouples       bool         `json:"acceptsCouples"`
	WheelchairAccessible bool         `json:"wheelchairAccessible"`
}

type MatchResult struct {
	ShelterID       string        `json:"shelterId"`
	ShelterInfo     ShelterInfo   `json:"shelterInfo"`
	PercentageMatch int           `json:"percentageMatch"`
	MatchDetails    []MatchDetail `json:"matchDetails"`
}

// MatchEvent summarises one match run for downstream analytics.
type MatchEvent struct {
	RunID      string         `json:"runId"`
	UserID     string         `json:"userId,omitempty"`
	Candidates int            `json:"candidates"`
	Matches    []ShelterScore `json:"matches"`
	At         time.Time      `json:"at"`
}

type ShelterScore struct {
	ShelterID       string `json:"shelterId"`
	PercentageMatch int    `json:"percentageMatch"`
}

func Bool(v bool) *bool { return &v }

func Int(v int) *int { return &v }

// MatchNotice tells shelter staff a user was matched to them. It carries no user data.
type MatchNotice struct {
	RunID           string    `json:"runId"`
	ShelterID       string    `json:"shelterId"`
	PercentageMatch int       `json:"percentageMatch"`
	At              time.Time `json:"at"`
}
