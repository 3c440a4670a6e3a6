package matcher

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/shelter-matching/internal/models"
)

var fixedNow = time.Date(2026, time.October, 14, 12, 0, 0, 0, time.UTC)

var city = models.Coord{Lat: 51.5074, Lon: -0.1278}

func newTestMatcher(t *testing.T) *Matcher {
	t.Helper()
	cfg := DefaultConfig(DefaultWeights())
	cfg.Now = func() time.Time { return fixedNow }
	m, err := New(cfg)
	require.NoError(t, err)
	return m
}

func user(g models.Gender) models.UserProfile {
	c := city
	return models.UserProfile{
		Gender:      g,
		DateOfBirth: time.Date(1990, time.March, 1, 0, 0, 0, 0, time.UTC),
		GroupType:   models.GroupIndividual,
		GroupSize:   1,
		DesiredStay: models.StayShort,
		Location:    models.Location{Coord: &c},
	}
}

func shelter(id string, policy models.GenderPolicy) models.ShelterCandidate {
	c := city
	return models.ShelterCandidate{
		ID:            id,
		Name:          "Shelter " + id,
		Location:      &c,
		GenderPolicy:  policy,
		MaxStayLength: models.StayLong,
		PetPolicy:     models.PetsNone,
	}
}

func detail(t *testing.T, r *models.MatchResult, name string) models.MatchDetail {
	t.Helper()
	for _, d := range r.MatchDetails {
		if d.Criterion == name {
			return d
		}
	}
	t.Fatalf("criterion %q not in %+v", name, r.MatchDetails)
	return models.MatchDetail{}
}

func TestMenOnlyExcludesEveryoneButMen(t *testing.T) {
	m := newTestMatcher(t)
	s := shelter("m", models.PolicyMenOnly)
	for _, g := range []models.Gender{models.GenderFemale, models.GenderNonBinary, models.GenderOther} {
		res, ok := m.Evaluate(user(g), s)
		assert.False(t, ok, g)
		assert.Nil(t, res, g)
	}
	res, ok := m.Evaluate(user(models.GenderMale), s)
	require.True(t, ok)
	assert.Equal(t, models.MatchDetail{Criterion: CriterionGenderPolicy, Score: 10, MaxScore: 10}, detail(t, res, CriterionGenderPolicy))
}

func TestFemaleAdmittedByWomenOnlyAndAllGenders(t *testing.T) {
	m := newTestMatcher(t)
	for _, p := range []models.GenderPolicy{models.PolicyWomenOnly, models.PolicyAllGenders} {
		_, ok := m.Evaluate(user(models.GenderFemale), shelter("s", p))
		assert.True(t, ok, p)
	}
}

func TestWantsWomenOnlyRestrictsToWomenOnlyShelters(t *testing.T) {
	m := newTestMatcher(t)
	u := user(models.GenderFemale)
	u.WantsWomenOnly = true
	_, ok := m.Evaluate(u, shelter("a", models.PolicyAllGenders))
	assert.False(t, ok)
	_, ok = m.Evaluate(u, shelter("w", models.PolicyWomenOnly))
	assert.True(t, ok)
}

func TestWantsWomenOnlyNeverAdmitsNonFemale(t *testing.T) {
	m := newTestMatcher(t)
	for _, g := range []models.Gender{models.GenderMale, models.GenderNonBinary, models.GenderOther} {
		u := user(g)
		u.WantsWomenOnly = true
		for _, p := range []models.GenderPolicy{models.PolicyWomenOnly, models.PolicyAllGenders, models.PolicyMenOnly} {
			d := m.Explain(u, shelter("s", p))
			assert.False(t, d.Eligible(), "%s vs %s", g, p)
			assert.Equal(t, GateGenderPolicy, d.Gate)
		}
	}
}

func TestNonBinaryAgainstSingleGenderSheltersIsEmpty(t *testing.T) {
	m := newTestMatcher(t)
	shelters := []models.ShelterCandidate{
		shelter("a", models.PolicyMenOnly),
		shelter("b", models.PolicyWomenOnly),
	}
	out, sum := m.Rank(user(models.GenderNonBinary), shelters)
	assert.NotNil(t, out)
	assert.Empty(t, out)
	assert.Equal(t, 2, sum.Excluded[GateGenderPolicy])
}

func TestAgeBounds(t *testing.T) {
	m := newTestMatcher(t)
	u := user(models.GenderMale) // 36 on fixedNow
	s := shelter("s", models.PolicyAllGenders)

	s.MinAge, s.MaxAge = models.Int(18), models.Int(36)
	assert.Equal(t, "", m.Explain(u, s).Gate)

	s.MinAge, s.MaxAge = models.Int(18), models.Int(25)
	assert.Equal(t, GateAgeBounds, m.Explain(u, s).Gate)

	s.MinAge, s.MaxAge = models.Int(40), nil
	assert.Equal(t, GateAgeBounds, m.Explain(u, s).Gate)

	s.MinAge, s.MaxAge = nil, models.Int(99)
	u.DateOfBirth = time.Time{}
	assert.Equal(t, GateAgeBounds, m.Explain(u, s).Gate)
}

func TestGroupCapacity(t *testing.T) {
	m := newTestMatcher(t)
	fam := user(models.GenderFemale)
	fam.GroupType, fam.GroupSize, fam.ChildrenCount = models.GroupFamily, 4, 2

	s := shelter("s", models.PolicyAllGenders)
	assert.Equal(t, GateGroupCapacity, m.Explain(fam, s).Gate)

	s.AcceptsFamilies = true
	assert.True(t, m.Explain(fam, s).Eligible())

	s.MaxFamilySize = models.Int(3)
	assert.Equal(t, GateGroupCapacity, m.Explain(fam, s).Gate)

	couple := user(models.GenderMale)
	couple.GroupType, couple.GroupSize = models.GroupCouple, 2
	assert.Equal(t, GateGroupCapacity, m.Explain(couple, s).Gate)
	s.AcceptsCouples = true
	assert.True(t, m.Explain(couple, s).Eligible())
}

func TestPetOwnersNeverMatchNoPets(t *testing.T) {
	m := newTestMatcher(t)
	u := user(models.GenderMale)
	u.HasPets = true
	for _, g := range []models.GenderPolicy{models.PolicyMenOnly, models.PolicyAllGenders} {
		_, ok := m.Evaluate(u, shelter("s", g))
		assert.False(t, ok)
	}

	s := shelter("s", models.PolicyAllGenders)
	s.PetPolicy = models.PetsSmall
	res, ok := m.Evaluate(u, s)
	require.True(t, ok)
	assert.Equal(t, 2.5, detail(t, res, CriterionPets).Score)

	s.PetPolicy = models.PetsAll
	res, _ = m.Evaluate(u, s)
	assert.Equal(t, 5.0, detail(t, res, CriterionPets).Score)
}

func TestWheelchairUnknownFails(t *testing.T) {
	m := newTestMatcher(t)
	u := user(models.GenderMale)
	u.NeedsWheelchairAccess = true
	s := shelter("s", models.PolicyAllGenders)
	assert.Equal(t, GateWheelchair, m.Explain(u, s).Gate)
	s.WheelchairAccessible = models.Bool(false)
	assert.Equal(t, GateWheelchair, m.Explain(u, s).Gate)
	s.WheelchairAccessible = models.Bool(true)
	assert.True(t, m.Explain(u, s).Eligible())
}

func TestPercentageFromStayAndLocation(t *testing.T) {
	m := newTestMatcher(t)
	u := user(models.GenderMale)
	s := shelter("s", models.PolicyAllGenders)

	res, ok := m.Evaluate(u, s)
	require.True(t, ok)
	assert.Equal(t, 100, res.PercentageMatch)
	assert.Len(t, res.MatchDetails, 3)

	u.DesiredStay = models.StayLong
	s.MaxStayLength = models.StayShort
	res, _ = m.Evaluate(u, s)
	assert.Equal(t, 5.0, detail(t, res, CriterionStayLength).Score)
	assert.Equal(t, 83, res.PercentageMatch)

	s.MaxStayLength = ""
	res, _ = m.Evaluate(u, s)
	assert.Equal(t, 0.0, detail(t, res, CriterionStayLength).Score)
}

func TestUnstatedStayAndLocationAreOmitted(t *testing.T) {
	m := newTestMatcher(t)
	u := user(models.GenderMale)
	u.DesiredStay = ""
	u.Location = models.Location{}
	s := shelter("s", models.PolicyAllGenders)

	res, ok := m.Evaluate(u, s)
	require.True(t, ok)
	assert.Equal(t, 100, res.PercentageMatch)
	require.Len(t, res.MatchDetails, 1)
	assert.Equal(t, CriterionGenderPolicy, res.MatchDetails[0].Criterion)

	u.Location = models.Location{Locality: "Hackney"}
	res, _ = m.Evaluate(u, s)
	assert.Equal(t, 0.0, detail(t, res, CriterionLocation).Score)
	assert.Equal(t, 50, res.PercentageMatch)
}

func TestLocationDecaysWithDistance(t *testing.T) {
	m := newTestMatcher(t)
	u := user(models.GenderMale)
	s := shelter("s", models.PolicyAllGenders)

	// ~55km north: between the 10km and 100km thresholds
	s.Location = &models.Coord{Lat: city.Lat + 0.5, Lon: city.Lon}
	res, _ := m.Evaluate(u, s)
	loc := detail(t, res, CriterionLocation)
	assert.Greater(t, loc.Score, 0.0)
	assert.Less(t, loc.Score, 10.0)

	s.Location = &models.Coord{Lat: city.Lat + 5, Lon: city.Lon}
	res, _ = m.Evaluate(u, s)
	assert.Zero(t, detail(t, res, CriterionLocation).Score)

	u.Location = models.Location{Locality: "Camden"}
	s.Locality = " camden "
	res, _ = m.Evaluate(u, s)
	assert.Equal(t, 10.0, detail(t, res, CriterionLocation).Score)
}

func TestUnstatedPreferencesAreOmitted(t *testing.T) {
	m := newTestMatcher(t)
	s := shelter("s", models.PolicyAllGenders)
	s.HasCurfew = models.Bool(true)
	s.SmokingAllowed = models.Bool(false)

	a, _ := m.Evaluate(user(models.GenderMale), s)
	b, _ := m.Evaluate(user(models.GenderMale), s)
	assert.Equal(t, a.PercentageMatch, b.PercentageMatch)
	for _, d := range a.MatchDetails {
		assert.NotContains(t, []string{CriterionSecurity, CriterionCurfew, CriterionCommunalLiving, CriterionSmoking}, d.Criterion)
	}

	u := user(models.GenderMale)
	u.HasCurfewTolerance = models.Bool(false)
	u.IsSmoker = models.Bool(true)
	c, _ := m.Evaluate(u, s)
	assert.Equal(t, 0.0, detail(t, c, CriterionCurfew).Score)
	assert.Equal(t, 0.0, detail(t, c, CriterionSmoking).Score)
	assert.Less(t, c.PercentageMatch, a.PercentageMatch)
}

func TestPreferenceAgainstUnknownPolicyGetsHalf(t *testing.T) {
	m := newTestMatcher(t)
	u := user(models.GenderMale)
	u.NeedsSecurity = models.Bool(true)
	res, _ := m.Evaluate(u, shelter("s", models.PolicyAllGenders))
	assert.Equal(t, 2.5, detail(t, res, CriterionSecurity).Score)
}

func TestEvaluateIsIdempotent(t *testing.T) {
	m := newTestMatcher(t)
	u := user(models.GenderFemale)
	u.IsSmoker = models.Bool(false)
	s := shelter("s", models.PolicyWomenOnly)
	s.Location = &models.Coord{Lat: city.Lat + 0.3, Lon: city.Lon + 0.2}
	a, _ := m.Evaluate(u, s)
	b, _ := m.Evaluate(u, s)
	assert.Equal(t, a, b)
}

func TestPercentageAlwaysInRange(t *testing.T) {
	m := newTestMatcher(t)
	policies := []models.GenderPolicy{models.PolicyMenOnly, models.PolicyWomenOnly, models.PolicyAllGenders}
	stays := []models.StayType{"", models.StayShort, models.StayMedium, models.StayLong}
	for _, g := range []models.Gender{models.GenderMale, models.GenderFemale, models.GenderOther} {
		for _, p := range policies {
			for _, st := range stays {
				u := user(g)
				u.DesiredStay = st
				u.NeedsSecurity = models.Bool(true)
				s := shelter("s", p)
				s.MaxStayLength = st
				s.Location = &models.Coord{Lat: city.Lat + 0.4, Lon: city.Lon}
				if res, ok := m.Evaluate(u, s); ok {
					assert.GreaterOrEqual(t, res.PercentageMatch, 0)
					assert.LessOrEqual(t, res.PercentageMatch, 100)
				}
			}
		}
	}
}

func TestMatchAllSortedAndStable(t *testing.T) {
	m := newTestMatcher(t)
	u := user(models.GenderMale)
	u.DesiredStay = models.StayLong

	short := shelter("short", models.PolicyAllGenders)
	short.MaxStayLength = models.StayShort
	first := shelter("first", models.PolicyMenOnly)
	excluded := shelter("women", models.PolicyWomenOnly)
	second := shelter("second", models.PolicyAllGenders)

	out := m.MatchAll(u, []models.ShelterCandidate{short, first, excluded, second})
	require.Len(t, out, 3)
	assert.Equal(t, []string{"first", "second", "short"}, ids(out))
}

func TestMalformedCandidateDoesNotAbortBatch(t *testing.T) {
	m := newTestMatcher(t)
	bad := shelter("bad", "")
	anon := shelter("", models.PolicyAllGenders)
	good := shelter("good", models.PolicyAllGenders)
	out, sum := m.Rank(user(models.GenderMale), []models.ShelterCandidate{bad, anon, good})
	assert.Equal(t, []string{"good"}, ids(out))
	assert.Equal(t, []string{"bad", "#1"}, sum.Malformed)
	assert.Equal(t, 2, sum.Excluded[GateMalformed])
	assert.Equal(t, 3, sum.Candidates)
	assert.Equal(t, 1, sum.Eligible)
}

func TestParallelRankMatchesSequential(t *testing.T) {
	seqCfg := DefaultConfig(DefaultWeights())
	seqCfg.Now = func() time.Time { return fixedNow }
	seqCfg.ParallelThreshold = 0
	seq, err := New(seqCfg)
	require.NoError(t, err)

	parCfg := seqCfg
	parCfg.ParallelThreshold = 1
	parCfg.Workers = 4
	par, err := New(parCfg)
	require.NoError(t, err)

	var shelters []models.ShelterCandidate
	for i := 0; i < 200; i++ {
		policy := []models.GenderPolicy{models.PolicyMenOnly, models.PolicyWomenOnly, models.PolicyAllGenders}[i%3]
		s := shelter(fmt.Sprintf("s%03d", i), policy)
		s.Location = &models.Coord{Lat: city.Lat + float64(i%17)*0.1, Lon: city.Lon}
		shelters = append(shelters, s)
	}
	u := user(models.GenderMale)
	a, sa := seq.Rank(u, shelters)
	b, sb := par.Rank(u, shelters)
	assert.Equal(t, a, b)
	assert.Equal(t, sa, sb)
}

func TestNewRejectsBadConfig(t *testing.T) {
	cfg := DefaultConfig(DefaultWeights())
	cfg.Criteria = append(cfg.Criteria, Criterion{Name: CriterionPets, MaxScore: 1, Compare: petsScore})
	cfg.Gates = append(cfg.Gates, Gate{Name: "nil"})
	_, err := New(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate criterion")
	assert.Contains(t, err.Error(), "Allow are required")

	cfg = DefaultConfig(DefaultWeights())
	cfg.Criteria[0].MaxScore = -1
	_, err = New(cfg)
	assert.Error(t, err)
}

func TestCustomCriterionExtendsTable(t *testing.T) {
	cfg := DefaultConfig(DefaultWeights())
	cfg.Now = func() time.Time { return fixedNow }
	cfg.Criteria = append(cfg.Criteria, Criterion{
		Name:     "Named",
		MaxScore: 30,
		Compare:  func(s Subject) (float64, bool) { return 0, s.Shelter.Name != "" },
	})
	m, err := New(cfg)
	require.NoError(t, err)
	res, ok := m.Evaluate(user(models.GenderMale), shelter("s", models.PolicyAllGenders))
	require.True(t, ok)
	assert.Equal(t, 50, res.PercentageMatch)
	assert.Equal(t, "Named", res.MatchDetails[len(res.MatchDetails)-1].Criterion)
}

func ids(rs []models.MatchResult) []string {
	out := make([]string, 0, len(rs))
	for _, r := range rs {
		out = append(out, r.ShelterID)
	}
	return out
}
