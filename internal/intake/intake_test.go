package intake

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/shelter-matching/internal/matcher"
	"github.com/example/shelter-matching/internal/models"
	"github.com/example/shelter-matching/internal/storage"
)

func TestParseFormRequiresGender(t *testing.T) {
	_, err := ParseForm(Form{DateOfBirth: "1990-01-01"})
	var verr *models.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "gender", verr.Field)
	assert.Equal(t, "gender is required", verr.Message)
}

func TestParseFormRejectsBadInput(t *testing.T) {
	lat := 91.0
	lon := 0.0
	cases := map[string]struct {
		form  Form
		field string
	}{
		"bad gender": {Form{Gender: "robot"}, "gender"},
		"bad date":   {Form{Gender: "male", DateOfBirth: "01/02/1990"}, "dateOfBirth"},
		"bad stay":   {Form{Gender: "male", DesiredStayType: "forever"}, "desiredStayType"},
		"bad lat":    {Form{Gender: "male", Location: &LocationForm{Lat: &lat, Lon: &lon}}, "lat"},
		"half coord": {Form{Gender: "male", Location: &LocationForm{Lon: &lon}}, "location"},
		"zero group": {Form{Gender: "male", GroupSize: models.Int(0)}, "groupSize"},
		"no adult":   {Form{Gender: "female", GroupType: "family", GroupSize: models.Int(2), ChildrenCount: 2}, "groupSize"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseForm(tc.form)
			var verr *models.ValidationError
			require.True(t, errors.As(err, &verr), "got %v", err)
			assert.Equal(t, tc.field, verr.Field)
		})
	}
}

func TestParseFormConverts(t *testing.T) {
	lat, lon := 51.5, -0.12
	p, err := ParseForm(Form{
		Gender:          " Non-Binary ",
		DateOfBirth:     "1990-05-06",
		GroupType:       "Family",
		ChildrenCount:   2,
		DesiredStayType: "long-term",
		Location:        &LocationForm{Lat: &lat, Lon: &lon, Locality: " Camden "},
		IsSmoker:        models.Bool(false),
	})
	require.NoError(t, err)
	assert.Equal(t, models.GenderNonBinary, p.Gender)
	assert.Equal(t, models.GroupFamily, p.GroupType)
	assert.Equal(t, 3, p.GroupSize)
	assert.Equal(t, time.Date(1990, time.May, 6, 0, 0, 0, 0, time.UTC), p.DateOfBirth)
	assert.Equal(t, &models.Coord{Lat: lat, Lon: lon}, p.Location.Coord)
	assert.Equal(t, "Camden", p.Location.Locality)
	assert.Nil(t, p.NeedsSecurity)
	require.NotNil(t, p.IsSmoker)

	p, err = ParseForm(Form{Gender: "Other/Unspecified"})
	require.NoError(t, err)
	assert.Equal(t, models.GenderOther, p.Gender)
	assert.Equal(t, models.GroupIndividual, p.GroupType)
	assert.Equal(t, 1, p.GroupSize)
}

type failingShelters struct{ storage.ShelterStore }

func (failingShelters) ListShelters(ctx context.Context) ([]models.ShelterCandidate, error) {
	return nil, errors.New("db down")
}

type recordingPublisher struct{ events []models.MatchEvent }

func (r *recordingPublisher) PublishMatchRun(ctx context.Context, ev models.MatchEvent) error {
	r.events = append(r.events, ev)
	return nil
}

// blockingPublisher holds every publish until release is closed.
type blockingPublisher struct {
	release chan struct{}
	done    chan struct{}
}

func (b *blockingPublisher) PublishMatchRun(ctx context.Context, ev models.MatchEvent) error {
	<-b.release
	close(b.done)
	return nil
}

type recordingNotifier struct{ notices []models.MatchNotice }

func (r *recordingNotifier) Notify(ctx context.Context, n models.MatchNotice) error {
	r.notices = append(r.notices, n)
	return errors.New("no session")
}

func newService(t *testing.T) (*Service, *storage.MemoryStore) {
	t.Helper()
	m, err := matcher.New(matcher.DefaultConfig(matcher.DefaultWeights()))
	require.NoError(t, err)
	store := storage.NewMemoryStore()
	return &Service{Shelters: store, Profiles: store, Matcher: m}, store
}

func seed(t *testing.T, store *storage.MemoryStore, shelters ...models.ShelterCandidate) {
	t.Helper()
	for _, s := range shelters {
		require.NoError(t, store.UpsertShelter(context.Background(), s))
	}
}

func TestMatchFormPublishesAndNotifies(t *testing.T) {
	svc, store := newService(t)
	pub, note := &recordingPublisher{}, &recordingNotifier{}
	svc.Events, svc.Notifier, svc.NotifyTop = pub, note, 1
	seed(t, store,
		models.ShelterCandidate{ID: "men", GenderPolicy: models.PolicyMenOnly, PetPolicy: models.PetsNone},
		models.ShelterCandidate{ID: "all", GenderPolicy: models.PolicyAllGenders, PetPolicy: models.PetsAll},
		models.ShelterCandidate{ID: "all2", GenderPolicy: models.PolicyAllGenders, PetPolicy: models.PetsAll},
	)

	run, err := svc.MatchForm(context.Background(), Form{Gender: "female"})
	require.NoError(t, err)
	require.Len(t, run.Matches, 2)
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, 1, run.Summary.Excluded[matcher.GateGenderPolicy])

	svc.Drain()
	require.Len(t, pub.events, 1)
	assert.Equal(t, run.ID, pub.events[0].RunID)
	assert.Equal(t, 3, pub.events[0].Candidates)
	assert.Len(t, pub.events[0].Matches, 2)

	require.Len(t, note.notices, 1)
	assert.Equal(t, "all", note.notices[0].ShelterID)
}

func TestMatchProfileDoesNotWaitForPublisher(t *testing.T) {
	svc, store := newService(t)
	pub := &blockingPublisher{release: make(chan struct{}), done: make(chan struct{})}
	svc.Events = pub
	seed(t, store, models.ShelterCandidate{ID: "all", GenderPolicy: models.PolicyAllGenders, PetPolicy: models.PetsAll})

	returned := make(chan Run, 1)
	go func() {
		run, err := svc.MatchProfile(context.Background(), "", models.UserProfile{Gender: models.GenderMale, GroupType: models.GroupIndividual, GroupSize: 1})
		assert.NoError(t, err)
		returned <- run
	}()

	select {
	case run := <-returned:
		assert.Len(t, run.Matches, 1)
	case <-time.After(2 * time.Second):
		t.Fatal("MatchProfile blocked on the publisher")
	}
	select {
	case <-pub.done:
		t.Fatal("publish finished before release")
	default:
	}

	close(pub.release)
	svc.Drain()
	<-pub.done
}

func TestMatchProfileStorageFailureIsUnavailable(t *testing.T) {
	svc, _ := newService(t)
	svc.Shelters = failingShelters{}
	_, err := svc.MatchProfile(context.Background(), "", models.UserProfile{Gender: models.GenderMale, GroupSize: 1})
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestMatchUser(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()

	_, err := svc.MatchUser(ctx, "nobody")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	require.NoError(t, store.SaveProfile(ctx, "broken", models.UserProfile{}))
	_, err = svc.MatchUser(ctx, "broken")
	var verr *models.ValidationError
	assert.True(t, errors.As(err, &verr))

	_, err = svc.SaveIntake(ctx, "u1", Form{Gender: "male"})
	require.NoError(t, err)
	run, err := svc.MatchUser(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, run.Matches)
	assert.NotNil(t, run.Matches)
}
