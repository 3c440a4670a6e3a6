package intake

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/example/shelter-matching/internal/matcher"
	"github.com/example/shelter-matching/internal/models"
	"github.com/example/shelter-matching/internal/observability"
	"github.com/example/shelter-matching/internal/storage"
)

// ErrUnavailable wraps collaborator (storage) failures. Retries belong to the caller.
var ErrUnavailable = errors.New("service unavailable")

type Publisher interface {
	PublishMatchRun(ctx context.Context, ev models.MatchEvent) error
}

type Notifier interface {
	Notify(ctx context.Context, n models.MatchNotice) error
}

type Service struct {
	Shelters storage.ShelterStore
	Profiles storage.ProfileStore
	Matcher  *matcher.Matcher
	Events   Publisher // optional
	Notifier Notifier  // optional
	Logger   *slog.Logger

	// NotifyTop is how many of the best matches get a shelter notice.
	NotifyTop int

	pending sync.WaitGroup
}

type Run struct {
	ID      string
	Matches []models.MatchResult
	Summary matcher.Summary
}

func (s *Service) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.Default()
	}
	return s.Logger
}

// MatchForm validates a submitted form and matches it without storing it.
func (s *Service) MatchForm(ctx context.Context, f Form) (Run, error) {
	p, err := ParseForm(f)
	if err != nil {
		return Run{}, err
	}
	return s.MatchProfile(ctx, "", p)
}

// SaveIntake validates and stores a user's intake answers.
func (s *Service) SaveIntake(ctx context.Context, userID string, f Form) (models.UserProfile, error) {
	p, err := ParseForm(f)
	if err != nil {
		return models.UserProfile{}, err
	}
	if err := s.Profiles.SaveProfile(ctx, userID, p); err != nil {
		return models.UserProfile{}, fmt.Errorf("%w: save profile: %w", ErrUnavailable, err)
	}
	s.logger().Info("intake saved", "user_id", userID)
	return p, nil
}

// MatchUser matches a stored profile. Unknown users yield storage.ErrNotFound.
func (s *Service) MatchUser(ctx context.Context, userID string) (Run, error) {
	p, err := s.Profiles.LoadProfile(ctx, userID)
	if errors.Is(err, storage.ErrNotFound) {
		return Run{}, err
	}
	if err != nil {
		return Run{}, fmt.Errorf("%w: load profile: %w", ErrUnavailable, err)
	}
	return s.MatchProfile(ctx, userID, p)
}

// MatchProfile ranks the full shelter set for one profile.
func (s *Service) MatchProfile(ctx context.Context, userID string, p models.UserProfile) (Run, error) {
	if err := p.Validate(); err != nil {
		return Run{}, err
	}
	start := time.Now()
	shelters, err := s.Shelters.ListShelters(ctx)
	if err != nil {
		return Run{}, fmt.Errorf("%w: list shelters: %w", ErrUnavailable, err)
	}
	matches, sum := s.Matcher.Rank(p, shelters)
	run := Run{ID: uuid.NewString(), Matches: matches, Summary: sum}

	observability.MatchRunsTotal.Inc()
	observability.MatchLatency.Observe(time.Since(start).Seconds())
	observability.MatchesReturned.Observe(float64(len(matches)))
	for gate, n := range sum.Excluded {
		observability.CandidatesExcluded.WithLabelValues(gate).Add(float64(n))
	}

	s.logger().Info("match run",
		"run_id", run.ID,
		"user_id", userID,
		"candidates", sum.Candidates,
		"eligible", sum.Eligible,
		"malformed", len(sum.Malformed),
	)

	if s.Events != nil || s.Notifier != nil {
		bg := context.WithoutCancel(ctx)
		s.pending.Add(1)
		go func() {
			defer s.pending.Done()
			s.publish(bg, userID, run)
			s.notify(bg, run)
		}()
	}
	return run, nil
}

// Drain blocks until every publish and notify started by MatchProfile is done.
// Call it once no more matches can start.
func (s *Service) Drain() { s.pending.Wait() }

func (s *Service) publish(ctx context.Context, userID string, run Run) {
	if s.Events == nil {
		return
	}
	ev := models.MatchEvent{
		RunID:      run.ID,
		UserID:     userID,
		Candidates: run.Summary.Candidates,
		Matches:    make([]models.ShelterScore, 0, len(run.Matches)),
		At:         time.Now().UTC(),
	}
	for _, m := range run.Matches {
		ev.Matches = append(ev.Matches, models.ShelterScore{ShelterID: m.ShelterID, PercentageMatch: m.PercentageMatch})
	}
	if err := s.Events.PublishMatchRun(ctx, ev); err != nil {
		s.logger().Warn("publish match run failed", "run_id", run.ID, "error", err)
	}
}

func (s *Service) notify(ctx context.Context, run Run) {
	if s.Notifier == nil || s.NotifyTop <= 0 {
		return
	}
	now := time.Now().UTC()
	for i, m := range run.Matches {
		if i == s.NotifyTop {
			break
		}
		n := models.MatchNotice{RunID: run.ID, ShelterID: m.ShelterID, PercentageMatch: m.PercentageMatch, At: now}
		if err := s.Notifier.Notify(ctx, n); err != nil {
			s.logger().Debug("shelter notice not delivered", "shelter_id", m.ShelterID, "error", err)
		}
	}
}
