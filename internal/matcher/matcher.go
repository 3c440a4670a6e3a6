package matcher

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"runtime"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/example/shelter-matching/internal/models"
)

// Config is everything a Matcher needs. Zero-valued fields fall back to defaults
// in New, except Gates and Criteria which must be set (see DefaultConfig).
type Config struct {
	Gates    []Gate
	Criteria []Criterion

	// Workers bounds concurrent evaluations once a batch reaches ParallelThreshold.
	Workers           int
	ParallelThreshold int

	Now    func() time.Time
	Logger *slog.Logger
}

func DefaultConfig(w Weights) Config {
	return Config{
		Gates:             DefaultGates(),
		Criteria:          DefaultCriteria(w),
		Workers:           runtime.GOMAXPROCS(0),
		ParallelThreshold: 64,
		Now:               time.Now,
	}
}

// Matcher ranks shelters for a user. It holds no mutable state and is safe
// for concurrent use.
type Matcher struct {
	gates             []Gate
	criteria          []Criterion
	workers           int
	parallelThreshold int
	now               func() time.Time
	logger            *slog.Logger
}

func New(cfg Config) (*Matcher, error) {
	var errs []error
	seen := make(map[string]bool)
	for i, g := range cfg.Gates {
		if g.Name == "" || g.Allow == nil {
			errs = append(errs, fmt.Errorf("gate %d: name and Allow are required", i))
		}
		if seen["gate:"+g.Name] {
			errs = append(errs, fmt.Errorf("duplicate gate %q", g.Name))
		}
		seen["gate:"+g.Name] = true
	}
	for i, c := range cfg.Criteria {
		if c.Name == "" || c.Compare == nil {
			errs = append(errs, fmt.Errorf("criterion %d: name and Compare are required", i))
		}
		if c.MaxScore < 0 || math.IsNaN(c.MaxScore) || math.IsInf(c.MaxScore, 0) {
			errs = append(errs, fmt.Errorf("criterion %q: max score must be a non-negative number", c.Name))
		}
		if seen["criterion:"+c.Name] {
			errs = append(errs, fmt.Errorf("duplicate criterion %q", c.Name))
		}
		seen["criterion:"+c.Name] = true
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}

	m := &Matcher{
		gates:             append([]Gate(nil), cfg.Gates...),
		criteria:          append([]Criterion(nil), cfg.Criteria...),
		workers:           cfg.Workers,
		parallelThreshold: cfg.ParallelThreshold,
		now:               cfg.Now,
		logger:            cfg.Logger,
	}
	if m.workers <= 0 {
		m.workers = 1
	}
	if m.now == nil {
		m.now = time.Now
	}
	if m.logger == nil {
		m.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return m, nil
}

// Decision is the full outcome for one candidate. Result is nil when the
// shelter was excluded; Gate then names the failing gate.
type Decision struct {
	ShelterID string
	Result    *models.MatchResult
	Gate      string
	Err       error
}

func (d Decision) Eligible() bool { return d.Result != nil }

// Evaluate scores one shelter. ok is false when the shelter is ineligible.
func (m *Matcher) Evaluate(user models.UserProfile, shelter models.ShelterCandidate) (*models.MatchResult, bool) {
	d := m.decide(&user, &shelter, m.now())
	return d.Result, d.Eligible()
}

// Explain is Evaluate with the exclusion reason kept.
func (m *Matcher) Explain(user models.UserProfile, shelter models.ShelterCandidate) Decision {
	return m.decide(&user, &shelter, m.now())
}

func (m *Matcher) decide(user *models.UserProfile, shelter *models.ShelterCandidate, now time.Time) Decision {
	d := Decision{ShelterID: shelter.ID}
	if err := shelter.Validate(); err != nil {
		d.Gate, d.Err = GateMalformed, err
		return d
	}
	subj := Subject{User: user, Shelter: shelter, Now: now}
	for _, g := range m.gates {
		if !g.Allow(subj) {
			d.Gate = g.Name
			return d
		}
	}
	d.Result = m.score(subj)
	return d
}

func (m *Matcher) score(subj Subject) *models.MatchResult {
	details := make([]models.MatchDetail, 0, len(m.criteria))
	var total, possible float64
	for _, c := range m.criteria {
		ratio, applicable := c.Compare(subj)
		if !applicable {
			continue
		}
		ratio = math.Max(0, math.Min(1, ratio))
		s := ratio * c.MaxScore
		total += s
		possible += c.MaxScore
		details = append(details, models.MatchDetail{Criterion: c.Name, Score: round2(s), MaxScore: c.MaxScore})
	}
	return &models.MatchResult{
		ShelterID:       subj.Shelter.ID,
		ShelterInfo:     subj.Shelter.Info(),
		PercentageMatch: percentage(total, possible),
		MatchDetails:    details,
	}
}

// percentage is 100 when nothing was scorable: the shelter passed every gate.
func percentage(total, possible float64) int {
	if possible <= 0 {
		return 100
	}
	p := int(math.Round(100 * total / possible))
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }

// Summary describes a batch: how many candidates were seen and why the rest were dropped.
type Summary struct {
	Candidates int
	Eligible   int
	Excluded   map[string]int
	Malformed  []string
}

// MatchAll returns the eligible shelters sorted by percentage, best first.
func (m *Matcher) MatchAll(user models.UserProfile, shelters []models.ShelterCandidate) []models.MatchResult {
	out, _ := m.Rank(user, shelters)
	return out
}

// Rank is MatchAll plus a Summary. Equal percentages keep candidate order.
func (m *Matcher) Rank(user models.UserProfile, shelters []models.ShelterCandidate) ([]models.MatchResult, Summary) {
	now := m.now()
	decisions := make([]Decision, len(shelters))

	if len(shelters) >= m.parallelThreshold && m.parallelThreshold > 0 && m.workers > 1 {
		var g errgroup.Group
		g.SetLimit(m.workers)
		for i := range shelters {
			i := i
			g.Go(func() error {
				decisions[i] = m.decide(&user, &shelters[i], now)
				return nil
			})
		}
		_ = g.Wait()
	} else {
		for i := range shelters {
			decisions[i] = m.decide(&user, &shelters[i], now)
		}
	}

	sum := Summary{Candidates: len(shelters), Excluded: make(map[string]int)}
	out := make([]models.MatchResult, 0, len(shelters))
	for i, d := range decisions {
		if d.Eligible() {
			out = append(out, *d.Result)
			continue
		}
		sum.Excluded[d.Gate]++
		if d.Gate == GateMalformed {
			id := d.ShelterID
			if id == "" {
				id = fmt.Sprintf("#%d", i)
			}
			sum.Malformed = append(sum.Malformed, id)
			m.logger.Warn("skipping malformed shelter", "shelter_id", id, "error", d.Err)
		}
	}
	sum.Eligible = len(out)

	sort.SliceStable(out, func(i, j int) bool { return out[i].PercentageMatch > out[j].PercentageMatch })
	return out, sum
}
