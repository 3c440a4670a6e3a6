package storage

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"sort"

	_ "github.com/lib/pq"

	"github.com/example/shelter-matching/internal/models"
)

//go:embed migrations/*.sql
var migrations embed.FS

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	// quick ping
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &PostgresStore{db: db}, nil
}

// Migrate applies the embedded migrations in file-name order. They are idempotent.
func (p *PostgresStore) Migrate(ctx context.Context) ([]string, error) {
	names, err := fs.Glob(migrations, "migrations/*.sql")
	if err != nil {
		return nil, err
	}
	sort.Strings(names)
	for _, n := range names {
		b, err := migrations.ReadFile(n)
		if err != nil {
			return nil, err
		}
		if _, err := p.db.ExecContext(ctx, string(b)); err != nil {
			return nil, fmt.Errorf("migration %s: %w", n, err)
		}
	}
	return names, nil
}

func (p *PostgresStore) Ping(ctx context.Context) error { return p.db.PingContext(ctx) }

func (p *PostgresStore) Close() error { return p.db.Close() }

const shelterColumns = `id, name, lat, lon, locality, gender_policy, max_stay, pet_policy,
	accepts_families, max_family_size, accepts_couples, min_age, max_age,
	wheelchair_accessible, has_security, has_curfew, communal_living, smoking_allowed`

func (p *PostgresStore) ListShelters(ctx context.Context) ([]models.ShelterCandidate, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT `+shelterColumns+` FROM shelters ORDER BY created_at, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.ShelterCandidate
	for rows.Next() {
		s, err := scanShelter(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (p *PostgresStore) GetShelter(ctx context.Context, id string) (models.ShelterCandidate, error) {
	row := p.db.QueryRowContext(ctx, `SELECT `+shelterColumns+` FROM shelters WHERE id = $1`, id)
	s, err := scanShelter(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.ShelterCandidate{}, ErrNotFound
	}
	return s, err
}

func (p *PostgresStore) UpsertShelter(ctx context.Context, s models.ShelterCandidate) error {
	var lat, lon sql.NullFloat64
	if s.Location != nil {
		lat = sql.NullFloat64{Float64: s.Location.Lat, Valid: true}
		lon = sql.NullFloat64{Float64: s.Location.Lon, Valid: true}
	}
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO shelters (`+shelterColumns+`, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18, NOW())
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name, lat = EXCLUDED.lat, lon = EXCLUDED.lon, locality = EXCLUDED.locality,
			gender_policy = EXCLUDED.gender_policy, max_stay = EXCLUDED.max_stay, pet_policy = EXCLUDED.pet_policy,
			accepts_families = EXCLUDED.accepts_families, max_family_size = EXCLUDED.max_family_size,
			accepts_couples = EXCLUDED.accepts_couples, min_age = EXCLUDED.min_age, max_age = EXCLUDED.max_age,
			wheelchair_accessible = EXCLUDED.wheelchair_accessible, has_security = EXCLUDED.has_security,
			has_curfew = EXCLUDED.has_curfew, communal_living = EXCLUDED.communal_living,
			smoking_allowed = EXCLUDED.smoking_allowed, updated_at = NOW()`,
		s.ID, s.Name, lat, lon, s.Locality, string(s.GenderPolicy), nullString(string(s.MaxStayLength)), string(s.PetPolicy),
		s.AcceptsFamilies, nullInt(s.MaxFamilySize), s.AcceptsCouples, nullInt(s.MinAge), nullInt(s.MaxAge),
		nullBool(s.WheelchairAccessible), nullBool(s.HasSecurity), nullBool(s.HasCurfew), nullBool(s.CommunalLiving), nullBool(s.SmokingAllowed))
	return err
}

// Profiles are stored as JSON documents, the shape the intake forms produce.
func (p *PostgresStore) SaveProfile(ctx context.Context, userID string, u models.UserProfile) error {
	doc, err := json.Marshal(u)
	if err != nil {
		return err
	}
	_, err = p.db.ExecContext(ctx, `
		INSERT INTO user_profiles (user_id, doc, updated_at) VALUES ($1, $2, NOW())
		ON CONFLICT (user_id) DO UPDATE SET doc = EXCLUDED.doc, updated_at = NOW()`, userID, doc)
	return err
}

func (p *PostgresStore) LoadProfile(ctx context.Context, userID string) (models.UserProfile, error) {
	var doc []byte
	err := p.db.QueryRowContext(ctx, `SELECT doc FROM user_profiles WHERE user_id = $1`, userID).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return models.UserProfile{}, ErrNotFound
	}
	if err != nil {
		return models.UserProfile{}, err
	}
	var u models.UserProfile
	if err := json.Unmarshal(doc, &u); err != nil {
		return models.UserProfile{}, fmt.Errorf("decode profile %s: %w", userID, err)
	}
	return u, nil
}

type scanner interface {
	Scan(dest ...any) error
}

// scanShelter leaves NULL policy columns empty so the matcher treats the row as malformed.
func scanShelter(r scanner) (models.ShelterCandidate, error) {
	var (
		s                                                      models.ShelterCandidate
		lat, lon                                               sql.NullFloat64
		gender, stay, pets                                     sql.NullString
		famSize, minAge, maxAge                                sql.NullInt64
		wheelchair, security, curfew, communal, smokingAllowed sql.NullBool
	)
	err := r.Scan(&s.ID, &s.Name, &lat, &lon, &s.Locality, &gender, &stay, &pets,
		&s.AcceptsFamilies, &famSize, &s.AcceptsCouples, &minAge, &maxAge,
		&wheelchair, &security, &curfew, &communal, &smokingAllowed)
	if err != nil {
		return models.ShelterCandidate{}, err
	}
	if lat.Valid && lon.Valid {
		s.Location = &models.Coord{Lat: lat.Float64, Lon: lon.Float64}
	}
	s.GenderPolicy = models.GenderPolicy(gender.String)
	s.MaxStayLength = models.StayType(stay.String)
	s.PetPolicy = models.PetPolicy(pets.String)
	s.MaxFamilySize = intPtr(famSize)
	s.MinAge = intPtr(minAge)
	s.MaxAge = intPtr(maxAge)
	s.WheelchairAccessible = boolPtr(wheelchair)
	s.HasSecurity = boolPtr(security)
	s.HasCurfew = boolPtr(curfew)
	s.CommunalLiving = boolPtr(communal)
	s.SmokingAllowed = boolPtr(smokingAllowed)
	return s, nil
}

func nullString(v string) sql.NullString { return sql.NullString{String: v, Valid: v != ""} }

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func nullBool(v *bool) sql.NullBool {
	if v == nil {
		return sql.NullBool{}
	}
	return sql.NullBool{Bool: *v, Valid: true}
}

func intPtr(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	i := int(v.Int64)
	return &i
}

func boolPtr(v sql.NullBool) *bool {
	if !v.Valid {
		return nil
	}
	b := v.Bool
	return &b
}
