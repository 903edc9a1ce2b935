package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"profile-service/models"

	"github.com/lib/pq"
)

var (
	// ErrProfileVanished is returned by Update when no row matched, which
	// happens if the profile was deleted after the caller checked it existed.
	ErrProfileVanished = errors.New("profile not found after update")
	ErrProfileExists   = errors.New("profile already exists")
	ErrNoUpdates       = errors.New("no columns to update")
)

const uniqueViolation = "23505"

var (
	columnList   = strings.Join(models.Columns, ", ")
	placeholders = placeholderList(len(models.Columns))

	existsQuery = "SELECT 1 FROM profiles WHERE uuid = $1 LIMIT 1"
	insertQuery = "INSERT INTO profiles (" + columnList + ") VALUES (" + placeholders + ") RETURNING " + columnList
	getQuery    = "SELECT " + columnList + " FROM profiles WHERE uuid = $1"
	listQuery   = "SELECT " + columnList + " FROM profiles ORDER BY created_at, uuid"
)

type ProfileRepository struct {
	db *sql.DB
}

func NewProfileRepository(db *sql.DB) *ProfileRepository {
	return &ProfileRepository{db: db}
}

func (r *ProfileRepository) Exists(ctx context.Context, uuid string) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx, existsQuery, uuid).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check profile %s: %w", uuid, err)
	}
	return true, nil
}

// Insert stores every column; unset optional fields are written as NULL.
func (r *ProfileRepository) Insert(ctx context.Context, profile models.Profile) (models.Profile, error) {
	args := []interface{}{profile.UUID, profile.Email, string(profile.Role)}
	for _, column := range models.MutableFields {
		args = append(args, *profile.Field(column))
	}

	created, err := scanProfile(r.db.QueryRowContext(ctx, insertQuery, args...))
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return models.Profile{}, ErrProfileExists
		}
		return models.Profile{}, fmt.Errorf("insert profile %s: %w", profile.UUID, err)
	}
	return created, nil
}

// Get returns found=false, not an error, when no row matches.
func (r *ProfileRepository) Get(ctx context.Context, uuid string) (models.Profile, bool, error) {
	profile, err := scanProfile(r.db.QueryRowContext(ctx, getQuery, uuid))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Profile{}, false, nil
	}
	if err != nil {
		return models.Profile{}, false, fmt.Errorf("get profile %s: %w", uuid, err)
	}
	return profile, true, nil
}

func (r *ProfileRepository) List(ctx context.Context) ([]models.Profile, error) {
	rows, err := r.db.QueryContext(ctx, listQuery)
	if err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	defer rows.Close()

	profiles := []models.Profile{}
	for rows.Next() {
		profile, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("scan profile: %w", err)
		}
		profiles = append(profiles, profile)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	return profiles, nil
}

// Update sets the given mutable columns and stamps updated_at. Keys outside
// models.MutableFields are ignored; column names in the statement only ever
// come from that list.
func (r *ProfileRepository) Update(ctx context.Context, uuid string, updates map[string]*string) (models.Profile, error) {
	query, args, err := buildUpdate(uuid, updates)
	if err != nil {
		return models.Profile{}, err
	}

	updated, err := scanProfile(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Profile{}, ErrProfileVanished
	}
	if err != nil {
		return models.Profile{}, fmt.Errorf("update profile %s: %w", uuid, err)
	}
	return updated, nil
}

func buildUpdate(uuid string, updates map[string]*string) (string, []interface{}, error) {
	sets := make([]string, 0, len(updates))
	args := make([]interface{}, 0, len(updates)+1)
	for _, column := range models.MutableFields {
		value, ok := updates[column]
		if !ok {
			continue
		}
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if len(sets) == 0 {
		return "", nil, ErrNoUpdates
	}
	args = append(args, uuid)

	query := fmt.Sprintf("UPDATE profiles SET %s, updated_at = NOW() WHERE uuid = $%d RETURNING %s",
		strings.Join(sets, ", "), len(args), columnList)
	return query, args, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanProfile(row scanner) (models.Profile, error) {
	var p models.Profile
	err := row.Scan(
		&p.UUID,
		&p.Email,
		&p.Role,
		&p.DisplayName,
		&p.Location,
		&p.Birthday,
		&p.Gender,
		&p.Description,
		&p.DisplayImage,
		&p.Phone,
	)
	return p, err
}

func placeholderList(n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = fmt.Sprintf("$%d", i+1)
	}
	return strings.Join(parts, ", ")
}
