package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"profile-service/models"
	"profile-service/repository"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

const (
	DefaultSignedURLTTL = 15 * time.Minute
	birthdayLayout      = "2006-01-02"
)

type Repository interface {
	Exists(ctx context.Context, uuid string) (bool, error)
	Insert(ctx context.Context, profile models.Profile) (models.Profile, error)
	Get(ctx context.Context, uuid string) (models.Profile, bool, error)
	List(ctx context.Context) ([]models.Profile, error)
	Update(ctx context.Context, uuid string, updates map[string]*string) (models.Profile, error)
}

// ImageStore is a bucket that can hold profile images and hand out
// time-limited read URLs for them.
type ImageStore interface {
	Upload(ctx context.Context, key, contentType string, body io.Reader, size int64) error
	SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error)
}

type CreateProfileInput struct {
	UUID         string  `json:"uuid" validate:"required"`
	Email        string  `json:"email" validate:"required,email"`
	Role         string  `json:"role" validate:"required,oneof=student teacher admin"`
	DisplayName  *string `json:"display_name"`
	Location     *string `json:"location"`
	Birthday     *string `json:"birthday" validate:"omitempty,datetime=2006-01-02"`
	Gender       *string `json:"gender"`
	Description  *string `json:"description"`
	DisplayImage *string `json:"display_image"`
	Phone        *string `json:"phone"`
}

type Image struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

type ProfileService struct {
	repo         Repository
	images       ImageStore
	signedURLTTL time.Duration
	validate     *validator.Validate
	log          zerolog.Logger
}

// NewProfileService wires the service. images may be nil, in which case
// AddImage fails with ErrStorageNotConfigured.
func NewProfileService(repo Repository, images ImageStore, signedURLTTL time.Duration, log zerolog.Logger) *ProfileService {
	if signedURLTTL <= 0 {
		signedURLTTL = DefaultSignedURLTTL
	}
	return &ProfileService{
		repo:         repo,
		images:       images,
		signedURLTTL: signedURLTTL,
		validate:     newValidator(),
		log:          log.With().Str("component", "profile_service").Logger(),
	}
}

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func (s *ProfileService) Create(ctx context.Context, input CreateProfileInput) (models.Profile, error) {
	if err := s.validateCreate(input); err != nil {
		s.log.Info().Str("uuid", input.UUID).Str("reason", err.Error()).Msg("profile rejected")
		return models.Profile{}, err
	}

	exists, err := s.repo.Exists(ctx, input.UUID)
	if err != nil {
		return models.Profile{}, err
	}
	if exists {
		s.log.Info().Str("uuid", input.UUID).Msg("profile already exists")
		return models.Profile{}, invalid("Profile already exists for this user.", ErrProfileExists)
	}

	created, err := s.repo.Insert(ctx, models.Profile{
		UUID:         input.UUID,
		Email:        input.Email,
		Role:         models.Role(input.Role),
		DisplayName:  input.DisplayName,
		Location:     input.Location,
		Birthday:     input.Birthday,
		Gender:       input.Gender,
		Description:  input.Description,
		DisplayImage: input.DisplayImage,
		Phone:        input.Phone,
	})
	if errors.Is(err, repository.ErrProfileExists) {
		return models.Profile{}, invalid("Profile already exists for this user.", ErrProfileExists)
	}
	if err != nil {
		return models.Profile{}, err
	}

	s.log.Info().Str("uuid", created.UUID).Str("role", string(created.Role)).Msg("profile created")
	return created, nil
}

// validateCreate reports every missing required field at once; other rule
// violations are only checked once all required fields are present.
func (s *ProfileService) validateCreate(input CreateProfileInput) error {
	err := s.validate.Struct(input)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}

	var missing []string
	var first *ValidationError
	for _, fe := range fieldErrs {
		if fe.Tag() == "required" {
			missing = append(missing, fe.Field())
			continue
		}
		if first == nil {
			first = fieldError(fe)
		}
	}
	if len(missing) > 0 {
		return invalid("Missing required fields: "+strings.Join(missing, ", "), ErrMissingFields)
	}
	return first
}

func fieldError(fe validator.FieldError) *ValidationError {
	switch fe.Field() {
	case models.FieldRole:
		return invalidRole()
	case models.FieldEmail:
		return invalid("Invalid email address", ErrInvalidField)
	case models.FieldBirthday:
		return invalidBirthday()
	default:
		return invalid(fmt.Sprintf("Invalid value for field '%s'", fe.Field()), ErrInvalidField)
	}
}

func invalidRole() *ValidationError {
	roles := make([]string, 0, len(models.ValidRoles))
	for _, role := range models.ValidRoles {
		roles = append(roles, string(role))
	}
	return invalid("Invalid role. Must be one of: "+strings.Join(roles, ", "), ErrInvalidField)
}

func invalidBirthday() *ValidationError {
	return invalid("Invalid birthday. Expected format YYYY-MM-DD", ErrInvalidField)
}

func (s *ProfileService) Get(ctx context.Context, uuid string) (models.Profile, error) {
	profile, found, err := s.repo.Get(ctx, uuid)
	if err != nil {
		return models.Profile{}, err
	}
	if !found {
		return models.Profile{}, ErrProfileNotFound
	}
	return profile, nil
}

func (s *ProfileService) List(ctx context.Context) ([]models.Profile, error) {
	return s.repo.List(ctx)
}

// Modify applies the allow-listed subset of updates and returns the updated
// profile together with the update map that was actually applied. Values must
// be strings, or null to clear a field.
func (s *ProfileService) Modify(ctx context.Context, uuid string, updates map[string]interface{}) (models.Profile, map[string]*string, error) {
	exists, err := s.repo.Exists(ctx, uuid)
	if err != nil {
		return models.Profile{}, nil, err
	}
	if !exists {
		s.log.Warn().Str("uuid", uuid).Msg("profile not found")
		return models.Profile{}, nil, invalid("Profile not found.", ErrProfileNotFound)
	}

	for _, field := range models.ProtectedFields {
		if _, ok := updates[field]; ok {
			s.log.Warn().Str("uuid", uuid).Str("field", field).Msg("cannot modify protected field")
			return models.Profile{}, nil, invalid("Cannot modify protected field: "+field, ErrProtectedField)
		}
	}

	applied, err := s.filterUpdates(updates)
	if err != nil {
		return models.Profile{}, nil, err
	}
	if len(applied) == 0 {
		s.log.Warn().Str("uuid", uuid).Msg("no valid fields to update")
		return models.Profile{}, nil, invalid("No valid fields to update", ErrNoValidFields)
	}

	updated, err := s.repo.Update(ctx, uuid, applied)
	if errors.Is(err, repository.ErrProfileVanished) {
		s.log.Warn().Str("uuid", uuid).Msg("profile deleted during update")
		return models.Profile{}, nil, invalid("Profile not found after update", ErrProfileNotFound)
	}
	if err != nil {
		return models.Profile{}, nil, err
	}

	s.log.Info().Str("uuid", uuid).Int("fields", len(applied)).Msg("profile updated")
	return updated, applied, nil
}

func (s *ProfileService) filterUpdates(updates map[string]interface{}) (map[string]*string, error) {
	applied := make(map[string]*string)
	for _, field := range models.MutableFields {
		raw, ok := updates[field]
		if !ok {
			continue
		}
		switch value := raw.(type) {
		case nil:
			applied[field] = nil
		case string:
			if field == models.FieldBirthday && value != "" {
				if err := s.validate.Var(value, "datetime="+birthdayLayout); err != nil {
					return nil, invalidBirthday()
				}
			}
			applied[field] = &value
		default:
			return nil, invalid(fmt.Sprintf("Field '%s' must be a string or null", field), ErrInvalidField)
		}
	}
	return applied, nil
}

// ImageKey derives the object key for a profile image: the profile uuid
// followed by the uploaded file's extension.
func ImageKey(uuid, filename string) string {
	return uuid + filepath.Ext(filename)
}

// AddImage uploads the image and returns a signed read URL for it.
func (s *ProfileService) AddImage(ctx context.Context, uuid string, image Image) (string, error) {
	if s.images == nil {
		return "", ErrStorageNotConfigured
	}

	key := ImageKey(uuid, image.Filename)
	if err := s.images.Upload(ctx, key, image.ContentType, image.Body, image.Size); err != nil {
		return "", fmt.Errorf("upload image %s: %w", key, err)
	}

	url, err := s.images.SignedURL(ctx, key, s.signedURLTTL)
	if err != nil {
		return "", fmt.Errorf("sign image url %s: %w", key, err)
	}

	s.log.Info().Str("uuid", uuid).Str("key", key).Msg("profile image uploaded")
	return url, nil
}
