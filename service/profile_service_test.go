package service

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"profile-service/models"
	"profile-service/repository"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockRepository struct {
	mock.Mock
}

func (m *mockRepository) Exists(ctx context.Context, uuid string) (bool, error) {
	args := m.Called(ctx, uuid)
	return args.Bool(0), args.Error(1)
}

func (m *mockRepository) Insert(ctx context.Context, profile models.Profile) (models.Profile, error) {
	args := m.Called(ctx, profile)
	return args.Get(0).(models.Profile), args.Error(1)
}

func (m *mockRepository) Get(ctx context.Context, uuid string) (models.Profile, bool, error) {
	args := m.Called(ctx, uuid)
	return args.Get(0).(models.Profile), args.Bool(1), args.Error(2)
}

func (m *mockRepository) List(ctx context.Context) ([]models.Profile, error) {
	args := m.Called(ctx)
	return args.Get(0).([]models.Profile), args.Error(1)
}

func (m *mockRepository) Update(ctx context.Context, uuid string, updates map[string]*string) (models.Profile, error) {
	args := m.Called(ctx, uuid, updates)
	return args.Get(0).(models.Profile), args.Error(1)
}

type mockImageStore struct {
	mock.Mock
}

func (m *mockImageStore) Upload(ctx context.Context, key, contentType string, body io.Reader, size int64) error {
	args := m.Called(ctx, key, contentType, body, size)
	return args.Error(0)
}

func (m *mockImageStore) SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	args := m.Called(ctx, key, ttl)
	return args.String(0), args.Error(1)
}

func strPtr(s string) *string { return &s }

func newTestService(repo Repository, images ImageStore) *ProfileService {
	return NewProfileService(repo, images, 0, zerolog.Nop())
}

func validInput() CreateProfileInput {
	return CreateProfileInput{
		UUID:        "123e4567-e89b-12d3-a456-426614174000",
		Email:       "test@example.com",
		Role:        "student",
		DisplayName: strPtr("Test User"),
	}
}

func assertValidation(t *testing.T, err error, message string, sentinel error) {
	t.Helper()
	var verr *ValidationError
	require.True(t, errors.As(err, &verr), "expected ValidationError, got %v", err)
	assert.Equal(t, message, verr.Message)
	if sentinel != nil {
		assert.ErrorIs(t, err, sentinel)
	}
}

func TestCreateSuccess(t *testing.T) {
	ctx := context.Background()
	repo := new(mockRepository)
	input := validInput()
	stored := models.Profile{UUID: input.UUID, Email: input.Email, Role: models.RoleStudent, DisplayName: input.DisplayName}

	repo.On("Exists", ctx, input.UUID).Return(false, nil)
	repo.On("Insert", ctx, stored).Return(stored, nil)

	created, err := newTestService(repo, nil).Create(ctx, input)
	require.NoError(t, err)
	assert.Equal(t, stored, created)
	repo.AssertExpectations(t)
}

func TestCreateMissingFields(t *testing.T) {
	repo := new(mockRepository)
	input := CreateProfileInput{Role: "student"}

	_, err := newTestService(repo, nil).Create(context.Background(), input)
	assertValidation(t, err, "Missing required fields: uuid, email", ErrMissingFields)
	repo.AssertNotCalled(t, "Exists", mock.Anything, mock.Anything)
}

func TestCreateMissingFieldsWinsOverInvalidEmail(t *testing.T) {
	input := CreateProfileInput{UUID: "u1", Email: "nope"}

	_, err := newTestService(new(mockRepository), nil).Create(context.Background(), input)
	assertValidation(t, err, "Missing required fields: role", ErrMissingFields)
}

func TestCreateInvalidRole(t *testing.T) {
	input := validInput()
	input.Role = "guest"

	_, err := newTestService(new(mockRepository), nil).Create(context.Background(), input)
	assertValidation(t, err, "Invalid role. Must be one of: student, teacher, admin", ErrInvalidField)
}

func TestCreateInvalidEmail(t *testing.T) {
	input := validInput()
	input.Email = "not-an-email"

	_, err := newTestService(new(mockRepository), nil).Create(context.Background(), input)
	assertValidation(t, err, "Invalid email address", ErrInvalidField)
}

func TestCreateInvalidBirthday(t *testing.T) {
	input := validInput()
	input.Birthday = strPtr("01/02/2000")

	_, err := newTestService(new(mockRepository), nil).Create(context.Background(), input)
	assertValidation(t, err, "Invalid birthday. Expected format YYYY-MM-DD", ErrInvalidField)
}

func TestCreateAlreadyExists(t *testing.T) {
	ctx := context.Background()
	repo := new(mockRepository)
	input := validInput()
	repo.On("Exists", ctx, input.UUID).Return(true, nil)

	_, err := newTestService(repo, nil).Create(ctx, input)
	assertValidation(t, err, "Profile already exists for this user.", ErrProfileExists)
	repo.AssertNotCalled(t, "Insert", mock.Anything, mock.Anything)
}

func TestCreateInsertRace(t *testing.T) {
	ctx := context.Background()
	repo := new(mockRepository)
	input := validInput()
	repo.On("Exists", ctx, input.UUID).Return(false, nil)
	repo.On("Insert", ctx, mock.Anything).Return(models.Profile{}, repository.ErrProfileExists)

	_, err := newTestService(repo, nil).Create(ctx, input)
	assertValidation(t, err, "Profile already exists for this user.", ErrProfileExists)
}

func TestCreateRepositoryError(t *testing.T) {
	ctx := context.Background()
	repo := new(mockRepository)
	input := validInput()
	repo.On("Exists", ctx, input.UUID).Return(false, errors.New("db down"))

	_, err := newTestService(repo, nil).Create(ctx, input)
	require.Error(t, err)
	var verr *ValidationError
	assert.False(t, errors.As(err, &verr))
}

func TestGet(t *testing.T) {
	ctx := context.Background()
	repo := new(mockRepository)
	profile := models.Profile{UUID: "u1", Email: "a@b.com", Role: models.RoleAdmin}
	repo.On("Get", ctx, "u1").Return(profile, true, nil)
	repo.On("Get", ctx, "missing").Return(models.Profile{}, false, nil)

	svc := newTestService(repo, nil)
	got, err := svc.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, profile, got)

	_, err = svc.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrProfileNotFound)
}

func TestList(t *testing.T) {
	ctx := context.Background()
	repo := new(mockRepository)
	repo.On("List", ctx).Return([]models.Profile{{UUID: "u1"}, {UUID: "u2"}}, nil)

	profiles, err := newTestService(repo, nil).List(ctx)
	require.NoError(t, err)
	assert.Len(t, profiles, 2)
}

func TestModifySuccess(t *testing.T) {
	ctx := context.Background()
	repo := new(mockRepository)
	applied := map[string]*string{
		models.FieldDisplayName: strPtr("New Name"),
		models.FieldPhone:       nil,
	}
	updated := models.Profile{UUID: "u1", DisplayName: strPtr("New Name")}
	repo.On("Exists", ctx, "u1").Return(true, nil)
	repo.On("Update", ctx, "u1", applied).Return(updated, nil)

	profile, fields, err := newTestService(repo, nil).Modify(ctx, "u1", map[string]interface{}{
		"display_name": "New Name",
		"phone":        nil,
	})
	require.NoError(t, err)
	assert.Equal(t, updated, profile)
	assert.Equal(t, applied, fields)
	repo.AssertExpectations(t)
}

func TestModifyDropsUnknownFields(t *testing.T) {
	ctx := context.Background()
	repo := new(mockRepository)
	applied := map[string]*string{models.FieldLocation: strPtr("Quito")}
	repo.On("Exists", ctx, "u1").Return(true, nil)
	repo.On("Update", ctx, "u1", applied).Return(models.Profile{UUID: "u1"}, nil)

	_, fields, err := newTestService(repo, nil).Modify(ctx, "u1", map[string]interface{}{
		"location": "Quito",
		"password": "secret",
	})
	require.NoError(t, err)
	assert.Equal(t, applied, fields)
}

func TestModifyProfileNotFound(t *testing.T) {
	ctx := context.Background()
	repo := new(mockRepository)
	repo.On("Exists", ctx, "missing").Return(false, nil)

	_, _, err := newTestService(repo, nil).Modify(ctx, "missing", map[string]interface{}{"phone": "1"})
	assertValidation(t, err, "Profile not found.", ErrProfileNotFound)
}

func TestModifyProtectedFieldOrder(t *testing.T) {
	ctx := context.Background()
	repo := new(mockRepository)
	repo.On("Exists", ctx, "u1").Return(true, nil)

	_, _, err := newTestService(repo, nil).Modify(ctx, "u1", map[string]interface{}{
		"role":  "admin",
		"email": "x@y.com",
		"phone": "1",
	})
	assertValidation(t, err, "Cannot modify protected field: email", ErrProtectedField)
	repo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything)
}

func TestModifyNoValidFields(t *testing.T) {
	ctx := context.Background()
	repo := new(mockRepository)
	repo.On("Exists", ctx, "u1").Return(true, nil)

	_, _, err := newTestService(repo, nil).Modify(ctx, "u1", map[string]interface{}{"password": "x"})
	assertValidation(t, err, "No valid fields to update", ErrNoValidFields)
}

func TestModifyRejectsNonStringValue(t *testing.T) {
	ctx := context.Background()
	repo := new(mockRepository)
	repo.On("Exists", ctx, "u1").Return(true, nil)

	_, _, err := newTestService(repo, nil).Modify(ctx, "u1", map[string]interface{}{"phone": 12345.0})
	assertValidation(t, err, "Field 'phone' must be a string or null", ErrInvalidField)
}

func TestModifyInvalidBirthday(t *testing.T) {
	ctx := context.Background()
	repo := new(mockRepository)
	repo.On("Exists", ctx, "u1").Return(true, nil)

	_, _, err := newTestService(repo, nil).Modify(ctx, "u1", map[string]interface{}{"birthday": "2000-13-45"})
	assertValidation(t, err, "Invalid birthday. Expected format YYYY-MM-DD", ErrInvalidField)
}

func TestModifyRowVanished(t *testing.T) {
	ctx := context.Background()
	repo := new(mockRepository)
	repo.On("Exists", ctx, "u1").Return(true, nil)
	repo.On("Update", ctx, "u1", mock.Anything).Return(models.Profile{}, repository.ErrProfileVanished)

	_, _, err := newTestService(repo, nil).Modify(ctx, "u1", map[string]interface{}{"gender": "f"})
	assertValidation(t, err, "Profile not found after update", ErrProfileNotFound)
}

func TestImageKey(t *testing.T) {
	assert.Equal(t, "u1.png", ImageKey("u1", "avatar.png"))
	assert.Equal(t, "u1.jpeg", ImageKey("u1", "photos/me.final.jpeg"))
	assert.Equal(t, "u1", ImageKey("u1", "noext"))
}

func TestAddImage(t *testing.T) {
	ctx := context.Background()
	images := new(mockImageStore)
	body := strings.NewReader("png-bytes")
	images.On("Upload", ctx, "u1.png", "image/png", body, int64(9)).Return(nil)
	images.On("SignedURL", ctx, "u1.png", DefaultSignedURLTTL).Return("https://signed/u1.png", nil)

	url, err := newTestService(new(mockRepository), images).AddImage(ctx, "u1", Image{
		Filename:    "avatar.png",
		ContentType: "image/png",
		Size:        9,
		Body:        body,
	})
	require.NoError(t, err)
	assert.Equal(t, "https://signed/u1.png", url)
	images.AssertExpectations(t)
}

func TestAddImageUploadFailure(t *testing.T) {
	ctx := context.Background()
	images := new(mockImageStore)
	images.On("Upload", ctx, "u1.jpg", "image/jpeg", mock.Anything, int64(0)).Return(errors.New("bucket gone"))

	_, err := newTestService(new(mockRepository), images).AddImage(ctx, "u1", Image{Filename: "a.jpg", ContentType: "image/jpeg"})
	require.Error(t, err)
	images.AssertNotCalled(t, "SignedURL", mock.Anything, mock.Anything, mock.Anything)
}

func TestAddImageWithoutStore(t *testing.T) {
	_, err := newTestService(new(mockRepository), nil).AddImage(context.Background(), "u1", Image{Filename: "a.png"})
	assert.ErrorIs(t, err, ErrStorageNotConfigured)
}

func TestCustomSignedURLTTL(t *testing.T) {
	svc := NewProfileService(new(mockRepository), nil, 5*time.Minute, zerolog.Nop())
	assert.Equal(t, 5*time.Minute, svc.signedURLTTL)
}
