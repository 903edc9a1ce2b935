package handlers

import (
	"context"
	"errors"
	"net/http"

	"profile-service/middleware"
	"profile-service/models"
	"profile-service/service"

	"github.com/gorilla/mux"
)

const maxImageSize = 10 << 20

type ProfileService interface {
	Create(ctx context.Context, input service.CreateProfileInput) (models.Profile, error)
	Get(ctx context.Context, uuid string) (models.Profile, error)
	List(ctx context.Context) ([]models.Profile, error)
	Modify(ctx context.Context, uuid string, updates map[string]interface{}) (models.Profile, map[string]*string, error)
	AddImage(ctx context.Context, uuid string, image service.Image) (string, error)
}

type ProfileHandler struct {
	profiles ProfileService
}

func NewProfileHandler(profiles ProfileService) *ProfileHandler {
	return &ProfileHandler{profiles: profiles}
}

func (h *ProfileHandler) CreateHandler(w http.ResponseWriter, r *http.Request) error {
	var input service.CreateProfileInput
	if err := decodeJSON(r, &input); err != nil {
		return err
	}

	created, err := h.profiles.Create(r.Context(), input)
	if err != nil {
		return serviceError(err, input.UUID)
	}

	return writeJSON(w, http.StatusCreated, JSONResponse{
		"message": "Profile created successfully",
		"data":    created.PrivateView(),
	})
}

func (h *ProfileHandler) ListHandler(w http.ResponseWriter, r *http.Request) error {
	profiles, err := h.profiles.List(r.Context())
	if err != nil {
		return internalError(err)
	}

	views := make([]map[string]interface{}, 0, len(profiles))
	for _, profile := range profiles {
		views = append(views, profile.PrivateView())
	}
	return writeJSON(w, http.StatusOK, JSONResponse{"data": views})
}

func (h *ProfileHandler) GetHandler(w http.ResponseWriter, r *http.Request) error {
	return h.get(w, r, false)
}

func (h *ProfileHandler) GetPublicHandler(w http.ResponseWriter, r *http.Request) error {
	return h.get(w, r, true)
}

func (h *ProfileHandler) get(w http.ResponseWriter, r *http.Request, public bool) error {
	uuid := mux.Vars(r)["uuid"]
	profile, err := h.profiles.Get(r.Context(), uuid)
	if err != nil {
		return serviceError(err, uuid)
	}

	view := profile.PrivateView()
	if public {
		view = profile.PublicView()
	}
	return writeJSON(w, http.StatusOK, JSONResponse{"data": view})
}

type modifyRequest struct {
	UUID    string                 `json:"uuid"`
	Updates map[string]interface{} `json:"updates"`
}

func (h *ProfileHandler) ModifyHandler(w http.ResponseWriter, r *http.Request) error {
	var req modifyRequest
	if err := decodeJSON(r, &req); err != nil {
		return err
	}
	if req.UUID == "" || len(req.Updates) == 0 {
		return middleware.NewAppError(http.StatusBadRequest, "UUID and updates are required", nil)
	}

	updated, applied, err := h.profiles.Modify(r.Context(), req.UUID, req.Updates)
	if err != nil {
		return serviceError(err, req.UUID)
	}

	return writeJSON(w, http.StatusOK, JSONResponse{
		"message": "Profile updated successfully",
		"data": JSONResponse{
			"uuid":           updated.UUID,
			"updated_fields": applied,
		},
	})
}

// UploadHandler accepts a multipart form with a uuid field and an image file.
func (h *ProfileHandler) UploadHandler(w http.ResponseWriter, r *http.Request) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxImageSize+(1<<20))
	if err := r.ParseMultipartForm(maxImageSize); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return middleware.NewAppError(http.StatusBadRequest, "Image exceeds the 10 MiB limit", err)
		}
		return middleware.NewAppError(http.StatusBadRequest, "Missing image or UUID", err)
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	file, header, err := r.FormFile("image")
	if err != nil {
		return middleware.NewAppError(http.StatusBadRequest, "Missing image or UUID", err)
	}
	defer file.Close()

	uuid := r.FormValue("uuid")
	if uuid == "" {
		return middleware.NewAppError(http.StatusBadRequest, "Missing image or UUID", nil)
	}

	if header.Size > maxImageSize {
		return middleware.NewAppError(http.StatusBadRequest, "Image exceeds the 10 MiB limit", nil)
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	url, err := h.profiles.AddImage(r.Context(), uuid, service.Image{
		Filename:    header.Filename,
		ContentType: contentType,
		Size:        header.Size,
		Body:        file,
	})
	if err != nil {
		return serviceError(err, uuid)
	}

	return writeJSON(w, http.StatusOK, JSONResponse{
		"message": "Image uploaded successfully",
		"uuid":    uuid,
		"url":     url,
	})
}
