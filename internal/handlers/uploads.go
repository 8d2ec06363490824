package handlers

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/ukydev/fleet-dispatch/internal/apperrors"
	"github.com/ukydev/fleet-dispatch/internal/mission"
	"github.com/ukydev/fleet-dispatch/internal/models"
	"github.com/ukydev/fleet-dispatch/internal/storage"
)

var uploadExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
}

// UploadHandler stores the photos drivers attach to missions
type UploadHandler struct {
	store    storage.Store
	missions *mission.Service
	ttl      time.Duration
	now      func() time.Time
}

// NewUploadHandler creates a new upload handler. ttl bounds signed upload urls.
func NewUploadHandler(store storage.Store, missions *mission.Service, ttl time.Duration) *UploadHandler {
	return &UploadHandler{store: store, missions: missions, ttl: ttl, now: time.Now}
}

// Upload accepts a multipart "file" field, normalizes the image and returns
// the stored reference to put in mission metadata
func (h *UploadHandler) Upload(w http.ResponseWriter, r *http.Request) {
	const op = "uploads.Upload"
	session, err := driverSession(r, op)
	if err != nil {
		writeError(w, r, err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, storage.MaxImageBytes+1<<20)
	file, _, err := r.FormFile("file")
	if err != nil {
		writeError(w, r, apperrors.Validation(op, "multipart field file is required"))
		return
	}
	defer file.Close()

	prefix, err := h.prefix(r.Context(), r.FormValue("mission_id"), session, op)
	if err != nil {
		writeError(w, r, err)
		return
	}

	data, contentType, err := storage.NormalizeImage(file)
	switch {
	case errors.Is(err, storage.ErrImageTooLarge), errors.Is(err, storage.ErrUnsupportedType):
		writeError(w, r, apperrors.Validation(op, err.Error()))
		return
	case err != nil:
		writeError(w, r, err)
		return
	}

	key := storage.NewKey(prefix, uploadExtensions[contentType], h.now())
	obj, err := h.store.Save(r.Context(), key, contentType, bytes.NewReader(data))
	if err != nil {
		writeError(w, r, apperrors.Upstream(op, err))
		return
	}
	writeJSON(w, http.StatusCreated, obj)
}

// Presign returns a signed url the app can PUT a photo to directly
func (h *UploadHandler) Presign(w http.ResponseWriter, r *http.Request) {
	const op = "uploads.Presign"
	session, err := driverSession(r, op)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var req struct {
		ContentType string `json:"content_type" validate:"required,oneof=image/jpeg image/png"`
		MissionID   int64  `json:"mission_id" validate:"gte=0"`
	}
	if err := decodeJSON(w, r, op, &req); err != nil {
		writeError(w, r, err)
		return
	}

	missionID := ""
	if req.MissionID > 0 {
		missionID = strconv.FormatInt(req.MissionID, 10)
	}
	prefix, err := h.prefix(r.Context(), missionID, session, op)
	if err != nil {
		writeError(w, r, err)
		return
	}

	key := storage.NewKey(prefix, uploadExtensions[req.ContentType], h.now())
	upload, err := h.store.SignedUploadURL(r.Context(), key, req.ContentType, h.ttl)
	if errors.Is(err, storage.ErrPresignUnsupported) {
		writeError(w, r, apperrors.Validation(op, err.Error()))
		return
	}
	if err != nil {
		writeError(w, r, apperrors.Upstream(op, err))
		return
	}
	writeJSON(w, http.StatusOK, upload)
}

// prefix files photos under their mission, or under the driver when no
// mission is given. Only the driver the mission is assigned to may file under it.
func (h *UploadHandler) prefix(ctx context.Context, missionID string, session models.DriverSession, op string) (string, error) {
	if missionID == "" {
		return fmt.Sprintf("drivers/%d", session.DriverID), nil
	}
	id, err := strconv.ParseInt(missionID, 10, 64)
	if err != nil || id <= 0 {
		return "", apperrors.Validation(op, "mission_id must be a positive integer")
	}
	if _, err := h.missions.Owned(ctx, session, id); err != nil {
		return "", err
	}
	return fmt.Sprintf("missions/%d", id), nil
}
