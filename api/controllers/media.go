package controllers

import (
	"net/http"

	"github.com/lokabekas/lokabekas-backend/api/responses"
	"github.com/lokabekas/lokabekas-backend/api/validators"
	"github.com/lokabekas/lokabekas-backend/pkg/logger"
	"github.com/lokabekas/lokabekas-backend/pkg/storage/gcs"
)

type uploadURLRequest struct {
	Filename    string `json:"filename" validate:"required"`
	ContentType string `json:"content_type" validate:"required,oneof=image/jpeg image/png image/webp application/pdf"`
}

type uploadURLResponse struct {
	Object    string `json:"object"`
	UploadURL string `json:"upload_url"`
}

// ComplaintEvidenceUploadURL issues a signed PUT URL for complaint
// evidence. The object key is returned so the client can attach it when
// filing the complaint.
func ComplaintEvidenceUploadURL(store *gcs.Client, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		complaintID, err := validators.UUIDParam(r, "complaintID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req uploadURLRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		object := gcs.EvidenceKey(complaintID, req.Filename)
		url, err := store.UploadURL(object, req.ContentType)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, uploadURLResponse{Object: object, UploadURL: url})
	}
}

// ShipmentProofUploadURL issues a signed PUT URL for a shipment proof
// photo.
func ShipmentProofUploadURL(store *gcs.Client, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		purchaseID, err := validators.UUIDParam(r, "purchaseID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req uploadURLRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		object := gcs.ShipmentProofKey(purchaseID, req.Filename)
		url, err := store.UploadURL(object, req.ContentType)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, uploadURLResponse{Object: object, UploadURL: url})
	}
}

// MediaDownloadURL resolves a stored object key into a signed GET URL.
func MediaDownloadURL(store *gcs.Client, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		object := r.URL.Query().Get("object")
		url, err := store.DownloadURL(object)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"object": object, "download_url": url})
	}
}
