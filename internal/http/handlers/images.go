package handlers

import (
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"boardgen/internal/domain"
	"boardgen/internal/imagejob"
	"boardgen/internal/providers/image"
	"boardgen/internal/storage"
	"boardgen/pkg/zip"
)

type imageRequest struct {
	Prompt      string `json:"prompt"`
	Mode        string `json:"mode"`
	SrcImageURL string `json:"srcImageUrl"`
}

// GenerateImage is the single-call image endpoint.
func (a *App) GenerateImage(w http.ResponseWriter, r *http.Request) {
	if a.Images == nil {
		a.unavailable(w, "image generator")
		return
	}
	var body imageRequest
	if err := decodeJSON(w, r, &body); err != nil {
		a.fail(w, r, err)
		return
	}
	req := image.Request{
		Prompt:    strings.TrimSpace(body.Prompt),
		Mode:      image.NormalizeMode(body.Mode),
		SourceURL: strings.TrimSpace(body.SrcImageURL),
	}
	if err := req.Validate(); err != nil {
		a.fail(w, r, err)
		return
	}
	asset, err := image.GenerateWithin(r.Context(), a.Images, req, a.ImageTimeout)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	persisted := storage.Persisted{URL: asset.URL}
	if a.Uploader != nil {
		persisted = storage.Persist(r.Context(), a.Uploader, asset.URL, a.Logger)
	}
	a.json(w, http.StatusOK, map[string]any{"imageUrl": asset.URL, "persisted": persisted})
}

func (a *App) SubmitImageJob(w http.ResponseWriter, r *http.Request) {
	if a.Jobs == nil {
		a.unavailable(w, "image job client")
		return
	}
	req, ok := a.decodeJobRequest(w, r)
	if !ok {
		return
	}
	id, err := a.Jobs.Submit(r.Context(), req)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusAccepted, map[string]string{"generateUuid": id})
}

func (a *App) ImageJobStatus(w http.ResponseWriter, r *http.Request) {
	if a.Jobs == nil {
		a.unavailable(w, "image job client")
		return
	}
	var body struct {
		GenerateUUID string `json:"generateUuid"`
	}
	if err := decodeJSON(w, r, &body); err != nil {
		a.fail(w, r, err)
		return
	}
	job, err := a.Jobs.Poll(r.Context(), body.GenerateUUID)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, job)
}

// GenerateImageJob submits and waits; the client-side budget maps to 504.
func (a *App) GenerateImageJob(w http.ResponseWriter, r *http.Request) {
	if a.Jobs == nil {
		a.unavailable(w, "image job client")
		return
	}
	req, ok := a.decodeJobRequest(w, r)
	if !ok {
		return
	}
	job, err := a.Jobs.GenerateAndWait(r.Context(), req, 0, 0)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, job)
}

func (a *App) decodeJobRequest(w http.ResponseWriter, r *http.Request) (imagejob.Request, bool) {
	var body imagejob.Request
	if err := decodeJSON(w, r, &body); err != nil {
		a.fail(w, r, err)
		return body, false
	}
	mode, ok := imagejob.ParseMode(string(body.Mode))
	if !ok {
		a.fail(w, r, domain.Validation("mode", "must be text2img or img2img"))
		return body, false
	}
	body.Mode = mode
	if err := body.Validate(); err != nil {
		a.fail(w, r, err)
		return body, false
	}
	return body, true
}

// ImageJobArchive downloads a finished job's images as one zip.
func (a *App) ImageJobArchive(w http.ResponseWriter, r *http.Request) {
	if a.Jobs == nil || a.Loader == nil {
		a.unavailable(w, "image job archive")
		return
	}
	id := strings.TrimSpace(chi.URLParam(r, "generateUuid"))
	job, err := a.Jobs.Poll(r.Context(), id)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	if len(job.Images) == 0 {
		a.error(w, http.StatusConflict, "not_ready", "job has no images yet")
		return
	}
	assets := make([]zip.Asset, 0, len(job.Images))
	for i, u := range job.Images {
		data, ct, err := a.Loader.Load(r.Context(), u)
		if err != nil {
			a.fail(w, r, &domain.UpstreamError{Provider: "image-fetch", Body: err.Error()})
			return
		}
		assets = append(assets, zip.Asset{Filename: zip.Filename(id, i, ct), MIME: ct, Data: data})
	}
	archive, err := zip.ArchiveAssets(assets)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", id+".zip"))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(archive)
}

// Upload stores a multipart "file" field or rehosts a JSON {imageUrl}.
func (a *App) Upload(w http.ResponseWriter, r *http.Request) {
	if a.Uploader == nil {
		a.unavailable(w, "storage")
		return
	}
	var (
		secureURL string
		err       error
	)
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		secureURL, err = a.storeMultipart(r)
	} else {
		var body struct {
			ImageURL string `json:"imageUrl"`
		}
		if err = decodeJSON(w, r, &body); err == nil {
			if strings.TrimSpace(body.ImageURL) == "" {
				err = domain.Validation("imageUrl", "is required")
			} else {
				secureURL, err = a.Uploader.Upload(r.Context(), body.ImageURL)
			}
		}
	}
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, map[string]string{"secureUrl": secureURL})
}

func (a *App) storeMultipart(r *http.Request) (string, error) {
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		return "", &domain.ValidationError{Field: "file", Reason: err.Error()}
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		return "", domain.Validation("file", "field missing")
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		return "", &domain.ValidationError{Field: "file", Reason: err.Error()}
	}
	ct := header.Header.Get("Content-Type")
	if ct == "" || ct == "application/octet-stream" {
		ct = http.DetectContentType(data)
	}
	return a.Uploader.Store(r.Context(), data, ct)
}
