package controllers

import (
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-playground/form"
	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/softdata/cohortsync/modules/cohorts/ingest"
	"github.com/softdata/cohortsync/modules/cohorts/services"
	"github.com/softdata/cohortsync/pkg/application"
	"github.com/softdata/cohortsync/pkg/composables"
	"github.com/softdata/cohortsync/pkg/httpapi"
)

const defaultMaxUploadSize = 32 << 20

var formDecoder = form.NewDecoder()

type uploadForm struct {
	// Kept as text so the spreadsheet yes/no vocabulary applies.
	DryRun string `form:"dry_run"`
}

type listQuery struct {
	Limit int `form:"limit"`
}

type UploadControllerOptions struct {
	MaxUploadSize int64
	// RateLimit wraps the upload endpoint only; listing is never limited.
	RateLimit mux.MiddlewareFunc
}

type UploadController struct {
	uploads   *services.UploadService
	history   *services.UploadHistory
	opts      UploadControllerOptions
	apiPrefix string
}

func NewUploadController(app application.Application, opts UploadControllerOptions) application.Controller {
	if opts.MaxUploadSize <= 0 {
		opts.MaxUploadSize = defaultMaxUploadSize
	}
	return &UploadController{
		uploads:   app.Service(services.UploadService{}).(*services.UploadService),
		history:   app.Service(services.UploadHistory{}).(*services.UploadHistory),
		opts:      opts,
		apiPrefix: "/cohorts/uploads",
	}
}

func (c *UploadController) Key() string {
	return c.apiPrefix
}

func (c *UploadController) Register(r *mux.Router) {
	api := r.PathPrefix(c.apiPrefix).Subrouter()

	for path, handler := range map[string]http.HandlerFunc{
		"/historico": c.UploadHistorico,
		"/grupos":    c.UploadGrupos,
	} {
		var upload http.Handler = handler
		if c.opts.RateLimit != nil {
			upload = c.opts.RateLimit(upload)
		}
		api.Handle(path, upload).Methods(http.MethodPost)
	}
	api.HandleFunc("", c.List).Methods(http.MethodGet)
	api.HandleFunc("/{id}", c.Get).Methods(http.MethodGet)
}

// UploadHistorico accepts a multipart form with a "file" part and an
// optional "dry_run" flag and responds with the upload report.
func (c *UploadController) UploadHistorico(w http.ResponseWriter, r *http.Request) {
	c.upload(w, r, ingest.Historico.Name)
}

// UploadGrupos takes the same form as UploadHistorico for group listings,
// which leave the learner counters untouched.
func (c *UploadController) UploadGrupos(w http.ResponseWriter, r *http.Request) {
	c.upload(w, r, ingest.Grupos.Name)
}

func (c *UploadController) upload(w http.ResponseWriter, r *http.Request, family string) {
	log := composables.UseLogger(r.Context())
	r.Body = http.MaxBytesReader(w, r.Body, c.opts.MaxUploadSize)
	if err := r.ParseMultipartForm(c.opts.MaxUploadSize); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			_ = httpapi.WriteError(w, http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE", "upload exceeds the size limit",
				map[string]string{"limit_bytes": strconv.FormatInt(tooLarge.Limit, 10)})
			return
		}
		_ = httpapi.WriteError(w, http.StatusBadRequest, "INVALID_FORM", err.Error(), nil)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		_ = httpapi.WriteError(w, http.StatusBadRequest, "FILE_REQUIRED", "multipart field \"file\" is required", nil)
		return
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		_ = httpapi.WriteError(w, http.StatusBadRequest, "INVALID_FORM", err.Error(), nil)
		return
	}

	var fields uploadForm
	if err := formDecoder.Decode(&fields, url.Values(r.MultipartForm.Value)); err != nil {
		_ = httpapi.WriteError(w, http.StatusBadRequest, "INVALID_FORM", err.Error(), nil)
		return
	}
	opts := services.ImportOptions{DryRun: ingest.ParseBool(fields.DryRun, false), Family: family}
	report, err := c.uploads.Import(r.Context(), header.Filename, data, opts)
	if err != nil {
		c.writeImportError(w, err)
		if !isClientError(err) {
			log.WithError(err).Error("upload failed")
		}
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusOK, report)
}

func (c *UploadController) List(w http.ResponseWriter, r *http.Request) {
	var q listQuery
	if err := formDecoder.Decode(&q, r.URL.Query()); err != nil || q.Limit < 0 {
		_ = httpapi.WriteError(w, http.StatusBadRequest, "INVALID_LIMIT", "limit must be a non-negative integer", nil)
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusOK, map[string]any{"uploads": c.history.Recent(q.Limit)})
}

func (c *UploadController) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		_ = httpapi.WriteError(w, http.StatusBadRequest, "INVALID_ID", "upload id must be a UUID", nil)
		return
	}
	summary, ok := c.history.Get(id)
	if !ok {
		_ = httpapi.WriteError(w, http.StatusNotFound, "UPLOAD_NOT_FOUND", "upload not found", nil)
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusOK, summary)
}

func (c *UploadController) writeImportError(w http.ResponseWriter, err error) {
	var (
		unresolved *ingest.UnresolvedRequiredFieldError
		commit     *ingest.BatchCommitError
		fileErr    *services.FileError
	)
	switch {
	case errors.As(err, &unresolved):
		_ = httpapi.NewError("REQUIRED_COLUMN_MISSING", err.Error(),
			httpapi.WithMeta("field", unresolved.Field),
			httpapi.WithMeta("suggestions", strings.Join(unresolved.Suggestions, ",")),
			httpapi.WithDetails(unresolved.Headers...),
		).Write(w, http.StatusUnprocessableEntity)
	case errors.As(err, &fileErr):
		_ = httpapi.WriteError(w, http.StatusBadRequest, "UNREADABLE_FILE", err.Error(), nil)
	case errors.As(err, &commit):
		_ = httpapi.NewError("UPLOAD_NOT_COMMITTED", err.Error(), httpapi.WithMeta("op", commit.Op)).
			Write(w, http.StatusInternalServerError)
	default:
		_ = httpapi.WriteError(w, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", err.Error(), nil)
	}
}

func isClientError(err error) bool {
	var (
		unresolved *ingest.UnresolvedRequiredFieldError
		fileErr    *services.FileError
	)
	return errors.As(err, &unresolved) || errors.As(err, &fileErr)
}
