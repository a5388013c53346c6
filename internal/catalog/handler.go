package catalog

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/2beens/catalogsvc/internal/telemetry/tracing"
	"github.com/2beens/catalogsvc/pkg"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	// image plus the other form fields and multipart overhead
	maxCreateRequestSize = MaxImageSize + 64<<10
	multipartMaxMemory   = 2 << 20

	internalErrorMessage = "internal error, try again later"
)

type entriesRegistry interface {
	ListSummaries(ctx context.Context) ([]Summary, error)
	GetPayload(ctx context.Context, id uuid.UUID) ([]byte, error)
	Create(ctx context.Context, newEntry NewEntry) (*Summary, error)
}

var _ entriesRegistry = (*Registry)(nil)

type Handler struct {
	registry entriesRegistry
}

func NewHandler(registry entriesRegistry) *Handler {
	return &Handler{
		registry: registry,
	}
}

func (handler *Handler) SetupRoutes(router *mux.Router) {
	router.HandleFunc("/api/catalog", handler.HandleCreate).Methods("POST", "OPTIONS").Name("catalog-create")
	router.HandleFunc("/api/catalog", handler.HandleList).Methods("GET").Name("catalog-list")
	router.HandleFunc("/api/catalog/{id}/image", handler.HandleGetImage).Methods("GET", "OPTIONS").Name("catalog-image")
}

type validationErrorResponse struct {
	Message string       `json:"message"`
	Errors  []FieldError `json:"errors"`
}

func (handler *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.catalog.create")
	defer span.End()

	r.Body = http.MaxBytesReader(w, r.Body, maxCreateRequestSize)
	if err := r.ParseMultipartForm(multipartMaxMemory); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			writeValidationError(w, &ValidationError{Fields: []FieldError{
				{Field: "image", Msg: "image must be at most 1 MiB"},
			}})
			span.SetStatus(codes.Error, "request-too-large")
			return
		}
		log.Tracef("create catalog entry, parse multipart form: %s", err)
		pkg.WriteJSONMessage(w, "invalid multipart form", http.StatusBadRequest)
		span.SetStatus(codes.Error, "invalid-form")
		return
	}
	defer func() {
		if err := r.MultipartForm.RemoveAll(); err != nil {
			log.Errorf("create catalog entry, remove multipart files: %s", err)
		}
	}()

	newEntry := NewEntry{
		Name: r.FormValue("name"),
	}
	// unparsable type code stays 0 and fails validation along with the other fields
	if typeCode, err := strconv.Atoi(r.FormValue("typeCode")); err == nil {
		newEntry.TypeCode = typeCode
	}

	image, err := readFormImage(r)
	if err != nil {
		log.Errorf("create catalog entry, read image: %s", err)
		pkg.WriteJSONMessage(w, internalErrorMessage, http.StatusInternalServerError)
		span.SetStatus(codes.Error, "read-image")
		span.RecordError(err)
		return
	}
	newEntry.Image = image

	span.SetAttributes(
		attribute.String("entry.name", newEntry.Name),
		attribute.Int("entry.typeCode", newEntry.TypeCode),
		attribute.Int("entry.imageSize", len(newEntry.Image)),
	)

	summary, err := handler.registry.Create(ctx, newEntry)
	if err != nil {
		var validationErr *ValidationError
		if errors.As(err, &validationErr) {
			writeValidationError(w, validationErr)
			span.SetStatus(codes.Error, "validation-failed")
			return
		}
		log.Errorf("create catalog entry: %s", err)
		pkg.WriteJSONMessage(w, internalErrorMessage, http.StatusInternalServerError)
		span.SetStatus(codes.Error, "create-failed")
		span.RecordError(err)
		return
	}

	span.SetStatus(codes.Ok, "created")
	pkg.WriteJSONResponse(w, summary, http.StatusCreated)
}

// readFormImage returns nil when no image was sent; oversized images are cut
// one byte past the limit so validation still rejects them
func readFormImage(r *http.Request) ([]byte, error) {
	file, _, err := r.FormFile("image")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return nil, nil
		}
		return nil, err
	}
	defer file.Close()

	return io.ReadAll(io.LimitReader(file, MaxImageSize+1))
}

func writeValidationError(w http.ResponseWriter, validationErr *ValidationError) {
	pkg.WriteJSONResponse(w, validationErrorResponse{
		Message: "validation failed",
		Errors:  validationErr.Fields,
	}, http.StatusBadRequest)
}

func (handler *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.catalog.list")
	defer span.End()

	summaries, err := handler.registry.ListSummaries(ctx)
	if err != nil {
		log.Errorf("list catalog entries: %s", err)
		pkg.WriteJSONMessage(w, internalErrorMessage, http.StatusInternalServerError)
		span.SetStatus(codes.Error, "list-failed")
		span.RecordError(err)
		return
	}

	span.SetAttributes(attribute.Int("entries", len(summaries)))
	pkg.WriteJSONResponseOK(w, summaries)
}

func (handler *Handler) HandleGetImage(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.catalog.get_image")
	defer span.End()

	idParam := mux.Vars(r)["id"]
	id, err := uuid.Parse(idParam)
	if err != nil {
		pkg.WriteJSONMessage(w, "invalid entry id", http.StatusBadRequest)
		span.SetStatus(codes.Error, "invalid-id")
		return
	}
	span.SetAttributes(attribute.String("entry.id", id.String()))

	payload, err := handler.registry.GetPayload(ctx, id)
	if err != nil {
		if errors.Is(err, ErrEntryNotFound) {
			pkg.WriteJSONMessage(w, "entry not found", http.StatusNotFound)
			span.SetStatus(codes.Error, "not-found")
			return
		}
		log.Errorf("get catalog entry image %s: %s", id, err)
		pkg.WriteJSONMessage(w, internalErrorMessage, http.StatusInternalServerError)
		span.SetStatus(codes.Error, "get-image-failed")
		span.RecordError(err)
		return
	}

	span.SetStatus(codes.Ok, "ok")
	pkg.WriteResponseBytes(w, DetectImageType(payload), payload, http.StatusOK)
}
