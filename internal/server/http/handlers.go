package httpserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/litscout/discovery-engine/internal/discovery"
	"github.com/litscout/discovery-engine/internal/domain"
)

// Validation constants.
const (
	defaultMaxResults  = 10
	maxRequestBodySize = 1 << 20 // 1 MB limit for request bodies
)

var validate = validator.New()

// discoverRequest is the JSON request body for a discovery call.
type discoverRequest struct {
	Query          string   `json:"query" validate:"required,min=3,max=500"`
	MaxResults     int      `json:"max_results" validate:"omitempty,min=1,max=100"`
	Sources        []string `json:"sources" validate:"omitempty,max=8,dive,required"`
	YearFrom       int      `json:"year_from" validate:"omitempty,min=1800,max=2100"`
	YearTo         int      `json:"year_to" validate:"omitempty,min=1800,max=2100"`
	OpenAccessOnly bool     `json:"open_access_only"`
	FastMode       bool     `json:"fast_mode"`
}

// discoverHandler handles POST /api/v1/discover.
func (s *Server) discoverHandler(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBodySize))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	var req discoverRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON request body")
		return
	}

	req.Query = strings.TrimSpace(req.Query)
	if err := validate.Struct(&req); err != nil {
		writeError(w, http.StatusBadRequest, validationMessage(err))
		return
	}
	if req.YearFrom != 0 && req.YearTo != 0 && req.YearTo < req.YearFrom {
		writeError(w, http.StatusBadRequest, "year_to must not precede year_from")
		return
	}

	sources := make([]domain.SourceType, 0, len(req.Sources))
	for _, tag := range req.Sources {
		st, err := domain.ParseSourceType(tag)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown source: %s", tag))
			return
		}
		sources = append(sources, st)
	}

	if req.MaxResults == 0 {
		req.MaxResults = defaultMaxResults
	}

	result := s.engine.Discover(r.Context(), discovery.Request{
		Query:          req.Query,
		MaxResults:     req.MaxResults,
		Sources:        sources,
		YearFrom:       req.YearFrom,
		YearTo:         req.YearTo,
		OpenAccessOnly: req.OpenAccessOnly,
		FastMode:       req.FastMode,
	})

	writeJSON(w, http.StatusOK, discoveryResultToResponse(result))
}

// validationMessage flattens validator errors into one readable message.
func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return "invalid request"
	}

	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			parts = append(parts, fmt.Sprintf("%s is required", jsonFieldName(fe.Field())))
		case "min":
			parts = append(parts, fmt.Sprintf("%s must be at least %s", jsonFieldName(fe.Field()), fe.Param()))
		case "max":
			parts = append(parts, fmt.Sprintf("%s must be at most %s", jsonFieldName(fe.Field()), fe.Param()))
		default:
			parts = append(parts, fmt.Sprintf("%s is invalid", jsonFieldName(fe.Field())))
		}
	}
	return strings.Join(parts, "; ")
}

// jsonFieldName converts a Go field name to its snake_case JSON name.
func jsonFieldName(field string) string {
	var b strings.Builder
	for i, r := range field {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte('_')
			}
			b.WriteRune(r + ('a' - 'A'))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
