package receipt

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/zombor/receipt-extractor/internal/scanning"
)

// maxFormSize bounds uploads; high-resolution phone photos run well past 10MB
const maxFormSize = int64(50 << 20)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// corsError writes a plain-text error response with CORS headers set
func corsError(w http.ResponseWriter, message string, code int) {
	setCORSHeaders(w)
	http.Error(w, message, code)
}

// jsonError writes a JSON error body with CORS headers set
func jsonError(w http.ResponseWriter, code int, body map[string]string) {
	setCORSHeaders(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

// setCORSHeaders sets CORS headers on a response
func setCORSHeaders(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-API-Key")
	w.Header().Set("Access-Control-Expose-Headers", "X-Request-ID, Content-Disposition")
	w.Header().Set("Access-Control-Max-Age", "3600")
}

// handleIndex serves the HTML interface
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	setCORSHeaders(w)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(indexHTML)
}

// handleStaticCSS serves the CSS file
func (s *Server) handleStaticCSS(w http.ResponseWriter, r *http.Request) {
	setCORSHeaders(w)
	w.Header().Set("Content-Type", "text/css")
	w.Write(appCSS)
}

// handleStaticJS serves the JavaScript file
func (s *Server) handleStaticJS(w http.ResponseWriter, r *http.Request) {
	setCORSHeaders(w)
	w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
	w.Write(appJS)
}

// handleExtract runs the pipeline for an uploaded receipt and returns the result as JSON
func (s *Server) handleExtract(w http.ResponseWriter, r *http.Request) {
	requestID := uuid.NewString()
	w.Header().Set("X-Request-ID", requestID)
	logger := slog.With("request_id", requestID)

	req, ok := readRequest(w, r, logger)
	if !ok {
		return
	}

	result, err := s.service.Extract(r.Context(), req)
	if err != nil {
		writePipelineError(w, logger, err)
		return
	}

	setCORSHeaders(w)
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(result); err != nil {
		logger.Error("Error encoding response", "error", err)
	}
}

// handleExport runs the pipeline (or reuses the cached result) and returns a spreadsheet
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	requestID := uuid.NewString()
	w.Header().Set("X-Request-ID", requestID)
	logger := slog.With("request_id", requestID)

	req, ok := readRequest(w, r, logger)
	if !ok {
		return
	}

	table, err := ParseTable(r.FormValue("table"))
	if err != nil {
		jsonError(w, http.StatusBadRequest, map[string]string{"error": UserMessage(err)})
		return
	}

	result, err := s.service.Extract(r.Context(), req)
	if err != nil {
		writePipelineError(w, logger, err)
		return
	}

	data, err := WriteWorkbook(result, table)
	if errors.Is(err, ErrNoCategories) {
		jsonError(w, http.StatusUnprocessableEntity, map[string]string{"error": "Category totals are not available for this receipt."})
		return
	}
	if err != nil {
		logger.Error("Error writing workbook", "error", err)
		jsonError(w, http.StatusInternalServerError, map[string]string{"error": UserMessage(err)})
		return
	}

	setCORSHeaders(w)
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="receipt-`+string(table)+`.xlsx"`)
	w.Write(data)
}

// readRequest parses the multipart upload into a Request, writing the error response itself on failure
func readRequest(w http.ResponseWriter, r *http.Request, logger *slog.Logger) (Request, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxFormSize)
	if err := r.ParseMultipartForm(maxFormSize); err != nil {
		logger.Error("Error parsing multipart form", "error", err)
		errorMsg := "Error parsing form"
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			errorMsg = "File is too large. Maximum size is 50MB. Please compress or resize your image."
		}
		jsonError(w, http.StatusBadRequest, map[string]string{"error": errorMsg})
		return Request{}, false
	}

	f, header, err := r.FormFile("file")
	if err != nil {
		logger.Error("Error getting file from form", "error", err)
		errorMsg := "No file provided"
		if errors.Is(err, http.ErrMissingFile) {
			errorMsg = "No file was selected. Please choose a file to upload."
		}
		jsonError(w, http.StatusBadRequest, map[string]string{"error": errorMsg})
		return Request{}, false
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		logger.Error("Error reading file data", "error", err, "filename", header.Filename)
		jsonError(w, http.StatusInternalServerError, map[string]string{"error": "Error reading file. Please try again."})
		return Request{}, false
	}

	expected := 0
	if v := strings.TrimSpace(r.FormValue("expected_items")); v != "" {
		expected, err = strconv.Atoi(v)
		if err != nil || expected < 0 {
			jsonError(w, http.StatusBadRequest, map[string]string{"error": "Expected items must be a non-negative whole number."})
			return Request{}, false
		}
	}

	credential := r.Header.Get("X-API-Key")
	if credential == "" {
		credential = r.FormValue("api_key")
	}

	req, err := NewRequest(data, strings.TrimSpace(credential), expected)
	if err != nil {
		jsonError(w, http.StatusBadRequest, map[string]string{"error": UserMessage(err)})
		return Request{}, false
	}

	logger.Info("Received receipt", "filename", header.Filename, "file_size", len(data), "expected_items", expected)
	return req, true
}

// writePipelineError maps a pipeline failure kind to a status code and user-facing message
func writePipelineError(w http.ResponseWriter, logger *slog.Logger, err error) {
	body := map[string]string{"error": UserMessage(err)}

	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, ErrInvalidRequest):
		code = http.StatusBadRequest
	case errors.Is(err, scanning.ErrAuthentication):
		code = http.StatusUnauthorized
	case errors.Is(err, scanning.ErrService):
		code = http.StatusBadGateway
	case errors.Is(err, scanning.ErrNoJSONFound), errors.Is(err, scanning.ErrMalformedJSON):
		code = http.StatusUnprocessableEntity
		if raw, ok := RawResponse(err); ok {
			body["raw"] = raw
		}
	case errors.Is(err, ErrMissingRequiredField):
		code = http.StatusUnprocessableEntity
	}

	logger.Error("Error processing receipt", "status", code, "error", err)
	jsonError(w, code, body)
}
