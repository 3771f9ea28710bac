package api

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/healthdesk/benefits-assistant/internal/extraction"
	"github.com/healthdesk/benefits-assistant/internal/logger"
	"github.com/healthdesk/benefits-assistant/internal/metrics"
	"github.com/healthdesk/benefits-assistant/internal/ocr"
)

// FormConverter turns OCR text into a form document.
type FormConverter interface {
	Convert(ctx context.Context, ocrText string) (*extraction.Document, error)
}

type ExtractorHandler struct {
	engine    ocr.Engine
	converter FormConverter
	maxBytes  int64
	log       *logger.Logger
}

func NewExtractorHandler(engine ocr.Engine, converter FormConverter, maxBytes int64, log *logger.Logger) *ExtractorHandler {
	return &ExtractorHandler{engine: engine, converter: converter, maxBytes: maxBytes, log: log}
}

type ExtractResponse struct {
	FileName string               `json:"file_name"`
	Size     int                  `json:"size"`
	OCRText  string               `json:"ocr_text"`
	Document *extraction.Document `json:"document"`
}

func (h *ExtractorHandler) ExtractHandler(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes)
	if err := r.ParseMultipartForm(h.maxBytes); err != nil {
		h.fail(w, http.StatusBadRequest, "bad_upload", "Invalid upload: "+err.Error())
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		h.fail(w, http.StatusBadRequest, "bad_upload", "Missing form file \"file\"")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		h.fail(w, http.StatusBadRequest, "bad_upload", "Could not read upload: "+err.Error())
		return
	}
	if len(data) == 0 {
		h.fail(w, http.StatusBadRequest, "bad_upload", "Uploaded file is empty")
		return
	}

	mimeType, err := ocr.DetectMimeType(header.Filename, data)
	if err != nil {
		h.fail(w, http.StatusUnsupportedMediaType, "unsupported_type", "Only PDF, JPG and PNG files are supported")
		return
	}

	result, err := h.engine.Analyze(r.Context(), ocr.Document{Name: header.Filename, MimeType: mimeType, Data: data})
	if err != nil {
		if errors.Is(err, ocr.ErrUnsupportedType) {
			h.fail(w, http.StatusUnsupportedMediaType, "unsupported_type", err.Error())
			return
		}
		h.log.Error("OCR failed", "file", header.Filename, "error", err)
		h.fail(w, http.StatusBadGateway, "ocr", "OCR failed: "+err.Error())
		return
	}
	text := ocr.Format(result)

	doc, err := h.converter.Convert(r.Context(), text)
	if err != nil {
		code := "conversion"
		var extractionErr *extraction.ExtractionError
		if errors.As(err, &extractionErr) {
			code = string(extractionErr.Code)
		}
		h.fail(w, http.StatusBadGateway, code, "Extraction failed: "+err.Error())
		return
	}

	metrics.FormExtractions.WithLabelValues("success").Inc()
	h.log.Info("form extracted", "file", header.Filename, "size", len(data))
	writeJSON(w, http.StatusOK, ExtractResponse{
		FileName: header.Filename,
		Size:     len(data),
		OCRText:  text,
		Document: doc,
	})
}

func (h *ExtractorHandler) fail(w http.ResponseWriter, status int, result, detail string) {
	metrics.FormExtractions.WithLabelValues(result).Inc()
	writeError(w, status, detail)
}

func NewExtractorRouter(h *ExtractorHandler, opts RouterOptions) http.Handler {
	r := baseRouter(opts)
	r.Post("/extract", h.ExtractHandler)
	return r
}
