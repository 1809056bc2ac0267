package server

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/menta2k/meishi-analyzer/internal/utils"
	"github.com/menta2k/meishi-analyzer/pkg/client"
	"github.com/menta2k/meishi-analyzer/pkg/extraction"
	"github.com/menta2k/meishi-analyzer/pkg/types"
)

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Error string `json:"error"`
}

// AnalyzeResponse is the body of a successful /analyze request
type AnalyzeResponse struct {
	MimeType string                `json:"mime_type"`
	Result   *types.AnalysisResult `json:"result"`
}

// InferRequest is the body of /infer
type InferRequest struct {
	Text       string           `json:"text"`
	CardFields types.CardFields `json:"card_fields"`
}

func (s *Server) healthCheck(c *gin.Context) {
	c.Header("Cache-Control", "no-store")
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// handleAnalyze runs the pipeline on the multipart field "file"
func (s *Server) handleAnalyze(c *gin.Context) {
	data, contentType, err := s.readUpload(c)
	if err != nil {
		s.fail(c, err)
		return
	}

	result, err := s.svc.Analyze(c.Request.Context(), data, contentType)
	if err != nil {
		s.fail(c, err)
		return
	}
	mt, _ := types.ParseMediaType(contentType)
	c.JSON(http.StatusOK, AnalyzeResponse{MimeType: mt.String(), Result: result})
}

// handleLogos runs only the logo detector on the multipart field "file"
func (s *Server) handleLogos(c *gin.Context) {
	data, _, err := s.readUpload(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, s.svc.DetectLogos(data))
}

// handleInfer fills card fields from raw text
func (s *Server) handleInfer(c *gin.Context) {
	var req InferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.log.Warn("http.infer.bad_request", "error", err, "remote_addr", c.ClientIP())
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid JSON body"})
		return
	}
	c.JSON(http.StatusOK, s.svc.InferFields(req.Text, req.CardFields))
}

var errMissingFile = errors.New("multipart field \"file\" is required")

// readUpload returns the uploaded bytes and their declared content type.
// A missing or generic declaration is replaced by content sniffing.
func (s *Server) readUpload(c *gin.Context) ([]byte, string, error) {
	file, err := c.FormFile("file")
	if err != nil {
		return nil, "", errMissingFile
	}
	if s.config.MaxBodyBytes > 0 && file.Size > s.config.MaxBodyBytes {
		return nil, "", fmt.Errorf("%w: %s exceeds %s", extraction.ErrDocumentTooLarge,
			utils.FormatFileSize(file.Size), utils.FormatFileSize(s.config.MaxBodyBytes))
	}

	data, err := readFile(file)
	if err != nil {
		return nil, "", err
	}

	contentType := file.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = utils.DetectMediaType(file.Filename, data).String()
	}
	return data, contentType, nil
}

func readFile(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open upload: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}
	return data, nil
}

// fail maps err onto a status code and writes the error body
func (s *Server) fail(c *gin.Context, err error) {
	status := StatusFor(err)
	attrs := []any{"req_id", c.GetString("req_id"), "status", status, "error", err}
	if status >= http.StatusInternalServerError {
		s.log.Error("http.request_failed", attrs...)
	} else {
		s.log.Warn("http.request_rejected", attrs...)
	}
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "internal error"
	}
	c.JSON(status, ErrorResponse{Error: msg})
}

// StatusFor returns the HTTP status for a pipeline error. A media type
// rejected by a provider is a provider failure, not a bad request.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, client.ErrProvider), errors.Is(err, client.ErrValidation):
		return http.StatusBadGateway
	case errors.Is(err, errMissingFile),
		errors.Is(err, extraction.ErrEmptyDocument),
		errors.Is(err, client.ErrUnsupportedMediaType):
		return http.StatusBadRequest
	case errors.Is(err, extraction.ErrDocumentTooLarge):
		return http.StatusRequestEntityTooLarge
	}
	return http.StatusInternalServerError
}
