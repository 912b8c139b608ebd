package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/rezonia/ksef-pdf/internal/composer"
	"github.com/rezonia/ksef-pdf/internal/ksef"
	"github.com/rezonia/ksef-pdf/internal/links"
	"github.com/rezonia/ksef-pdf/internal/model"
	"github.com/rezonia/ksef-pdf/internal/parser/fa"
	"github.com/rezonia/ksef-pdf/internal/pdfinfo"
	"github.com/rezonia/ksef-pdf/internal/processor"
	"github.com/rezonia/ksef-pdf/internal/signature/certstore"
)

const (
	headerInvoiceLink     = "X-Invoice-Link"
	headerCertificateLink = "X-Certificate-Link"
	headerDocumentID      = "X-Document-ID"
)

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) abort(c *gin.Context, status int, msg string, details error) {
	resp := ErrorResponse{Error: msg, RequestID: c.GetString(requestIDHeader)}
	if details != nil {
		resp.Details = details.Error()
	}
	c.AbortWithStatusJSON(status, resp)
}

// readBody reads a non-empty request body within the size limit
func (s *Server) readBody(c *gin.Context) ([]byte, bool) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.config.MaxBodyBytes)
	body, err := c.GetRawData()
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.abort(c, http.StatusRequestEntityTooLarge, "request body too large", nil)
			return nil, false
		}
		s.abort(c, http.StatusBadRequest, "failed to read request body", err)
		return nil, false
	}
	if len(body) == 0 {
		s.abort(c, http.StatusBadRequest, "empty request body", nil)
		return nil, false
	}
	return body, true
}

// badInput reports errors caused by the request payload rather than the invoice content
func badInput(err error) bool {
	var parseErr *model.ParseError
	return errors.Is(err, processor.ErrUnsupportedFormat) ||
		errors.Is(err, model.ErrArgument) ||
		errors.As(err, &parseErr)
}

// requestOptions applies the environment, qr_pixels, mode and ksef_number query parameters
func (s *Server) requestOptions(c *gin.Context) (processor.Options, error) {
	render := s.config.Render
	render.Certificate = s.config.Certificate

	if v := c.Query("environment"); v != "" {
		env, err := links.ParseEnvironment(v)
		if err != nil {
			return processor.Options{}, err
		}
		render.Environment = env
	}
	if v := c.Query("qr_pixels"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return processor.Options{}, model.NewArgumentError("server", "qr_pixels", "must be an integer")
		}
		render.QRPixelsPerModule = n
	}

	opts := processor.Options{Render: render}

	number := strings.TrimSpace(c.Query("ksef_number"))
	mode := c.Query("mode")
	if number != "" || mode != "" {
		meta := model.IssuanceMetadata{Mode: model.IssuanceOnline, KSeFNumber: number}
		if mode != "" {
			m, ok := model.ParseIssuanceMode(mode)
			if !ok {
				return processor.Options{}, model.NewArgumentError("server", "mode", "unknown issuance mode "+mode)
			}
			meta.Mode = m
		}
		opts.Issuance = &meta
	}
	return opts, nil
}

func (s *Server) handleValidate(c *gin.Context) {
	body, ok := s.readBody(c)
	if !ok {
		return
	}
	opts, err := s.requestOptions(c)
	if err != nil {
		s.abort(c, http.StatusBadRequest, "invalid parameters", err)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 30*time.Second)
	defer cancel()

	result := s.pipeline.Validate(ctx, body, opts)
	resp := ValidationResponse{
		Valid:  result.Outcome != nil && result.Outcome.Valid,
		Schema: string(result.Schema),
	}
	if result.Context != nil {
		resp.Mode = result.Context.Issuance().Mode.String()
		resp.KSeFNumber = result.Context.Issuance().KSeFNumber
	}

	if result.Outcome == nil {
		resp.Errors = []string{result.Error.Error()}
		status := http.StatusUnprocessableEntity
		if badInput(result.Error) {
			status = http.StatusBadRequest
		}
		c.JSON(status, resp)
		return
	}
	resp.Errors = result.Outcome.Errors
	resp.Warnings = result.Outcome.Warnings
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleRender(c *gin.Context) {
	body, ok := s.readBody(c)
	if !ok {
		return
	}
	opts, err := s.requestOptions(c)
	if err != nil {
		s.abort(c, http.StatusBadRequest, "invalid parameters", err)
		return
	}
	if title := c.Query("title"); title != "" {
		opts.Render.Title = title
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 60*time.Second)
	defer cancel()

	result := s.pipeline.Process(ctx, body, opts)
	if result.Error != nil {
		status := http.StatusUnprocessableEntity
		if badInput(result.Error) {
			status = http.StatusBadRequest
		}
		c.AbortWithStatusJSON(status, ErrorResponse{
			Error:     "rendering failed",
			Details:   result.Error.Error(),
			Warnings:  result.Warnings,
			RequestID: c.GetString(requestIDHeader),
		})
		return
	}

	if result.Links.Invoice != "" {
		c.Header(headerInvoiceLink, result.Links.Invoice)
	}
	if result.Links.Certificate != "" {
		c.Header(headerCertificateLink, result.Links.Certificate)
	}
	c.Header(headerDocumentID, composer.DocumentID(body))
	c.Data(http.StatusOK, "application/pdf", result.Document)
}

func (s *Server) handleLinks(c *gin.Context) {
	body, ok := s.readBody(c)
	if !ok {
		return
	}
	opts, err := s.requestOptions(c)
	if err != nil {
		s.abort(c, http.StatusBadRequest, "invalid parameters", err)
		return
	}
	opts.SkipRender = true

	ctx, cancel := context.WithTimeout(c.Request.Context(), 30*time.Second)
	defer cancel()

	result := s.pipeline.Process(ctx, body, opts)
	if result.Error != nil {
		status := http.StatusUnprocessableEntity
		if badInput(result.Error) {
			status = http.StatusBadRequest
		}
		c.AbortWithStatusJSON(status, ErrorResponse{
			Error:     "links not built",
			Details:   result.Error.Error(),
			Warnings:  result.Warnings,
			RequestID: c.GetString(requestIDHeader),
		})
		return
	}

	meta := result.Context.Issuance()
	c.JSON(http.StatusOK, LinksResponse{
		Invoice:     result.Links.Invoice,
		Certificate: result.Links.Certificate,
		Mode:        meta.Mode.String(),
		KSeFNumber:  meta.KSeFNumber,
		Warnings:    result.Warnings,
	})
}

func (s *Server) handleVerify(c *gin.Context) {
	var req VerifyRequest
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.config.MaxBodyBytes)
	if err := c.ShouldBindJSON(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.abort(c, http.StatusRequestEntityTooLarge, "request body too large", nil)
			return
		}
		s.abort(c, http.StatusBadRequest, "invalid request", err)
		return
	}

	cert, err := certstore.LoadPEM([]byte(req.CertificatePEM), nil)
	if err != nil {
		s.abort(c, http.StatusBadRequest, "invalid certificate", err)
		return
	}

	var raw []byte
	if req.Document != "" {
		raw = []byte(req.Document)
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 60*time.Second)
	defer cancel()

	result := s.verifier.Verify(ctx, req.Link, cert.Leaf(), raw)
	status := http.StatusOK
	if !result.Valid {
		status = http.StatusUnprocessableEntity
	}
	c.JSON(status, result)
}

func (s *Server) handleInfo(c *gin.Context) {
	body, ok := s.readBody(c)
	if !ok {
		return
	}

	format := processor.DetectFormat(body)
	resp := InfoResponse{
		Format:   format.String(),
		MimeType: http.DetectContentType(body),
		Size:     len(body),
	}

	switch format {
	case processor.FormatPDF:
		info, err := pdfinfo.InspectBytes(body)
		if err != nil {
			s.abort(c, http.StatusBadRequest, "failed to inspect PDF", err)
			return
		}
		resp.PDF = info
	case processor.FormatXML:
		if doc, err := fa.Inspect(body); err == nil {
			resp.Document = doc
		}
	}

	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleKSeF(c *gin.Context) {
	number := strings.TrimSpace(c.Param("number"))
	r := ksef.Validate(number)

	resp := KSeFResponse{
		Number:  number,
		Valid:   r.Valid,
		Reason:  string(r.Reason),
		Message: r.Message(),
	}
	if nip, ok := ksef.ExtractNIP(number); ok {
		resp.NIP = nip
	}
	if d, ok := ksef.ParseDate(number); ok {
		resp.Date = d.Format("2006-01-02")
	}
	if sum, ok := ksef.ExtractChecksum(number); ok {
		resp.Checksum = sum
		resp.Expected = ksef.Checksum(number[:32])
	}

	c.JSON(http.StatusOK, resp)
}
