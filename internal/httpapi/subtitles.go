package httpapi

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"subtitler/internal/language"
	"subtitler/internal/logging"
	"subtitler/internal/pipeline"
	"subtitler/internal/services"
	"subtitler/internal/upload"
)

const uploadField = "file"

func (s *Server) handleSubtitles(w http.ResponseWriter, r *http.Request) {
	code, err := language.Resolve(chi.URLParam(r, "lang"))
	if err != nil {
		s.writeDetail(w, http.StatusNotFound, "Not Found")
		return
	}
	lang := code.ISO2
	if lang == "" {
		lang = code.ISO3
	}

	bodyLimit := s.maxBytes + envelopeAllowance
	if s.maxBytes > 0 && r.ContentLength > bodyLimit {
		s.writeError(w, upload.TooLarge(s.maxBytes))
		return
	}
	if s.maxBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, bodyLimit)
	}

	part, err := filePart(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	defer part.Close()

	req := pipeline.Request{
		ID:          middleware.GetReqID(r.Context()),
		Filename:    part.FileName(),
		ContentType: part.Header.Get("Content-Type"),
		Body:        limitedBody{r: part},
		Language:    lang,
	}

	started := false
	err = s.processor.Process(r.Context(), req, func(out pipeline.Output) error {
		started = true
		return s.serveOutput(w, r, out)
	})
	if err == nil {
		return
	}
	if started {
		// Headers are gone; the client sees a truncated body.
		return
	}
	s.writeError(w, err)
}

// filePart advances the multipart stream to the upload field without
// buffering anything to disk.
func filePart(r *http.Request) (*multipart.Part, error) {
	reader, err := r.MultipartReader()
	if err != nil {
		return nil, malformed("request body must be multipart/form-data")
	}
	for {
		part, err := reader.NextPart()
		if errors.Is(err, io.EOF) {
			return nil, malformed("field 'file' is required")
		}
		if err != nil {
			if tooLarge(err) {
				return nil, services.Wrap(services.ErrPayloadTooLarge, "", "", "request body too large", err)
			}
			return nil, malformed("malformed multipart body")
		}
		if part.FormName() == uploadField {
			return part, nil
		}
		_ = part.Close()
	}
}

func (s *Server) serveOutput(w http.ResponseWriter, r *http.Request, out pipeline.Output) error {
	f, err := os.Open(out.Path)
	if err != nil {
		return err
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return err
	}

	// The result is always sent whole; Range and conditional headers do not
	// apply to the response of an upload.
	h := w.Header()
	h.Set("Content-Type", out.ContentType)
	h.Set("Content-Disposition", contentDisposition(out.Filename))
	h.Set("Content-Length", strconv.FormatInt(info.Size(), 10))
	h.Set("Last-Modified", out.ModTime.UTC().Format(http.TimeFormat))
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, f); err != nil {
		return err
	}
	return r.Context().Err()
}

// contentDisposition quotes ASCII names. Names outside printable ASCII get
// an underscored fallback plus an RFC 5987 filename* parameter.
func contentDisposition(name string) string {
	var fallback strings.Builder
	plain := true
	for _, r := range name {
		switch {
		case r == '"' || r == '\\':
			fallback.WriteRune('\\')
			fallback.WriteRune(r)
		case r < 0x20 || r > 0x7e:
			plain = false
			fallback.WriteByte('_')
		default:
			fallback.WriteRune(r)
		}
	}
	value := `attachment; filename="` + fallback.String() + `"`
	if plain {
		return value
	}
	return value + "; filename*=utf-8''" + encodeExtValue(name)
}

func encodeExtValue(s string) string {
	const hex = "0123456789ABCDEF"
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if isAttrChar(c) {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(hex[c>>4])
		b.WriteByte(hex[c&0x0f])
	}
	return b.String()
}

func isAttrChar(c byte) bool {
	switch {
	case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		return true
	}
	return strings.IndexByte("!#$&+-.^_`|~", c) >= 0
}

// writeError maps a pipeline error to a status code. Only admission errors
// reveal their message; everything else is a generic 500.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	switch services.KindOf(err) {
	case services.KindPayloadTooLarge:
		s.writeDetail(w, http.StatusRequestEntityTooLarge, err.Error())
	case services.KindUnsupportedExtension, services.KindUnsupportedContentType:
		s.writeDetail(w, http.StatusUnprocessableEntity, err.Error())
	default:
		if errors.Is(err, errMalformed) {
			s.writeDetail(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		s.logger.Debug("responding with internal error", logging.Error(err))
		s.writeDetail(w, http.StatusInternalServerError, "internal error")
	}
}

var errMalformed = errors.New("invalid upload")

func malformed(message string) error {
	return &malformedError{message: message}
}

type malformedError struct{ message string }

func (e *malformedError) Error() string { return e.message }
func (e *malformedError) Is(target error) bool {
	return target == errMalformed
}

func tooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	return errors.As(err, &maxErr)
}

// limitedBody reports an exhausted body limit as a payload-too-large error so
// the pipeline classifies it like its own size check.
type limitedBody struct{ r io.Reader }

func (b limitedBody) Read(p []byte) (int, error) {
	n, err := b.r.Read(p)
	if err != nil && tooLarge(err) {
		return n, services.Wrap(services.ErrPayloadTooLarge, "", "", "request body too large", err)
	}
	return n, err
}
