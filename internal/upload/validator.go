package upload

import (
	"fmt"
	"mime"
	"path/filepath"
	"sort"
	"strings"

	"subtitler/internal/services"
	"subtitler/internal/textutil"
)

// DefaultFilename stands in for uploads that arrive without a filename.
const DefaultFilename = "input.mp4"

var allowedExtensions = map[string]struct{}{
	".mp4": {}, ".mov": {}, ".m4v": {}, ".mkv": {}, ".webm": {}, ".avi": {},
	".mpeg": {}, ".mpg": {}, ".ts": {}, ".wmv": {}, ".flv": {}, ".3gp": {},
}

// AllowedExtensions lists accepted file extensions in sorted order.
func AllowedExtensions() []string {
	out := make([]string, 0, len(allowedExtensions))
	for ext := range allowedExtensions {
		out = append(out, ext)
	}
	sort.Strings(out)
	return out
}

// Declared is what the client claims about an upload before any bytes are
// staged. ContentLength <= 0 means unknown.
type Declared struct {
	Filename      string
	ContentType   string
	ContentLength int64
}

// Media is an upload that has been staged inside a workspace.
type Media struct {
	Path        string
	Filename    string
	ContentType string
	Size        int64
}

// Validator enforces admission rules for uploads.
type Validator struct {
	maxBytes int64
}

// NewValidator returns a validator rejecting uploads over maxBytes.
func NewValidator(maxBytes int64) *Validator {
	return &Validator{maxBytes: maxBytes}
}

// MaxBytes returns the configured limit.
func (v *Validator) MaxBytes() int64 { return v.maxBytes }

// CheckDeclared applies the rules that need no staged bytes: extension,
// content type and declared length.
func (v *Validator) CheckDeclared(d Declared) error {
	name := EffectiveFilename(d.Filename)
	ext := strings.ToLower(filepath.Ext(name))
	if _, ok := allowedExtensions[ext]; !ok {
		if ext == "" {
			ext = "(none)"
		}
		return services.Wrap(services.ErrUnsupportedExtension, "", "",
			fmt.Sprintf("extension %s is not one of %s", ext, strings.Join(AllowedExtensions(), ", ")), nil)
	}
	if ct := strings.TrimSpace(d.ContentType); ct != "" {
		mediaType, _, err := mime.ParseMediaType(ct)
		if err != nil || !acceptedMediaType(mediaType) {
			return services.Wrap(services.ErrUnsupportedContentType, "", "",
				fmt.Sprintf("content type %q is not video/* or application/octet-stream", ct), nil)
		}
	}
	if d.ContentLength > 0 {
		if err := v.CheckStaged(d.ContentLength); err != nil {
			return err
		}
	}
	return nil
}

// CheckStaged enforces the size limit on the number of bytes actually received.
func (v *Validator) CheckStaged(size int64) error {
	if v.maxBytes > 0 && size > v.maxBytes {
		return TooLarge(v.maxBytes)
	}
	return nil
}

// TooLarge builds the payload-too-large error for a limit in bytes.
func TooLarge(maxBytes int64) error {
	return services.Wrap(services.ErrPayloadTooLarge, "", "",
		fmt.Sprintf("upload exceeds %d MB limit", maxBytes/(1024*1024)), nil)
}

func acceptedMediaType(mediaType string) bool {
	mediaType = strings.ToLower(mediaType)
	return strings.HasPrefix(mediaType, "video/") || mediaType == "application/octet-stream"
}

// EffectiveFilename returns the base name of filename with unsafe characters
// replaced, or DefaultFilename when nothing usable remains.
func EffectiveFilename(filename string) string {
	base := filepath.Base(strings.ReplaceAll(strings.TrimSpace(filename), `\`, "/"))
	base = textutil.SanitizeFileName(base)
	if base == "" || base == "." || base == "/" {
		return DefaultFilename
	}
	return base
}

// DownloadName returns the attachment name for the captioned result:
// "<stem>_subs.mp4".
func DownloadName(filename string) string {
	name := EffectiveFilename(filename)
	stem := strings.TrimSuffix(name, filepath.Ext(name))
	if stem == "" {
		stem = strings.TrimSuffix(DefaultFilename, filepath.Ext(DefaultFilename))
	}
	return stem + "_subs.mp4"
}
