package catalog

import (
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
)

const (
	MaxNameLength = 64
	MaxImageSize  = 1 << 20 // 1 MiB
)

var (
	validNameRegex   = regexp.MustCompile(`^[a-zA-Z0-9-]+$`)
	invalidNameChars = regexp.MustCompile(`[^a-zA-Z0-9-]`)

	allowedImageTypes = map[string]bool{
		"image/jpeg": true,
		"image/png":  true,
		"image/gif":  true,
		"image/webp": true,
	}
)

type FieldError struct {
	Field string `json:"field"`
	Msg   string `json:"msg"`
}

// ValidationError carries every field that failed validation
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	msgs := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		msgs = append(msgs, fmt.Sprintf("%s: %s", f.Field, f.Msg))
	}
	return "validation failed: " + strings.Join(msgs, "; ")
}

func (e *ValidationError) add(field, msg string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Msg: msg})
}

// Validate checks all fields of the new entry and returns a *ValidationError listing
// each failing one, or nil.
func Validate(entry NewEntry) error {
	vErr := &ValidationError{}

	switch {
	case entry.Name == "":
		vErr.add("name", "name is required")
	case len(entry.Name) > MaxNameLength:
		vErr.add("name", fmt.Sprintf("name must be at most %d characters", MaxNameLength))
	case !validNameRegex.MatchString(entry.Name):
		vErr.add("name", "Invalid characters: "+strings.Join(uniqueInvalidChars(entry.Name), " "))
	}

	if entry.TypeCode < MinTypeCode || entry.TypeCode > MaxTypeCode {
		vErr.add("typeCode", fmt.Sprintf("typeCode must be between %d and %d", MinTypeCode, MaxTypeCode))
	}

	switch {
	case len(entry.Image) == 0:
		vErr.add("image", "image is required")
	case len(entry.Image) > MaxImageSize:
		vErr.add("image", "image must be at most 1 MiB")
	case !allowedImageTypes[DetectImageType(entry.Image)]:
		vErr.add("image", "image must be jpeg, png, gif or webp")
	}

	if len(vErr.Fields) > 0 {
		return vErr
	}
	return nil
}

// DetectImageType sniffs the content type from the leading bytes
func DetectImageType(image []byte) string {
	return http.DetectContentType(image)
}

func uniqueInvalidChars(name string) []string {
	seen := map[string]bool{}
	var chars []string
	for _, c := range invalidNameChars.FindAllString(name, -1) {
		if seen[c] {
			continue
		}
		seen[c] = true
		chars = append(chars, strconv.Quote(c))
	}
	return chars
}
