package security

import (
	"errors"
	"path/filepath"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	// MaxSearchTermLength defines the maximum allowed length, in runes, of a name or email filter
	MaxSearchTermLength = 100
	// MaxFilenameLength bounds the original filename kept in a stored photo name
	MaxFilenameLength = 100
)

var (
	ErrSearchTermTooLong = errors.New("search term too long")
	ErrSearchTermInvalid = errors.New("search term contains invalid characters")
	ErrInvalidFilename   = errors.New("invalid filename")
)

// ValidateSearchTerm trims a name or email filter and checks it only contains
// characters that can appear in a student's name or email address.
func ValidateSearchTerm(term string) (string, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return "", nil
	}

	if utf8.RuneCountInString(term) > MaxSearchTermLength {
		return "", ErrSearchTermTooLong
	}

	for _, char := range term {
		if !isValidSearchChar(char) {
			return "", ErrSearchTermInvalid
		}
	}

	return term, nil
}

// isValidSearchChar checks if a character is safe for search terms
func isValidSearchChar(char rune) bool {
	return unicode.IsLetter(char) || unicode.IsNumber(char) || unicode.IsMark(char) ||
		char == ' ' || char == '-' || char == '_' || char == '.' ||
		char == '@' || char == '+' || char == '\''
}

// EscapeLikePattern escapes LIKE wildcards so the term matches literally.
// The result is meant for a LIKE clause declaring ESCAPE '\'.
func EscapeLikePattern(term string) string {
	if term == "" {
		return ""
	}

	term = strings.ReplaceAll(term, `\`, `\\`)
	term = strings.ReplaceAll(term, "%", `\%`)
	term = strings.ReplaceAll(term, "_", `\_`)

	return term
}

// SanitizeFilename reduces an uploaded filename to a safe base name:
// directories are stripped and anything outside [A-Za-z0-9._-] becomes '_'.
func SanitizeFilename(name string) (string, error) {
	name = filepath.Base(strings.ReplaceAll(strings.TrimSpace(name), `\`, "/"))
	if name == "." || name == "/" || name == "" {
		return "", ErrInvalidFilename
	}

	var b strings.Builder
	for _, r := range name {
		switch {
		case r < utf8.RuneSelf && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			b.WriteRune(r)
		case r == '.' || r == '-' || r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}

	cleaned := strings.TrimLeft(b.String(), ".")
	if cleaned == "" {
		return "", ErrInvalidFilename
	}
	if len(cleaned) > MaxFilenameLength {
		ext := filepath.Ext(cleaned)
		if len(ext) > 10 {
			ext = ""
		}
		cleaned = cleaned[:MaxFilenameLength-len(ext)] + ext
	}

	return cleaned, nil
}
