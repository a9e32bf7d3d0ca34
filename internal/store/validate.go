package store

import (
	"errors"
	"strings"
	"unicode/utf8"
)

const maxNameLength = 50

var (
	ErrEmptyName      = errors.New("name is empty")
	ErrNameTooLong    = errors.New("name exceeds 50 characters")
	ErrReservedName   = errors.New("name is reserved")
	ErrDuplicateName  = errors.New("name already exists")
	ErrCreateInFlight = errors.New("a create for this name is already in progress")
	ErrNotFound       = errors.New("not found")
)

// Built-in categories seeded at startup. Their names can never be deleted
// or reused for custom categories.
var builtinCategories = []struct {
	Name  string
	Icon  string
	Color string
}{
	{"text", "doc.text", "#607d8b"},
	{"url", "link", "#1976d2"},
	{"email", "envelope", "#e65100"},
	{"code", "chevron.left.forwardslash.chevron.right", "#2e7d32"},
	{"color", "paintpalette", "#9c27b0"},
	{"phone", "phone", "#00838f"},
	{"number", "number", "#5d4037"},
	{"image", "photo", "#c62828"},
}

// Default tags seeded at startup; never deletable.
var defaultTags = []struct {
	Name  string
	Icon  string
	Color string
}{
	{"favorite", "star", "#fbc02d"},
	{"work", "briefcase", "#1976d2"},
	{"personal", "person", "#2e7d32"},
	{"important", "exclamationmark", "#c62828"},
}

var (
	reservedCategoryNames = buildReserved(categoryNames(), "all", "password")
	reservedTagNames      = buildReserved(tagNames(), "password")
)

func categoryNames() []string {
	names := make([]string, len(builtinCategories))
	for i, c := range builtinCategories {
		names[i] = c.Name
	}
	return names
}

func tagNames() []string {
	names := make([]string, len(defaultTags))
	for i, t := range defaultTags {
		names[i] = t.Name
	}
	return names
}

func buildReserved(base []string, extra ...string) map[string]struct{} {
	reserved := make(map[string]struct{}, len(base)+len(extra))
	for _, name := range append(base, extra...) {
		reserved[strings.ToLower(name)] = struct{}{}
	}
	return reserved
}

// ValidateCategoryName rejects empty or whitespace-only names, names longer
// than 50 characters, and case-insensitive matches against the reserved
// category word list.
func ValidateCategoryName(name string) error {
	return validateName(name, reservedCategoryNames)
}

// ValidateTagName applies the shared naming rule with the tag reserved list.
func ValidateTagName(name string) error {
	return validateName(name, reservedTagNames)
}

func validateName(name string, reserved map[string]struct{}) error {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return ErrEmptyName
	}
	if utf8.RuneCountInString(trimmed) > maxNameLength {
		return ErrNameTooLong
	}
	if _, ok := reserved[strings.ToLower(trimmed)]; ok {
		return ErrReservedName
	}
	return nil
}

// nameKey normalizes a name for collision and in-flight checks.
func nameKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
