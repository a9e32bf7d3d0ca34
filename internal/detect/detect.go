package detect

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
)

// Content types attached to captured clipboard items. Images are classified
// by the monitor directly; everything else comes out of Classify.
const (
	TypeText   = "text"
	TypeURL    = "url"
	TypeEmail  = "email"
	TypeCode   = "code"
	TypeColor  = "color"
	TypePhone  = "phone"
	TypeNumber = "number"
	TypeImage  = "image"
)

var (
	emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
	urlPattern   = regexp.MustCompile(`^(https?|ftp)://[^\s]+$|^www\.[^\s]+\.[a-zA-Z]{2,}[^\s]*$`)
	phonePattern = regexp.MustCompile(`^\+?[0-9][0-9 ()\-.]{6,18}[0-9]$`)
)

// codeMarkers are substrings that strongly suggest source code when they
// appear in multi-token text.
var codeMarkers = []string{
	"func ", "function ", "def ", "class ", "import ", "package ",
	"return ", "const ", "var ", "=>", "</", "/>", "#include", "SELECT ",
	"select ", "public ", "private ", "println", "console.log",
}

// Classify inspects text content and returns its detected content type and
// the built-in category name the item is filed under. The category equals
// the type name, matching the seeded built-in categories.
func Classify(content string) (contentType, category string) {
	trimmed := strings.TrimSpace(content)

	switch {
	case trimmed == "":
		contentType = TypeText
	case emailPattern.MatchString(trimmed):
		contentType = TypeEmail
	case urlPattern.MatchString(trimmed):
		contentType = TypeURL
	case isHexColor(trimmed):
		contentType = TypeColor
	case isNumber(trimmed):
		contentType = TypeNumber
	case phonePattern.MatchString(trimmed):
		contentType = TypePhone
	case looksLikeCode(trimmed):
		contentType = TypeCode
	default:
		contentType = TypeText
	}

	return contentType, contentType
}

func isHexColor(s string) bool {
	if !strings.HasPrefix(s, "#") {
		return false
	}
	if len(s) != 4 && len(s) != 7 {
		return false
	}
	if len(s) == 4 {
		// colorful only parses #rrggbb; expand the short form first.
		s = "#" + strings.Repeat(string(s[1]), 2) +
			strings.Repeat(string(s[2]), 2) +
			strings.Repeat(string(s[3]), 2)
	}
	_, err := colorful.Hex(s)
	return err == nil
}

func isNumber(s string) bool {
	normalized := strings.ReplaceAll(s, ",", "")
	if _, err := strconv.ParseFloat(normalized, 64); err == nil {
		return true
	}
	return false
}

func looksLikeCode(s string) bool {
	for _, marker := range codeMarkers {
		if strings.Contains(s, marker) {
			return true
		}
	}
	// Braces plus a statement separator on multiple lines reads as code
	// even without a recognized keyword.
	if strings.Contains(s, "\n") &&
		strings.ContainsAny(s, "{}") &&
		strings.ContainsAny(s, ";=") {
		return true
	}
	return false
}
