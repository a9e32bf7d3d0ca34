package store

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidateCategoryName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr error
	}{
		{"valid custom name", "Projects", nil},
		{"empty", "", ErrEmptyName},
		{"whitespace only", "   \t", ErrEmptyName},
		{"too long", strings.Repeat("x", 51), ErrNameTooLong},
		{"exactly max length", strings.Repeat("x", 50), nil},
		{"reserved password", "password", ErrReservedName},
		{"reserved password case variant", "PaSsWoRd", ErrReservedName},
		{"builtin name", "email", ErrReservedName},
		{"builtin case variant", "EMAIL", ErrReservedName},
		{"filter sentinel", "all", ErrReservedName},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateCategoryName(tt.input)
			if tt.wantErr == nil {
				require.NoError(t, err)
			} else {
				require.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestValidateTagName(t *testing.T) {
	require.NoError(t, ValidateTagName("urgent"))
	require.ErrorIs(t, ValidateTagName("favorite"), ErrReservedName)
	require.ErrorIs(t, ValidateTagName("Password"), ErrReservedName)
	require.ErrorIs(t, ValidateTagName("  "), ErrEmptyName)

	// Tag and category reserved lists are distinct: built-in category
	// names are fine as tags.
	require.NoError(t, ValidateTagName("email"))
}
