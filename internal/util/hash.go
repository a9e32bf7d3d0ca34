package util

import (
	"crypto/sha256"
	"fmt"
)

// IdentityHash creates a SHA256 hash over the identity key of a clipboard
// capture: the text content, or the image path for image captures. The two
// kinds are prefixed so a text capture can never collide with an image
// whose path happens to equal the text.
func IdentityHash(content, imagePath string) string {
	hasher := sha256.New()
	if imagePath != "" {
		hasher.Write([]byte("image:"))
		hasher.Write([]byte(imagePath))
	} else {
		hasher.Write([]byte("text:"))
		hasher.Write([]byte(content))
	}
	return fmt.Sprintf("%x", hasher.Sum(nil))
}
