package assets

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateID(t *testing.T) {
	valid := []string{"1700000000123.png", "1700000000123", "a.", "name with spaces.jpg", "..png"}
	for _, id := range valid {
		assert.NoError(t, ValidateID(id), id)
	}

	invalid := []string{
		"",
		".",
		"..",
		"../secret",
		"a/../../b",
		"/etc/passwd",
		`..\secret`,
		"nested/file.png",
		"nul\x00byte",
		tempPrefix + "123",
	}
	for _, id := range invalid {
		assert.ErrorIs(t, ValidateID(id), ErrPathTraversal, "%q", id)
	}
}

func TestDeliveryURL(t *testing.T) {
	assert.Equal(t, "/uploads/1700000000123.png", DeliveryURL("1700000000123.png"))
	assert.Equal(t, "/uploads/my%20pic.png", DeliveryURL("my pic.png"))
}
