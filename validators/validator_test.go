package validators

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anonto42/nano-midea/socialgraph/internal/models"
)

func TestValidateReportsJSONFieldNames(t *testing.T) {
	v := NewValidator()

	err := v.Validate(&models.CreatePostRequest{ImageURL: "not a url"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "body is required")
	assert.Contains(t, err.Error(), "image_url must be an absolute http(s) URL")
}

func TestValidateAcceptsGoodInput(t *testing.T) {
	v := NewValidator()

	assert.NoError(t, v.Validate(&models.CreatePostRequest{Body: "hello", ImageURL: "https://img.example.com/1.png"}))
	assert.NoError(t, v.Validate(&models.RegisterDeviceRequest{Token: "abc", Platform: "ios"}))
}

func TestValidateOneOf(t *testing.T) {
	err := NewValidator().Validate(&models.RegisterDeviceRequest{Token: "abc", Platform: "symbian"})
	require.Error(t, err)
	assert.Equal(t, "platform must be one of: android ios web", err.Error())
}
