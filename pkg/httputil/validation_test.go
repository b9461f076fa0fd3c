package httputil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldscan/fieldscan-backend/pkg/errors"
)

type uploadForm struct {
	Schema string `form:"extraction_schema" validate:"required"`
	Label  string `form:"label" validate:"omitempty,oneof=a b"`
	Flag   string `json:"flag,omitempty" validate:"omitempty,boolean"`
	Plain  string `validate:"omitempty,oneof=x"`
}

func TestValidate_DetailsUseFormNames(t *testing.T) {
	err := Validate(uploadForm{Label: "c", Flag: "maybe", Plain: "y"})
	require.Error(t, err)

	var appErr *errors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, map[string]string{
		"extraction_schema": "this field is required",
		"label":             "must be one of: a b",
		"flag":              "must be a boolean",
		"Plain":             "must be one of: x",
	}, appErr.Details)
}

func TestValidate_Passes(t *testing.T) {
	assert.NoError(t, Validate(uploadForm{Schema: "ALL", Label: "a", Flag: "true"}))
}
