package flyer

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRequest_MissingFields(t *testing.T) {
	full := map[string]string{
		FieldName:             "Jane Doe",
		FieldFormerCompany:    "Google",
		FieldNewCompany:       "Acme Corp",
		FieldRole:             "Engineer",
		FieldAnnouncementText: "Excited!",
		FieldDate:             "2024-01-01",
	}
	without := func(keys ...string) map[string]string {
		m := make(map[string]string, len(full))
		for k, v := range full {
			m[k] = v
		}
		for _, k := range keys {
			delete(m, k)
		}
		return m
	}

	tests := []struct {
		name    string
		fields  map[string]string
		photo   []byte
		missing []string
	}{
		{"no role", without(FieldRole), []byte{1}, []string{FieldRole}},
		{"blank name", func() map[string]string { m := without(); m[FieldName] = "   "; return m }(), []byte{1}, []string{FieldName}},
		{"no photo", without(), nil, []string{FieldProfileImage}},
		{"several in canonical order", without(FieldDate, FieldName), nil, []string{FieldName, FieldDate, FieldProfileImage}},
		{"everything", map[string]string{}, nil, append(append([]string{}, TextFields...), FieldProfileImage)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRequest(tt.fields, tt.photo)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrValidation))

			var verr *ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Equal(t, tt.missing, verr.Missing)
		})
	}
}

func TestNewRequest_TrimsValues(t *testing.T) {
	req, err := NewRequest(map[string]string{
		FieldName:             "  Jane Doe ",
		FieldFormerCompany:    "Google",
		FieldNewCompany:       "Acme Corp",
		FieldRole:             "Engineer",
		FieldAnnouncementText: "Excited!",
		FieldDate:             "\t2024-01-01\n",
	}, []byte{1, 2, 3})
	require.NoError(t, err)
	assert.Equal(t, "Jane Doe", req.Name)
	assert.Equal(t, "2024-01-01", req.Date)
	assert.Equal(t, []byte{1, 2, 3}, req.Photo)
}

func TestValidationError_Message(t *testing.T) {
	err := &ValidationError{Missing: []string{FieldName, FieldProfileImage}}
	assert.Equal(t, "All fields are required: missing name, profile_image", err.Error())
}
