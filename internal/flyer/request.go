package flyer

import (
	"errors"
	"strings"
)

// Form field names, in the order missing fields are reported.
const (
	FieldName             = "name"
	FieldFormerCompany    = "former_company"
	FieldNewCompany       = "new_company"
	FieldRole             = "role"
	FieldAnnouncementText = "announcement_text"
	FieldDate             = "date"
	FieldProfileImage     = "profile_image"
)

// TextFields lists the required text fields.
var TextFields = []string{
	FieldName,
	FieldFormerCompany,
	FieldNewCompany,
	FieldRole,
	FieldAnnouncementText,
	FieldDate,
}

// ErrValidation is matched by every *ValidationError.
var ErrValidation = errors.New("validation failed")

// ValidationError lists the required fields a submission is missing.
type ValidationError struct {
	Missing []string
}

func (e *ValidationError) Error() string {
	return "All fields are required: missing " + strings.Join(e.Missing, ", ")
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// Request is a validated flyer submission. Build it with NewRequest.
type Request struct {
	Name             string
	FormerCompany    string
	NewCompany       string
	Role             string
	AnnouncementText string
	Date             string
	Photo            []byte
}

// NewRequest validates the submitted text fields (keyed by form field name)
// and photo. Values are trimmed; any empty field or photo yields a
// *ValidationError naming all of them.
func NewRequest(fields map[string]string, photo []byte) (Request, error) {
	get := func(k string) string { return strings.TrimSpace(fields[k]) }

	var missing []string
	for _, k := range TextFields {
		if get(k) == "" {
			missing = append(missing, k)
		}
	}
	if len(photo) == 0 {
		missing = append(missing, FieldProfileImage)
	}
	if len(missing) > 0 {
		return Request{}, &ValidationError{Missing: missing}
	}

	return Request{
		Name:             get(FieldName),
		FormerCompany:    get(FieldFormerCompany),
		NewCompany:       get(FieldNewCompany),
		Role:             get(FieldRole),
		AnnouncementText: get(FieldAnnouncementText),
		Date:             get(FieldDate),
		Photo:            photo,
	}, nil
}
