// Package validation checks intent input locally before any request is issued,
// using the validator/v10 library.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/tenantnotes/notes-client/internal/domain"
	clienterrors "github.com/tenantnotes/notes-client/internal/errors"
)

// Validator wraps go-playground/validator with client error conversion.
type Validator struct {
	v *validator.Validate
}

// New creates a validator configured for our domain.
func New() *Validator {
	v := validator.New()

	// Use JSON tag names in error messages
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := fld.Tag.Get("json")
		if name == "" || name == "-" {
			return fld.Name
		}
		if i := strings.IndexByte(name, ','); i >= 0 {
			return name[:i]
		}
		return name
	})

	return &Validator{v: v}
}

// Validate validates a struct and returns a VALIDATION error naming the first
// offending field, with every field message in Details.
func (v *Validator) Validate(s any) error {
	if err := v.v.Struct(s); err != nil {
		return v.formatError(err)
	}
	return nil
}

// NoteFields validates note input. Title and content are sent exactly as typed;
// whitespace alone counts as missing. Blank tag entries are dropped, the rest
// keep their text and order, repeats included.
func (v *Validator) NoteFields(f domain.NoteFields) (domain.NoteFields, error) {
	f = domain.NoteFields{Title: f.Title, Content: f.Content, Tags: DropBlankTags(f.Tags)}

	check := f
	check.Title = strings.TrimSpace(f.Title)
	check.Content = strings.TrimSpace(f.Content)
	if err := v.Validate(check); err != nil {
		return domain.NoteFields{}, err
	}
	return f, nil
}

// Login trims and validates credentials.
func (v *Validator) Login(email, password string) (domain.LoginRequest, error) {
	req := domain.LoginRequest{Email: strings.TrimSpace(email), Password: password}
	if err := v.Validate(req); err != nil {
		return domain.LoginRequest{}, err
	}
	return req, nil
}

// Invite trims and validates an invite. An empty role defaults to member.
func (v *Validator) Invite(email string, role domain.Role) (domain.InviteRequest, error) {
	if role == "" {
		role = domain.RoleMember
	}
	req := domain.InviteRequest{
		Email: strings.TrimSpace(email),
		Role:  domain.Role(strings.ToLower(string(role))),
	}
	if err := v.Validate(req); err != nil {
		return domain.InviteRequest{}, err
	}
	return req, nil
}

// DropBlankTags removes entries that are empty or only whitespace. The result is never nil.
func DropBlankTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		if strings.TrimSpace(tag) != "" {
			out = append(out, tag)
		}
	}
	return out
}

// formatError converts validator errors to client errors.
func (v *Validator) formatError(err error) error {
	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return clienterrors.Wrap(err, clienterrors.CodeValidation, "invalid input")
	}

	fieldErrors := make(map[string]string, len(validationErrs))
	fields := make([]string, 0, len(validationErrs))
	for _, e := range validationErrs {
		field := e.Field()
		if _, seen := fieldErrors[field]; !seen {
			fields = append(fields, field)
		}
		fieldErrors[field] = v.friendlyMessage(e)
	}

	first := fields[0]
	return clienterrors.ValidationWithDetails(fmt.Sprintf("%s %s", first, fieldErrors[first]), fieldErrors)
}

func (v *Validator) friendlyMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "min":
		return fmt.Sprintf("must be at least %s characters", e.Param())
	case "max":
		if e.Kind() == reflect.Slice {
			return fmt.Sprintf("must not have more than %s entries", e.Param())
		}
		return fmt.Sprintf("must not exceed %s characters", e.Param())
	case "oneof":
		return "must be one of: " + e.Param()
	default:
		return "is invalid"
	}
}
