package user

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"

	"livechat/internal/pkg/errs"
)

// MaxPasswordBytes is the longest password bcrypt accepts.
const MaxPasswordBytes = 72

var validate = validator.New(validator.WithRequiredStructEnabled())

// fieldErrorCodes maps a failing struct field to its client-facing error.
var fieldErrorCodes = map[string]int{
	"Username": errs.ErrInvalidUsername,
	"Email":    errs.ErrInvalidEmail,
	"Password": errs.ErrInvalidPassword,
	"Bio":      errs.ErrBioTooLong,
	"Avatar":   errs.ErrInvalidAvatar,
}

// Registration is the body of a sign-up request.
type Registration struct {
	Username string `json:"username" validate:"required,min=3,max=20"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

// ProfileUpdate is the body of a profile edit. Nil fields are left untouched.
type ProfileUpdate struct {
	Bio    *string `json:"bio,omitempty" validate:"omitempty,max=200"`
	Avatar *string `json:"avatar,omitempty" validate:"omitempty,url"`
}

// guestJoin validates the username chosen by a guest connection.
type guestJoin struct {
	Username string `validate:"required,min=3,max=20"`
}

// Normalize trims the username and normalizes the email in place.
func (r *Registration) Normalize() {
	r.Username = strings.TrimSpace(r.Username)
	r.Email = NormalizeEmail(r.Email)
}

// Validate checks the registration fields in order and reports the first failure.
func (r Registration) Validate() *errs.CustomError {
	if err := structError(validate.Struct(r)); err != nil {
		return err
	}

	if len(r.Password) > MaxPasswordBytes {
		return errs.NewError(errs.ErrInvalidPassword)
	}

	return nil
}

// Validate checks the provided profile fields.
func (p ProfileUpdate) Validate() *errs.CustomError {
	return structError(validate.Struct(p))
}

// ValidateUsername checks a guest username against the account username rules.
func ValidateUsername(username string) *errs.CustomError {
	return structError(validate.Struct(guestJoin{Username: username}))
}

// structError converts a validator result into the error of its first failing field.
func structError(err error) *errs.CustomError {
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return errs.NewError(errs.ErrInvalidParams)
	}

	code, ok := fieldErrorCodes[fieldErrs[0].StructField()]
	if !ok {
		return errs.NewError(errs.ErrInvalidParams)
	}

	return errs.NewError(code)
}
