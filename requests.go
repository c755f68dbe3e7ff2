package accounts

import (
	"errors"
	"sort"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/nyaruka/phonenumbers"
)

// Field keys used in outcomes and form views
const (
	FieldEmail                = "email"
	FieldPassword             = "password"
	FieldPasswordConfirmation = "confirm_password"
	FieldPhone                = "phone_number"
	FieldCode                 = "code"
	FieldCredentials          = "credentials"
	FieldGeneral              = "general"
)

const (
	MessageEmailRequired    = "Email is required."
	MessageEmailInvalid     = "Email must be a valid email address."
	MessagePasswordRequired = "Password is required."
	MessagePasswordLength   = "Password must be at least six characters long."
	MessagePasswordMismatch = "Password and its confirmation do not match."
	MessagePhoneInvalid     = "Phone number is not valid."
	MessageCodeRequired     = "Confirmation code is required."
	MessageUserExists       = "User with this email already exists."
	MessageUserNotFound     = "A user with this email was not found."
	MessageBadCredentials   = "Email and password do not match."
	MessageInvalidRequest   = "The request is not valid."
	MessageProviderRejected = "The request was rejected by the identity provider."
)

// MinPasswordLength is the shortest password accepted before contacting the provider
const MinPasswordLength = 6

// DefaultPhoneRegion is used to parse phone numbers without a country prefix
const DefaultPhoneRegion = "US"

// Credentials is a login attempt
type Credentials struct {
	Email           string `form:"email" json:"email"`
	Password        string `form:"password" json:"password"`
	RememberSession bool   `form:"remember_me" json:"remember_me"`
}

// Validate will run validation rules
func (r Credentials) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(
			&r.Email,
			validation.Required.Error(MessageEmailRequired),
			is.Email.Error(MessageEmailInvalid),
		),
		validation.Field(
			&r.Password,
			validation.Required.Error(MessagePasswordRequired),
		),
	)
}

// SignupRequest is a new account request
type SignupRequest struct {
	Email                string `form:"email" json:"email"`
	Password             string `form:"password" json:"password"`
	PasswordConfirmation string `form:"confirm_password" json:"confirm_password"`
	// Phone is optional, sent to the provider in E.164 when present
	Phone string `form:"phone_number" json:"phone_number"`
}

// Validate will validate the request. Phone numbers are checked
// against DefaultPhoneRegion.
func (r SignupRequest) Validate() error {
	return r.ValidateWithRegion(DefaultPhoneRegion)
}

// ValidateWithRegion validates the request parsing local phone numbers in region
func (r SignupRequest) ValidateWithRegion(region string) error {
	return validation.ValidateStruct(&r,
		validation.Field(
			&r.Email,
			validation.Required.Error(MessageEmailRequired),
			is.Email.Error(MessageEmailInvalid),
		),
		validation.Field(
			&r.Password,
			validation.Required.Error(MessagePasswordRequired),
			validation.Length(MinPasswordLength, 0).Error(MessagePasswordLength),
		),
		validation.Field(
			&r.PasswordConfirmation,
			validation.By(ValidateStringEquals(r.Password)),
		),
		validation.Field(
			&r.Phone,
			validation.By(ValidatePhoneNumber(region)),
		),
	)
}

// ConfirmationRequest carries the code the provider sent to the user
type ConfirmationRequest struct {
	Email string `form:"email" json:"email"`
	Code  string `form:"code" json:"code"`
}

// Validate will validate the request
func (r ConfirmationRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(
			&r.Email,
			validation.Required.Error(MessageEmailRequired),
		),
		validation.Field(
			&r.Code,
			validation.Required.Error(MessageCodeRequired),
		),
	)
}

// ValidateStringEquals will check that both values match
func ValidateStringEquals(str string) validation.RuleFunc {
	return func(value any) error {
		s, _ := value.(string)
		if s != str {
			return errors.New(MessagePasswordMismatch)
		}
		return nil
	}
}

// ValidatePhoneNumber accepts empty values and numbers phonenumbers considers valid
func ValidatePhoneNumber(region string) validation.RuleFunc {
	return func(value any) error {
		s, _ := value.(string)
		if strings.TrimSpace(s) == "" {
			return nil
		}
		if _, err := NormalizePhone(s, region); err != nil {
			return errors.New(MessagePhoneInvalid)
		}
		return nil
	}
}

// NormalizePhone formats a phone number as E.164
func NormalizePhone(phone, region string) (string, error) {
	if region == "" {
		region = DefaultPhoneRegion
	}

	num, err := phonenumbers.Parse(strings.TrimSpace(phone), strings.ToUpper(region))
	if err != nil {
		return "", err
	}

	if !phonenumbers.IsValidNumber(num) {
		return "", errors.New(MessagePhoneInvalid)
	}

	return phonenumbers.Format(num, phonenumbers.E164), nil
}

// FormatValidationErrors turns ozzo validation errors into ordered field errors.
// Fields listed in order come first, anything else follows alphabetically.
func FormatValidationErrors(err error, order ...string) FieldErrors {
	out := FieldErrors{}
	if err == nil {
		return out
	}

	var verrs validation.Errors
	if !errors.As(err, &verrs) {
		out.Add(FieldGeneral, err.Error())
		return out
	}

	seen := map[string]bool{}
	for _, field := range order {
		if ferr, ok := verrs[field]; ok && ferr != nil {
			out.Add(field, ferr.Error())
			seen[field] = true
		}
	}

	rest := make([]string, 0, len(verrs))
	for field, ferr := range verrs {
		if !seen[field] && ferr != nil {
			rest = append(rest, field)
		}
	}
	sort.Strings(rest)

	for _, field := range rest {
		out.Add(field, verrs[field].Error())
	}

	return out
}

// FormatValidationErrorToMap flattens validation errors for views
func FormatValidationErrorToMap(err error) map[string]string {
	return FormatValidationErrors(err).Map()
}
