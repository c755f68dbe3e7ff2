package accounts

// TemplateHelpers returns functions account views can call to render
// outcome errors.
//
// Usage:
//
//	engine := django.New("./views", ".html")
//	for name, fn := range accounts.TemplateHelpers() {
//		engine.AddFunc(name, fn)
//	}
//
// In templates, you can then use:
//
//	{% if has_error(error_map, "email") %}
//	{{ field_error(error_map, "email") }}
//	{{ status_label(status) }}
func TemplateHelpers() map[string]any {
	return map[string]any{
		"has_error":    hasError,
		"field_error":  fieldError,
		"status_label": statusLabel,
		"fields": map[string]string{
			"email":            FieldEmail,
			"password":         FieldPassword,
			"confirm_password": FieldPasswordConfirmation,
			"phone_number":     FieldPhone,
			"code":             FieldCode,
			"credentials":      FieldCredentials,
			"general":          FieldGeneral,
		},
	}
}

func hasError(errs any, field string) bool {
	_, ok := lookupError(errs, field)
	return ok
}

func fieldError(errs any, field string) string {
	msg, _ := lookupError(errs, field)
	return msg
}

func lookupError(errs any, field string) (string, bool) {
	switch e := errs.(type) {
	case map[string]string:
		msg, ok := e[field]
		return msg, ok
	case FieldErrors:
		return e.Get(field)
	case map[string]any:
		if msg, ok := e[field].(string); ok {
			return msg, true
		}
	}
	return "", false
}

func statusLabel(status any) string {
	var s OutcomeStatus
	switch v := status.(type) {
	case OutcomeStatus:
		s = v
	case string:
		s = OutcomeStatus(v)
	default:
		return ""
	}

	switch s {
	case StatusSuccess:
		return "Done"
	case StatusValidationFailed:
		return "Please correct the highlighted fields"
	case StatusAlreadyExists:
		return "Account already exists"
	case StatusNotFound:
		return "Account not found"
	case StatusProviderRejected:
		return "Request rejected"
	default:
		return ""
	}
}
