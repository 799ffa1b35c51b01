// Package validation checks request payloads before they reach the
// account service.
//
// Struct tags are checked with go-playground/validator; field names in
// messages follow the json or form tag:
//
//	type registerRequest struct {
//	    Email string `json:"email" validate:"required,email,max=255"`
//	}
//	err := validation.Validate(req)
//
// Rules that depend on more than one field use the collector:
//
//	v := validation.New()
//	v.Custom(req.Username != "" || req.Email != "", "username", "is required")
//	err := v.Err()
package validation
