// Package validation checks request payloads and configuration values.
//
// Two styles are supported. The fluent Validator collects field errors one
// check at a time; Validate runs go-playground/validator struct tags. Both
// report failures as an *errors.AppError with per-field details.
package validation
