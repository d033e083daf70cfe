// Package validator provides composable field-level validation rules that
// collect structured errors instead of failing on the first violation.
//
// Rules are plain values combined with Apply:
//
//	err := validator.Apply(
//		validator.Required("content", params.Content),
//		validator.MaxLen("content", params.Content, 5000),
//		validator.NonEmptySlice("target_platforms", params.TargetPlatforms),
//	)
//	if errs := validator.Extract(err); errs != nil {
//		// errs.ToMap() -> map[field][]message for API responses
//	}
//
// The returned ValidationErrors type implements error and survives
// errors.As through wrapping, so callers can surface per-field detail
// at the API boundary without string parsing.
package validator
