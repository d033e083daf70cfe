package logger

import (
	"log/slog"

	"github.com/google/uuid"
)

// Error creates an attribute for a single error under the key "error".
// If err is nil, it returns an empty Attr.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.Any("error", err)
}

// OrganizationID records the organization identifier under the key "organization_id".
func OrganizationID(id uuid.UUID) slog.Attr {
	return slog.String("organization_id", id.String())
}

// BrandID records the brand identifier under the key "brand_id".
func BrandID(id uuid.UUID) slog.Attr {
	return slog.String("brand_id", id.String())
}

// JobID records the job identifier under the key "job_id".
func JobID(id uuid.UUID) slog.Attr {
	return slog.String("job_id", id.String())
}

// ContentID records the content item identifier under the key "content_id".
func ContentID(id uuid.UUID) slog.Attr {
	return slog.String("content_id", id.String())
}

// Platform records a social platform name under the key "platform".
func Platform(platform string) slog.Attr {
	return slog.String("platform", platform)
}
