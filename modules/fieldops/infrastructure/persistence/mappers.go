package persistence

import (
	"time"

	"github.com/jackc/pgx/v5/pgtype"
)

func nullableInt8(v pgtype.Int8) *int64 {
	if !v.Valid {
		return nil
	}
	n := v.Int64
	return &n
}

func nullableTime(v pgtype.Timestamptz) *time.Time {
	if !v.Valid {
		return nil
	}
	t := v.Time
	return &t
}

func nullableText(v pgtype.Text) string {
	if !v.Valid {
		return ""
	}
	return v.String
}

// textOrNil maps an empty string to SQL NULL.
func textOrNil(s string) any {
	if s == "" {
		return nil
	}
	return s
}
