package server

import (
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
)

const dateOnlyLayout = "2006-01-02"

func parseSnowflakeID(value string) (snowflake.ID, bool) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return 0, false
	}
	parsed, err := snowflake.ParseString(trimmed)
	if err != nil || parsed == 0 {
		return 0, false
	}
	return parsed, true
}

// parseOptionalSnowflakeID distinguishes "absent" (zero, ok) from "present
// but malformed" (zero, not ok).
func parseOptionalSnowflakeID(value string) (snowflake.ID, bool) {
	if strings.TrimSpace(value) == "" {
		return 0, true
	}
	return parseSnowflakeID(value)
}

func parseDate(value string) (time.Time, bool) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return time.Time{}, false
	}
	parsed, err := time.Parse(dateOnlyLayout, trimmed)
	if err != nil {
		return time.Time{}, false
	}
	return parsed, true
}

func parseOptionalDate(value string) (time.Time, bool) {
	if strings.TrimSpace(value) == "" {
		return time.Time{}, true
	}
	return parseDate(value)
}
