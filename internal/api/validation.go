package api

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/ppiankov/dailyreport/internal/models"
)

const (
	// MaxContentLength bounds a single report's content in characters.
	MaxContentLength = 20_000

	// MaxImportPayloadBytes bounds an import document.
	MaxImportPayloadBytes = 8 * 1024 * 1024 // 8 MiB

	// MaxRangeDays bounds the span of a weekly summary request.
	MaxRangeDays = 366
)

// ValidateDate verifies the report key is a real YYYY-MM-DD date.
func ValidateDate(date string) error {
	_, err := models.ParseDate(date)
	return err
}

// ValidateContent checks that content is non-blank and within limits.
func ValidateContent(content string) error {
	content = strings.TrimSpace(content)
	if content == "" {
		return fmt.Errorf("content is required")
	}
	if utf8.RuneCountInString(content) > MaxContentLength {
		return fmt.Errorf("content exceeds %d characters", MaxContentLength)
	}
	return nil
}

// ValidateRange checks range boundaries and span.
func ValidateRange(start, end string) (models.DateRange, error) {
	r, err := models.NewDateRange(start, end)
	if err != nil {
		return models.DateRange{}, err
	}
	// Count in UTC so daylight saving shifts never shorten a day
	s, _ := time.Parse(models.DateLayout, r.Start)
	e, _ := time.Parse(models.DateLayout, r.End)
	if days := int(e.Sub(s).Hours()/24) + 1; days > MaxRangeDays {
		return models.DateRange{}, fmt.Errorf("range spans %d days (max %d)", days, MaxRangeDays)
	}
	return r, nil
}

// ValidateImportPayload performs the cheap structural checks on an import
// document before it is decoded.
func ValidateImportPayload(data string) error {
	data = strings.TrimSpace(data)
	if data == "" {
		return fmt.Errorf("import payload is empty")
	}
	if len(data) > MaxImportPayloadBytes {
		return fmt.Errorf("import payload exceeds %d bytes", MaxImportPayloadBytes)
	}
	if !json.Valid([]byte(data)) {
		return fmt.Errorf("import payload must be valid JSON")
	}
	return nil
}

// ValidateCredentials checks the chat API credential pair.
func ValidateCredentials(token, botID string) error {
	if strings.TrimSpace(token) == "" {
		return fmt.Errorf("token is required")
	}
	if strings.TrimSpace(botID) == "" {
		return fmt.Errorf("bot id is required")
	}
	return nil
}
