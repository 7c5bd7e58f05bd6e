// Copyright (c) 2026 TTBT Enterprises LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package backend

import (
	"errors"
	"fmt"
	"net/mail"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// uuidRegex is a regex for standard UUIDs (8-4-4-4-12 hex digits)
var uuidRegex = regexp.MustCompile(`^[a-fA-F0-9]{8}-[a-fA-F0-9]{4}-[a-fA-F0-9]{4}-[a-fA-F0-9]{4}-[a-fA-F0-9]{12}$`)

// yardsRegex matches an optional leading minus sign followed by one or more
// digits. Decimals, empty strings, and non-numeric text all fail.
var yardsRegex = regexp.MustCompile(`^-?\d+$`)

// isValidUUID checks if the string is a valid UUID.
func isValidUUID(id string) bool {
	return uuidRegex.MatchString(id)
}

// isValidEmail checks if the string is a valid email address.
func isValidEmail(email string) bool {
	_, err := mail.ParseAddress(email)
	return err == nil
}

// ValidationError reports malformed user input. Handlers map it to a 400 and
// leave all state untouched.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

func validationErrorf(format string, a ...any) error {
	return &ValidationError{Reason: fmt.Sprintf(format, a...)}
}

// IsValidationError reports whether err is (or wraps) a ValidationError,
// returning the reason when it is.
func IsValidationError(err error) (string, bool) {
	var v *ValidationError
	if errors.As(err, &v) {
		return v.Reason, true
	}
	return "", false
}

// ParseYards validates and parses a raw yardage input string.
// Acceptance holds iff the trimmed input matches -?\d+ and the value is an
// integer in [MinYards, MaxYards]. "-0" parses to 0 and is accepted.
func ParseYards(raw string) (int, error) {
	s := strings.TrimSpace(raw)
	if !yardsRegex.MatchString(s) {
		return 0, validationErrorf("yards must be a whole number")
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		// Digits-only input can still overflow int.
		return 0, validationErrorf("yards must be between %d and %d", MinYards, MaxYards)
	}
	if n < MinYards || n > MaxYards {
		return 0, validationErrorf("yards must be between %d and %d", MinYards, MaxYards)
	}
	return n, nil
}

// isValidIcon checks the icon against the fixed catalog.
func isValidIcon(icon string) bool {
	for _, i := range PlayIcons {
		if i == icon {
			return true
		}
	}
	return false
}

// ValidatePlayInput checks a new play's name and icon, returning the trimmed
// name to persist.
func ValidatePlayInput(name, icon string) (string, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return "", validationErrorf("play name is required")
	}
	if len(trimmed) > MaxNameLen {
		return "", validationErrorf("play name too long (max %d chars)", MaxNameLen)
	}
	if !isValidIcon(icon) {
		return "", validationErrorf("unknown play icon: %q", icon)
	}
	return trimmed, nil
}

// ValidateGameInput checks a new game's opponent and date, returning the
// trimmed opponent to persist. Dates are calendar dates, YYYY-MM-DD.
func ValidateGameInput(opponent, gameDate string) (string, error) {
	trimmed := strings.TrimSpace(opponent)
	if trimmed == "" {
		return "", validationErrorf("opponent is required")
	}
	if len(trimmed) > MaxNameLen {
		return "", validationErrorf("opponent too long (max %d chars)", MaxNameLen)
	}
	if _, err := time.Parse("2006-01-02", gameDate); err != nil {
		return "", validationErrorf("invalid game date: %q", gameDate)
	}
	return trimmed, nil
}

// ValidateCallInput checks a record-call request in the order the UI reports
// problems: missing play, missing game, then the yardage itself.
func ValidateCallInput(playID, gameID, rawYards string) (int, error) {
	if playID == "" {
		return 0, validationErrorf("no play selected")
	}
	if !isValidUUID(playID) {
		return 0, validationErrorf("invalid play id: %q", playID)
	}
	if gameID == "" {
		return 0, validationErrorf("no active game")
	}
	if !isValidUUID(gameID) {
		return 0, validationErrorf("invalid game id: %q", gameID)
	}
	return ParseYards(rawYards)
}
