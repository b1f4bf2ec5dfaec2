package server

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

const (
	maxNameLength     = 20
	maxPromptLength   = 140
	maxCategoryLength = 32
	maxIdentityLength = 64
	minRoomCodeLength = 4
	maxRoomCodeLength = 8
)

var validatorOnce sync.Once

func registerValidators() {
	validatorOnce.Do(func() {
		engine, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		_ = engine.RegisterValidation("name", func(fl validator.FieldLevel) bool {
			_, err := validateName(fl.Field().String())
			return err == nil
		})
		_ = engine.RegisterValidation("prompt", func(fl validator.FieldLevel) bool {
			_, err := validatePrompt(fl.Field().String())
			return err == nil
		})
		_ = engine.RegisterValidation("identity", func(fl validator.FieldLevel) bool {
			_, err := validateIdentity(fl.Field().String())
			return err == nil
		})
		_ = engine.RegisterValidation("roomcode", func(fl validator.FieldLevel) bool {
			_, err := validateRoomCode(fl.Field().String())
			return err == nil
		})
		_ = engine.RegisterValidation("category", func(fl validator.FieldLevel) bool {
			_, err := validateCategory(fl.Field().String())
			return err == nil
		})
	})
}

func validateName(name string) (string, error) {
	return validateText("name", name, maxNameLength)
}

func validatePrompt(text string) (string, error) {
	return validateText("prompt", text, maxPromptLength)
}

// validateIdentity accepts client generated ids. UUIDs are canonicalized, anything else must be a short
// token of letters, digits, dashes and underscores.
func validateIdentity(id string) (string, error) {
	trimmed := strings.TrimSpace(id)
	if trimmed == "" {
		return "", errors.New("identity is required")
	}
	if parsed, err := uuid.Parse(trimmed); err == nil {
		return parsed.String(), nil
	}
	if len(trimmed) > maxIdentityLength {
		return "", fmt.Errorf("identity must be %d characters or fewer", maxIdentityLength)
	}
	if !isToken(trimmed) {
		return "", errors.New("identity contains unsupported characters")
	}
	return trimmed, nil
}

func validateRoomCode(code string) (string, error) {
	normalized := normalizeRoomCode(code)
	if len(normalized) < minRoomCodeLength || len(normalized) > maxRoomCodeLength {
		return "", fmt.Errorf("room code must be %d-%d characters", minRoomCodeLength, maxRoomCodeLength)
	}
	for _, r := range normalized {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			continue
		}
		return "", errors.New("room code must be alphanumeric")
	}
	return normalized, nil
}

func validateCategory(text string) (string, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return "", nil
	}
	if len(trimmed) > maxCategoryLength {
		return "", fmt.Errorf("prompt category must be %d characters or fewer", maxCategoryLength)
	}
	if !isToken(trimmed) {
		return "", errors.New("prompt category contains unsupported characters")
	}
	return strings.ToLower(trimmed), nil
}

func validateTimeLimit(seconds int) error {
	if seconds < minTimeLimit || seconds > maxTimeLimit {
		return fmt.Errorf("time limit must be between %d and %d seconds", minTimeLimit, maxTimeLimit)
	}
	return nil
}

func validateText(label, text string, maxLen int) (string, error) {
	trimmed := normalizeText(text)
	if trimmed == "" {
		return "", fmt.Errorf("%s is required", label)
	}
	if len(trimmed) > maxLen {
		return "", fmt.Errorf("%s must be %d characters or fewer", label, maxLen)
	}
	if !isSafeText(trimmed) {
		return "", fmt.Errorf("%s contains unsupported characters", label)
	}
	return trimmed, nil
}

func normalizeText(text string) string {
	fields := strings.Fields(strings.TrimSpace(text))
	return strings.Join(fields, " ")
}

func isToken(text string) bool {
	for _, r := range text {
		if r > 127 {
			return false
		}
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			continue
		}
		if r == '-' || r == '_' {
			continue
		}
		return false
	}
	return true
}

func isSafeText(text string) bool {
	for _, r := range text {
		if r > 127 {
			return false
		}
		if r >= 'a' && r <= 'z' {
			continue
		}
		if r >= 'A' && r <= 'Z' {
			continue
		}
		if r >= '0' && r <= '9' {
			continue
		}
		switch r {
		case ' ', '-', '_', '\'', '"', '.', ',', '!', '?', ':', ';', '&', '(', ')', '/', '#':
			continue
		default:
			return false
		}
	}
	return true
}
