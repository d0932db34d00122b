package router

import (
	"fmt"
	"math/rand"
	"strconv"
	"strings"
)

// fieldError names the offending field so the ephemeral error message can
// point at it directly.
type fieldError struct {
	Field  string
	Reason string
}

func (e *fieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func validateSteps(raw string) (int, *fieldError) {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, &fieldError{"steps", "must be a whole number"}
	}
	if n < 1 || n > 150 {
		return 0, &fieldError{"steps", "must be between 1 and 150"}
	}
	return n, nil
}

func validateCFG(raw string) (float64, *fieldError) {
	f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0, &fieldError{"cfg", "must be a number"}
	}
	if f < 1 || f > 30 {
		return 0, &fieldError{"cfg", "must be between 1 and 30"}
	}
	return f, nil
}

// validateSeed accepts an explicit uint32 literal, or empty/"random" which
// rerolls a fresh random seed.
func validateSeed(raw string) (uint32, *fieldError) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" || strings.EqualFold(trimmed, "random") {
		return rand.Uint32(), nil
	}
	n, err := strconv.ParseUint(trimmed, 10, 32)
	if err != nil {
		return 0, &fieldError{"seed", "must be an integer between 0 and 4294967295, or \"random\""}
	}
	return uint32(n), nil
}

func validatePositivePrompt(s string) *fieldError {
	if strings.TrimSpace(s) == "" {
		return &fieldError{"positive_prompt", "must not be empty"}
	}
	return nil
}

func validateAdapterStrength(strength float64) *fieldError {
	if strength < 0.1 || strength > 3.0 {
		return &fieldError{"adapter_strength", "must be between 0.1 and 3.0"}
	}
	return nil
}

func randomSeed() uint32 {
	return rand.Uint32()
}
