// Package oracle talks to the external semantic task-analysis service. The
// service is best effort: callers treat any error as "no oracle data".
package oracle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/seantiz/taskroute/internal/model"
)

// ErrUnparseable is returned when the oracle reply holds no JSON object.
var ErrUnparseable = errors.New("unparseable oracle response")

// durationKey is the JSON key carrying the estimated duration in minutes.
const durationKey = "estimated_duration"

// Analysis is a possibly partial oracle answer. Factors only contains the
// factors the oracle actually supplied.
type Analysis struct {
	Factors           map[string]float64
	EstimatedDuration float64
	Reasoning         string
}

// Oracle analyzes a task description.
type Oracle interface {
	Analyze(ctx context.Context, description string) (Analysis, error)
}

// ParseAnalysis extracts the outermost JSON object from content and reads the
// factor scores and estimated duration from it. Fields that are missing or not
// numeric are left out of the result.
func ParseAnalysis(content string) (Analysis, error) {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end <= start {
		return Analysis{}, ErrUnparseable
	}

	var raw map[string]any
	if err := json.Unmarshal([]byte(content[start:end+1]), &raw); err != nil {
		return Analysis{}, fmt.Errorf("%w: %v", ErrUnparseable, err)
	}

	a := Analysis{Factors: make(map[string]float64)}
	for _, name := range model.FactorNames {
		if v, ok := number(raw[name]); ok {
			a.Factors[name] = v
		}
	}
	if v, ok := number(raw[durationKey]); ok && v > 0 {
		a.EstimatedDuration = v
	}
	if s, ok := raw["reasoning"].(string); ok {
		a.Reasoning = s
	}
	return a, nil
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	}
	return 0, false
}
