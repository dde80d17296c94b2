// Package utils holds JSON recovery helpers for language-model output.
package utils

import (
	"encoding/json"
	"fmt"
	"strings"

	jsonrepair "github.com/RealAlexandreAI/json-repair"
	hjson "github.com/hjson/hjson-go/v4"
)

// ExtractJSONBlock pulls the JSON payload out of free-text model output:
// markdown code fences are stripped and everything outside the outermost
// brace/bracket pair is discarded. The input is returned unchanged when no
// JSON-looking block is found.
func ExtractJSONBlock(text string) string {
	clean := strings.ReplaceAll(text, "```json", "")
	clean = strings.ReplaceAll(clean, "```", "")
	clean = strings.TrimSpace(clean)

	objStart := strings.Index(clean, "{")
	arrStart := strings.Index(clean, "[")
	start := objStart
	end := strings.LastIndex(clean, "}")
	if arrStart >= 0 && (objStart < 0 || arrStart < objStart) {
		start = arrStart
		end = strings.LastIndex(clean, "]")
	}
	if start >= 0 && end > start {
		return clean[start : end+1]
	}
	// Truncated output may lack the closing bracket; keep the tail and let
	// repair balance it.
	if start >= 0 {
		return clean[start:]
	}
	return clean
}

// RepairJSON fixes common model-output defects: unclosed arrays/objects
// (truncation), single quotes, trailing commas, comments, bare keys.
func RepairJSON(malformed string) (string, error) {
	repaired, err := jsonrepair.RepairJSON(malformed)
	if err != nil {
		return "", fmt.Errorf("json repair failed: %w", err)
	}
	return repaired, nil
}

// SmartParse decodes model output into schema trying progressively more
// lenient strategies: strict JSON, bracket-balancing repair, then Hjson.
func SmartParse(input string, schema interface{}) error {
	if err := json.Unmarshal([]byte(input), schema); err == nil {
		return nil
	}

	if repaired, err := RepairJSON(input); err == nil {
		if err := json.Unmarshal([]byte(repaired), schema); err == nil {
			return nil
		}
	}

	if err := hjson.Unmarshal([]byte(input), schema); err == nil {
		return nil
	}

	return fmt.Errorf("all parsing strategies failed for model output (%d bytes)", len(input))
}
