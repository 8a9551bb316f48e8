// Package validation checks the structured JSON payloads that ride along
// with lifecycle entities before they are persisted.
package validation

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	apperrors "github.com/naalis/influfinder/internal/common/errors"
)

const deliverablesSchema = `{
	"type": "object",
	"properties": {
		"posts":        {"type": "integer", "minimum": 0},
		"stories":      {"type": "integer", "minimum": 0},
		"reels":        {"type": "integer", "minimum": 0},
		"platforms":    {"type": "array", "items": {"type": "string"}},
		"hashtags":     {"type": "array", "items": {"type": "string"}},
		"mentions":     {"type": "array", "items": {"type": "string"}},
		"deadline":     {"type": "string"},
		"usage_rights": {"type": "string"},
		"notes":        {"type": "string"}
	},
	"additionalProperties": true
}`

const captionsSchema = `{
	"type": "object",
	"properties": {
		"text":     {"type": "string", "maxLength": 5000},
		"hashtags": {"type": "array", "items": {"type": "string"}},
		"mentions": {"type": "array", "items": {"type": "string"}}
	},
	"additionalProperties": true
}`

var (
	compiledDeliverables = mustCompile(deliverablesSchema)
	compiledCaptions     = mustCompile(captionsSchema)
)

func mustCompile(raw string) *gojsonschema.Schema {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(raw))
	if err != nil {
		panic(fmt.Sprintf("invalid payload schema: %v", err))
	}
	return schema
}

// ValidateDeliverables checks an agreed_deliverables payload.
func ValidateDeliverables(payload map[string]interface{}) error {
	return validate(compiledDeliverables, "agreed_deliverables", payload)
}

// ValidateCaptions checks a submission captions payload.
func ValidateCaptions(payload map[string]interface{}) error {
	return validate(compiledCaptions, "captions", payload)
}

func validate(schema *gojsonschema.Schema, field string, payload map[string]interface{}) error {
	if payload == nil {
		return nil
	}
	result, err := schema.Validate(gojsonschema.NewGoLoader(payload))
	if err != nil {
		return apperrors.NewInvalidArgumentError(fmt.Sprintf("%s: %v", field, err))
	}
	if result.Valid() {
		return nil
	}
	msgs := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		msgs = append(msgs, e.String())
	}
	return apperrors.NewInvalidArgumentError(fmt.Sprintf("%s: %s", field, strings.Join(msgs, "; ")))
}
