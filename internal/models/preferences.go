// internal/models/preferences.go
package models

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// Preferences are the caller's constraints on an acceptable restaurant.
type Preferences struct {
	HiddenTags   []string `json:"hiddenTags,omitempty"`
	RequiredTags []string `json:"requiredTags,omitempty"`
	MaxResults   int      `json:"maxResults,omitempty"`
}

const preferencesSchema = `{
	"type": "object",
	"properties": {
		"hiddenTags": {
			"type": "array",
			"items": {"type": "string", "minLength": 1},
			"maxItems": 50
		},
		"requiredTags": {
			"type": "array",
			"items": {"type": "string", "minLength": 1},
			"maxItems": 50
		},
		"maxResults": {
			"type": "integer",
			"minimum": 1,
			"maximum": 100
		}
	},
	"additionalProperties": false
}`

var preferencesSchemaLoader = gojsonschema.NewStringLoader(preferencesSchema)

// ValidatePreferences validates a raw preferences document against the
// schema. Used when a search is created, before the document is persisted.
func ValidatePreferences(doc []byte) error {
	result, err := gojsonschema.Validate(preferencesSchemaLoader, gojsonschema.NewBytesLoader(doc))
	if err != nil {
		return fmt.Errorf("preferences validation: %w", err)
	}
	if result.Valid() {
		return nil
	}

	msgs := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		msgs = append(msgs, desc.String())
	}
	return fmt.Errorf("invalid preferences: %s", strings.Join(msgs, "; "))
}
