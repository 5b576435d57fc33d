package ingest

import (
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const labelPayloadSchemaURL = "https://labelwatch.schemas.local/ingest/label-payload.schema.json"

// labelPayloadSchemaJSON mirrors the field-level checks normalize_label
// already performs at runtime (labeler_did-or-src, uri, val required);
// strict mode just rejects malformed shapes before NormalizeLabel has
// to fall back on its own ad-hoc type switches.
const labelPayloadSchemaJSON = `{
	"$schema": "https://json-schema.org/draft/2020-12/schema",
	"type": "object",
	"properties": {
		"labeler_did": {"type": "string"},
		"src": {"type": ["string", "null"]},
		"uri": {"type": "string", "minLength": 1},
		"cid": {"type": ["string", "null"]},
		"val": {"type": "string", "minLength": 1},
		"neg": {"type": ["boolean", "number", "null"]},
		"exp": {"type": ["string", "null"]},
		"sig": {"type": ["string", "null"]},
		"ts": {"type": ["string", "null"]}
	},
	"required": ["uri", "val"],
	"anyOf": [
		{"required": ["labeler_did"]},
		{"required": ["src"]}
	]
}`

var (
	labelPayloadSchemaOnce sync.Once
	labelPayloadSchema     *jsonschema.Schema
	labelPayloadSchemaErr  error
)

func compiledLabelPayloadSchema() (*jsonschema.Schema, error) {
	labelPayloadSchemaOnce.Do(func() {
		c := jsonschema.NewCompiler()
		c.Draft = jsonschema.Draft2020
		if err := c.AddResource(labelPayloadSchemaURL, strings.NewReader(labelPayloadSchemaJSON)); err != nil {
			labelPayloadSchemaErr = fmt.Errorf("ingest: load label payload schema: %w", err)
			return
		}
		compiled, err := c.Compile(labelPayloadSchemaURL)
		if err != nil {
			labelPayloadSchemaErr = fmt.Errorf("ingest: compile label payload schema: %w", err)
			return
		}
		labelPayloadSchema = compiled
	})
	return labelPayloadSchema, labelPayloadSchemaErr
}

// validateLabelPayload defensively checks a raw fetched label payload's
// shape before it reaches NormalizeLabel. Only consulted when
// config.StrictSchema is set — a misbehaving or compromised labeling
// service is the threat model, not the common case.
func validateLabelPayload(raw map[string]interface{}) error {
	schema, err := compiledLabelPayloadSchema()
	if err != nil {
		return err
	}
	return schema.Validate(raw)
}
