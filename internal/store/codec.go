package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/nao1215/wmsender/internal/model"
)

// schemaURL identifies the document schema within the compiler.
const schemaURL = "https://github.com/nao1215/wmsender/schema/database.json"

// documentSchema describes the persisted database document.
const documentSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["pages"],
  "properties": {
    "pages": {
      "type": "object",
      "additionalProperties": {"$ref": "#/$defs/page"}
    }
  },
  "$defs": {
    "page": {
      "type": "object",
      "required": ["url", "lastModified", "mentions"],
      "properties": {
        "url": {"type": "string", "minLength": 1},
        "lastModified": {"type": "integer"},
        "mentions": {
          "type": "object",
          "additionalProperties": {"$ref": "#/$defs/mention"}
        }
      }
    },
    "mention": {
      "type": "object",
      "required": ["target", "endpoint"],
      "properties": {
        "target": {"type": "string", "minLength": 1},
        "endpoint": {"type": "string", "minLength": 1}
      }
    }
  }
}`

var compiledSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(documentSchema))
	if err != nil {
		return nil, err
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource(schemaURL, doc); err != nil {
		return nil, err
	}
	return c.Compile(schemaURL)
})

// Encode serializes db into the persisted document format.
func Encode(db *model.Database) ([]byte, error) {
	data, err := json.MarshalIndent(db.Clone(), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode database: %w", err)
	}
	return append(data, '\n'), nil
}

// Decode parses and validates a persisted document. Any problem with the
// document is reported as ErrCorrupt.
func Decode(data []byte) (*model.Database, error) {
	schema, err := compiledSchema()
	if err != nil {
		return nil, fmt.Errorf("failed to compile document schema: %w", err)
	}

	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
	if err := schema.Validate(inst); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}

	var db model.Database
	if err := json.Unmarshal(data, &db); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
	db.Normalize()
	if err := db.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
	return &db, nil
}
