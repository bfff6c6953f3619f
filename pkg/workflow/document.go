package workflow

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/xjanova/postxagent/pkg/models"
)

// SchemaVersion is the current export document format version.
const SchemaVersion = 1

// ErrInvalidDocument is returned when an imported document fails schema
// validation.
var ErrInvalidDocument = errors.New("invalid workflow document")

// Document is the portable exchange format for workflows: the workflow
// definition wrapped with a format version so future readers can migrate.
type Document struct {
	SchemaVersion int             `json:"schema_version"`
	Workflow      models.Workflow `json:"workflow"`
}

const documentSchema = `{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"type": "object",
	"required": ["schema_version", "workflow"],
	"properties": {
		"schema_version": {"type": "integer", "minimum": 1},
		"workflow": {
			"type": "object",
			"required": ["platform", "task_type", "name", "steps"],
			"properties": {
				"platform": {"type": "string", "minLength": 1},
				"task_type": {"type": "string", "minLength": 1},
				"name": {"type": "string", "minLength": 3},
				"steps": {
					"type": "array",
					"items": {
						"type": "object",
						"required": ["action"],
						"properties": {
							"action": {"type": "string", "minLength": 1},
							"order": {"type": "integer", "minimum": 0},
							"retry_count": {"type": "integer", "minimum": 0},
							"timeout_ms": {"type": "integer", "minimum": 0},
							"wait_before_ms": {"type": "integer", "minimum": 0},
							"wait_after_ms": {"type": "integer", "minimum": 0}
						}
					}
				}
			}
		}
	}
}`

// Export serializes the workflow for transfer between installations. Run
// statistics travel with the document but are discarded on import.
func Export(workflow *models.Workflow) ([]byte, error) {
	doc := Document{
		SchemaVersion: SchemaVersion,
		Workflow:      *workflow,
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to export workflow %s: %w", workflow.ID, err)
	}

	return data, nil
}

// Import validates and parses an exported document into a fresh workflow.
// Identity and run history are reset: the caller gets a new inactive version
// 1 workflow that must earn its own statistics. Steps without a recorded
// provenance are marked imported.
func Import(data []byte) (*models.Workflow, error) {
	if err := validateDocument(data); err != nil {
		return nil, err
	}

	var doc Document

	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}

	if doc.SchemaVersion > SchemaVersion {
		return nil, fmt.Errorf("%w: document schema version %d is newer than supported %d",
			ErrInvalidDocument, doc.SchemaVersion, SchemaVersion)
	}

	workflow := doc.Workflow
	workflow.ID = ""
	workflow.Version = 1
	workflow.SuccessCount = 0
	workflow.FailureCount = 0
	workflow.Confidence = InitialConfidence
	workflow.Active = false
	workflow.LastSuccessAt = nil

	for _, step := range workflow.Steps {
		if !step.Action.Valid() {
			return nil, fmt.Errorf("%w: unknown action %q", ErrInvalidDocument, step.Action)
		}

		if step.Provenance == "" {
			step.Provenance = models.ProvenanceImported
		}
	}

	return &workflow, nil
}

func validateDocument(data []byte) error {
	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(documentSchema),
		gojsonschema.NewBytesLoader(data))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}

	if result.Valid() {
		return nil
	}

	details := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		details = append(details, desc.String())
	}

	return fmt.Errorf("%w: %s", ErrInvalidDocument, strings.Join(details, "; "))
}
