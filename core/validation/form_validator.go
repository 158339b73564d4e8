// Package validation checks inbound diagnosis form payloads against the
// gateway's JSON schema before anything touches the ledger.
package validation

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/xeipuuv/gojsonschema"
)

//go:embed schemas/diagnosis_form_schema.json
var formSchemaJSON []byte

// Error reports one failed validation with the full list of violated
// constraints. It is always operational and maps to HTTP 400.
type Error struct {
	Details []string
}

func (e *Error) Error() string {
	return "Validation failed: " + strings.Join(e.Details, "; ")
}

// FormValidator validates DiagnosisForm payloads. The compiled schema is
// shared and read-only, so a single instance serves concurrent requests.
type FormValidator struct {
	schema *gojsonschema.Schema
}

func NewFormValidator() (*FormValidator, error) {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(formSchemaJSON))
	if err != nil {
		return nil, fmt.Errorf("compile form schema: %w", err)
	}
	return &FormValidator{schema: schema}, nil
}

// Validate checks a raw request body. A nil return means the payload is a
// complete DiagnosisForm safe to forward to the chaincode.
func (v *FormValidator) Validate(payload []byte) error {
	var rec map[string]interface{}
	if err := json.Unmarshal(payload, &rec); err != nil {
		return err
	}

	result, err := v.schema.Validate(gojsonschema.NewBytesLoader(payload))
	if err != nil {
		return fmt.Errorf("schema validation error: %w", err)
	}

	var details []string
	if !result.Valid() {
		for _, e := range result.Errors() {
			details = append(details, e.String())
		}
	}

	// Timestamps are optional but must be RFC3339 when present. The schema
	// cannot express this portably, so it is enforced here.
	for _, field := range []string{"timestamp"} {
		if s, ok := rec[field].(string); ok && s != "" {
			if _, err := time.Parse(time.RFC3339, s); err != nil {
				details = append(details, fmt.Sprintf("%s must be RFC3339", field))
			}
		}
	}
	if fu, ok := rec["followUp"].(map[string]interface{}); ok {
		if s, ok := fu["nextAppointment"].(string); ok && s != "" {
			if _, err := time.Parse(time.RFC3339, s); err != nil {
				details = append(details, "followUp.nextAppointment must be RFC3339")
			}
		}
	}

	if len(details) > 0 {
		return &Error{Details: details}
	}
	return nil
}
