package diagnosis

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"

	"github.com/matiasleandrokruk/cropdoctor/internal/infra/llm"
)

var (
	compiledOnce   sync.Once
	compiledSchema *gojsonschema.Schema
	compileErr     error
)

// responseValidator compiles the response schema once.
func responseValidator() (*gojsonschema.Schema, error) {
	compiledOnce.Do(func() {
		compiledSchema, compileErr = gojsonschema.NewSchema(gojsonschema.NewGoLoader(SchemaDocument(ResponseSchema())))
	})
	return compiledSchema, compileErr
}

// SchemaDocument renders s as a JSON Schema document.
func SchemaDocument(s *llm.Schema) map[string]interface{} {
	if s == nil {
		return map[string]interface{}{}
	}
	doc := map[string]interface{}{"type": string(s.Type)}
	if s.Description != "" {
		doc["description"] = s.Description
	}
	if len(s.Properties) > 0 {
		props := make(map[string]interface{}, len(s.Properties))
		for name, p := range s.Properties {
			props[name] = SchemaDocument(p)
		}
		doc["properties"] = props
	}
	if len(s.Required) > 0 {
		req := make([]interface{}, len(s.Required))
		for i, r := range s.Required {
			req[i] = r
		}
		doc["required"] = req
	}
	if s.Items != nil {
		doc["items"] = SchemaDocument(s.Items)
	}
	return doc
}

// ParseDiagnosis decodes the provider's text into a Diagnosis. Any text that
// is not a JSON object satisfying the response schema yields an error
// wrapping ErrInvalidResponse. A surrounding markdown code fence is tolerated.
func ParseDiagnosis(text string) (*Diagnosis, error) {
	raw := stripCodeFence(strings.TrimSpace(text))
	if raw == "" {
		return nil, fmt.Errorf("%w: empty body", ErrInvalidResponse)
	}

	var doc interface{}
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	if _, ok := doc.(map[string]interface{}); !ok {
		return nil, fmt.Errorf("%w: top-level value is not an object", ErrInvalidResponse)
	}

	schema, err := responseValidator()
	if err != nil {
		return nil, fmt.Errorf("diagnosis: compile schema: %w", err)
	}
	result, err := schema.Validate(gojsonschema.NewGoLoader(doc))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	if !result.Valid() {
		errs := make([]string, len(result.Errors()))
		for i, desc := range result.Errors() {
			errs[i] = desc.String()
		}
		return nil, fmt.Errorf("%w: %s", ErrInvalidResponse, strings.Join(errs, "; "))
	}

	var d Diagnosis
	if err := json.Unmarshal([]byte(raw), &d); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	if d.OrganicTreatment == nil {
		d.OrganicTreatment = []string{}
	}
	if d.PreventionTips == nil {
		d.PreventionTips = []string{}
	}
	return &d, nil
}

func stripCodeFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	} else {
		return ""
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
