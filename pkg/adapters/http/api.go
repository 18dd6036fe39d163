package http

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/getkin/kin-openapi/openapi3"
)

//go:embed openapi.yaml
var rawSpec []byte

// Schema names of the validated request bodies.
const (
	schemaExecute  = "ExecuteRequest"
	schemaSave     = "SaveWorkflowRequest"
	schemaDocument = "DocumentUploadRequest"
)

// errInvalidBody marks request bodies rejected before reaching a handler.
var errInvalidBody = errors.New("invalid request body")

// Spec returns the parsed, validated OpenAPI document served at /openapi.yaml.
var Spec = sync.OnceValues(func() (*openapi3.T, error) {
	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromData(rawSpec)
	if err != nil {
		return nil, fmt.Errorf("load openapi spec: %w", err)
	}
	if err := doc.Validate(context.Background()); err != nil {
		return nil, fmt.Errorf("validate openapi spec: %w", err)
	}
	return doc, nil
})

// decodeBody checks body against the named schema and then decodes it into out.
func decodeBody(body []byte, schema string, out any) error {
	doc, err := Spec()
	if err != nil {
		return err
	}
	ref, ok := doc.Components.Schemas[schema]
	if !ok || ref.Value == nil {
		return fmt.Errorf("schema %q not found", schema)
	}

	var generic any
	if err := json.Unmarshal(body, &generic); err != nil {
		return fmt.Errorf("%w: %v", errInvalidBody, err)
	}
	if err := ref.Value.VisitJSON(generic, openapi3.MultiErrors()); err != nil {
		return fmt.Errorf("%w: %v", errInvalidBody, err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: %v", errInvalidBody, err)
	}
	return nil
}
