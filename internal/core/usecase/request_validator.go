package usecase

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"strings"

	santhosh "github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/atvirokodosprendimai/identityapi/internal/core/domain"
)

// Request schema names.
const (
	SchemaRegister      = "register"
	SchemaLogin         = "login"
	SchemaRefresh       = "refresh"
	SchemaCreateRole    = "create_role"
	SchemaAssignRole    = "assign_role"
	SchemaBulkAssign    = "bulk_assign"
	SchemaUpdateProfile = "update_profile"
	SchemaSetActive     = "set_active"
)

//go:embed schemas/*.json
var schemaFS embed.FS

// RequestValidator checks request bodies against the embedded JSON schemas.
type RequestValidator struct {
	schemas map[string]*santhosh.Schema
}

// NewRequestValidator compiles every embedded schema up front.
func NewRequestValidator() (*RequestValidator, error) {
	files, err := schemaFS.ReadDir("schemas")
	if err != nil {
		return nil, fmt.Errorf("read schemas: %w", err)
	}
	v := &RequestValidator{schemas: make(map[string]*santhosh.Schema, len(files))}
	for _, f := range files {
		raw, err := schemaFS.ReadFile(path.Join("schemas", f.Name()))
		if err != nil {
			return nil, fmt.Errorf("read schema %s: %w", f.Name(), err)
		}
		compiled, err := compileSchema(f.Name(), raw)
		if err != nil {
			return nil, fmt.Errorf("compile schema %s: %w", f.Name(), err)
		}
		v.schemas[strings.TrimSuffix(f.Name(), ".json")] = compiled
	}
	return v, nil
}

// Validate returns *domain.ErrValidation when body violates the named schema.
func (v *RequestValidator) Validate(name string, body []byte) error {
	sch, ok := v.schemas[name]
	if !ok {
		return fmt.Errorf("unknown request schema %q", name)
	}
	return runValidation(sch, body)
}

func compileSchema(name string, schemaJSON []byte) (*santhosh.Schema, error) {
	compiler := santhosh.NewCompiler()
	compiler.Draft = santhosh.Draft7
	compiler.AssertFormat = true
	if err := compiler.AddResource(name, bytes.NewReader(schemaJSON)); err != nil {
		return nil, err
	}
	return compiler.Compile(name)
}

func runValidation(sch *santhosh.Schema, data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return &domain.ErrValidation{Errors: []string{"body must be valid json"}}
	}
	if err := sch.Validate(v); err != nil {
		var ve *santhosh.ValidationError
		if errors.As(err, &ve) {
			return &domain.ErrValidation{Errors: collectValidationErrors(ve)}
		}
		return &domain.ErrValidation{Errors: []string{err.Error()}}
	}
	return nil
}

func collectValidationErrors(ve *santhosh.ValidationError) []string {
	var msgs []string
	for _, cause := range ve.Causes {
		msgs = append(msgs, collectValidationErrors(cause)...)
	}
	if len(ve.Causes) == 0 {
		field := strings.TrimPrefix(ve.InstanceLocation, "/")
		if field == "" {
			msgs = append(msgs, ve.Message)
		} else {
			msgs = append(msgs, field+": "+ve.Message)
		}
	}
	return msgs
}
