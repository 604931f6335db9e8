// Package schema holds the JSON Schema documents for the generator output
// and the assembled article.
package schema

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"sync"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed narrative.schema.json
var narrativeSchema []byte

//go:embed article.schema.json
var articleSchema []byte

const (
	narrativeURL = "https://goalgazer.local/schema/narrative.schema.json"
	articleURL   = "https://goalgazer.local/schema/article.schema.json"
)

var (
	compileOnce     sync.Once
	compiledNarr    *jsonschema.Schema
	compiledArticle *jsonschema.Schema
	compileErr      error
)

func compile() {
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft7
	compiler.AssertFormat = true

	if err := compiler.AddResource(narrativeURL, bytes.NewReader(narrativeSchema)); err != nil {
		compileErr = fmt.Errorf("add narrative schema: %w", err)
		return
	}
	if err := compiler.AddResource(articleURL, bytes.NewReader(articleSchema)); err != nil {
		compileErr = fmt.Errorf("add article schema: %w", err)
		return
	}
	if compiledNarr, compileErr = compiler.Compile(narrativeURL); compileErr != nil {
		compileErr = fmt.Errorf("compile narrative schema: %w", compileErr)
		return
	}
	if compiledArticle, compileErr = compiler.Compile(articleURL); compileErr != nil {
		compileErr = fmt.Errorf("compile article schema: %w", compileErr)
	}
}

// ArticleDocument returns the raw article schema, for publishing alongside
// generated content.
func ArticleDocument() []byte {
	out := make([]byte, len(articleSchema))
	copy(out, articleSchema)
	return out
}

// ValidateNarrativeJSON checks raw generator output.
func ValidateNarrativeJSON(data []byte) error {
	return validateJSON(data, narrative)
}

// ValidateNarrative checks a typed or decoded narrative payload.
func ValidateNarrative(v any) error {
	return validateValue(v, narrative)
}

// ValidateArticleJSON checks a serialized article document.
func ValidateArticleJSON(data []byte) error {
	return validateJSON(data, article)
}

// ValidateArticle checks a typed or decoded article document.
func ValidateArticle(v any) error {
	return validateValue(v, article)
}

func narrative() (*jsonschema.Schema, error) {
	compileOnce.Do(compile)
	return compiledNarr, compileErr
}

func article() (*jsonschema.Schema, error) {
	compileOnce.Do(compile)
	return compiledArticle, compileErr
}

func validateJSON(data []byte, get func() (*jsonschema.Schema, error)) error {
	s, err := get()
	if err != nil {
		return err
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	if err := s.Validate(v); err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}
	return nil
}

// validateValue round-trips v through JSON so typed structs validate the
// same way as decoded documents.
func validateValue(v any, get func() (*jsonschema.Schema, error)) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal for schema validation: %w", err)
	}
	return validateJSON(data, get)
}
