package llm

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"google.golang.org/genai"
)

// Type is a JSON schema type.
type Type string

const (
	TypeObject  Type = "object"
	TypeArray   Type = "array"
	TypeString  Type = "string"
	TypeNumber  Type = "number"
	TypeInteger Type = "integer"
	TypeBoolean Type = "boolean"
)

// Schema is the subset of JSON schema the providers agree on. It describes the
// shape a structured response must have.
type Schema struct {
	Type        Type               `json:"type"`
	Description string             `json:"description,omitempty"`
	Properties  map[string]*Schema `json:"properties,omitempty"`
	Items       *Schema            `json:"items,omitempty"`
	Required    []string           `json:"required,omitempty"`

	once       sync.Once
	compiled   *jsonschema.Schema
	compileErr error
}

// Object is shorthand for an object schema where every listed property is required.
func Object(props map[string]*Schema) *Schema {
	req := make([]string, 0, len(props))
	for k := range props {
		req = append(req, k)
	}
	sort.Strings(req)
	return &Schema{Type: TypeObject, Properties: props, Required: req}
}

func ArrayOf(items *Schema) *Schema { return &Schema{Type: TypeArray, Items: items} }

func String(description string) *Schema { return &Schema{Type: TypeString, Description: description} }

// JSON renders the schema for prompts of providers without native schema support.
func (s *Schema) JSON() string {
	b, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return "{}"
	}
	return string(b)
}

func (s *Schema) genai() *genai.Schema {
	if s == nil {
		return nil
	}
	out := &genai.Schema{
		Type:        genaiType(s.Type),
		Description: s.Description,
		Required:    s.Required,
		Items:       s.Items.genai(),
	}
	if len(s.Properties) > 0 {
		out.Properties = make(map[string]*genai.Schema, len(s.Properties))
		keys := make([]string, 0, len(s.Properties))
		for k, v := range s.Properties {
			out.Properties[k] = v.genai()
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out.PropertyOrdering = keys
	}
	return out
}

func genaiType(t Type) genai.Type {
	switch t {
	case TypeObject:
		return genai.TypeObject
	case TypeArray:
		return genai.TypeArray
	case TypeNumber:
		return genai.TypeNumber
	case TypeInteger:
		return genai.TypeInteger
	case TypeBoolean:
		return genai.TypeBoolean
	default:
		return genai.TypeString
	}
}

const schemaURL = "response.json"

func (s *Schema) compile() (*jsonschema.Schema, error) {
	s.once.Do(func() {
		doc, err := jsonschema.UnmarshalJSON(strings.NewReader(s.JSON()))
		if err != nil {
			s.compileErr = fmt.Errorf("schema document: %w", err)
			return
		}
		c := jsonschema.NewCompiler()
		if err := c.AddResource(schemaURL, doc); err != nil {
			s.compileErr = fmt.Errorf("add schema: %w", err)
			return
		}
		s.compiled, s.compileErr = c.Compile(schemaURL)
	})
	return s.compiled, s.compileErr
}

// Validate checks a decoded JSON value against the schema. The schema is
// compiled on first use.
func (s *Schema) Validate(v any) error {
	if s == nil {
		return nil
	}
	compiled, err := s.compile()
	if err != nil {
		return err
	}
	return compiled.Validate(v)
}

// decode parses a model response, validates it against schema and stores it in out.
// Models sometimes wrap JSON in markdown fences even when asked not to.
func decode(raw string, schema *Schema, out any) error {
	text := stripFences(raw)
	generic, err := jsonschema.UnmarshalJSON(strings.NewReader(text))
	if err != nil {
		return fmt.Errorf("parse json: %w", err)
	}
	if err := schema.Validate(generic); err != nil {
		return fmt.Errorf("schema validation: %w", err)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal([]byte(text), out); err != nil {
		return fmt.Errorf("decode json: %w", err)
	}
	return nil
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
