// Package main generates JSON schemas for the documents hllsim writes:
// time-series records, checkpoint summaries and the estimate command output.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"slices"
	"strings"

	"github.com/Sumatoshi-tech/hllsim/cmd/hllsim/commands"
	"github.com/Sumatoshi-tech/hllsim/internal/simulation"
)

const draft07 = "http://json-schema.org/draft-07/schema#"

// Schema is the subset of JSON Schema draft-07 the generator emits.
type Schema struct {
	Schema      string             `json:"$schema,omitempty"`
	Title       string             `json:"title,omitempty"`
	Description string             `json:"description,omitempty"`
	Type        string             `json:"type,omitempty"`
	Properties  map[string]*Schema `json:"properties,omitempty"`
	Items       *Schema            `json:"items,omitempty"`
	Required    []string           `json:"required,omitempty"`
}

// document is one generated schema file.
type document struct {
	name        string
	title       string
	description string
	value       any
	array       bool
}

func documents() []document {
	return []document{
		{
			name:        "record",
			title:       "Time-series record",
			description: "State of one stream at one checkpoint",
			value:       simulation.Record{},
		},
		{
			name:        "summary",
			title:       "Checkpoint summary",
			description: "Cross-stream statistics per checkpoint, as written by --summary-format json",
			value:       simulation.SummaryRow{},
			array:       true,
		},
		{
			name:        "estimate",
			title:       "Estimate result",
			description: "Output of hllsim estimate --format json",
			value:       commands.EstimateResult{},
		},
	}
}

func main() {
	outputDir := flag.String("o", "docs/schemas", "Output directory for schemas")
	flag.Parse()

	err := run(*outputDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(outputDir string) error {
	err := os.MkdirAll(outputDir, 0o755)
	if err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	for _, doc := range documents() {
		err = writeSchema(filepath.Join(outputDir, doc.name+".json"), generateSchema(doc))
		if err != nil {
			return fmt.Errorf("schema %s: %w", doc.name, err)
		}

		fmt.Printf("Generated schema for %s\n", doc.name)
	}

	return nil
}

func generateSchema(doc document) *Schema {
	item := typeToSchema(reflect.TypeOf(doc.value))

	schema := &Schema{
		Schema:      draft07,
		Title:       doc.title,
		Description: doc.description,
	}

	if doc.array {
		schema.Type = "array"
		schema.Items = item

		return schema
	}

	schema.Type = item.Type
	schema.Properties = item.Properties
	schema.Required = item.Required

	return schema
}

func structToSchema(t reflect.Type) *Schema {
	props := make(map[string]*Schema, t.NumField())

	var required []string

	for i := range t.NumField() {
		field := t.Field(i)

		tag := field.Tag.Get("json")
		if tag == "-" || tag == "" {
			continue
		}

		name, opts, _ := strings.Cut(tag, ",")
		props[name] = typeToSchema(field.Type)

		if !slices.Contains(strings.Split(opts, ","), "omitempty") {
			required = append(required, name)
		}
	}

	return &Schema{Type: "object", Properties: props, Required: required}
}

func typeToSchema(t reflect.Type) *Schema {
	switch t.Kind() {
	case reflect.String:
		return &Schema{Type: "string"}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return &Schema{Type: "integer"}
	case reflect.Float32, reflect.Float64:
		return &Schema{Type: "number"}
	case reflect.Bool:
		return &Schema{Type: "boolean"}
	case reflect.Slice, reflect.Array:
		return &Schema{Type: "array", Items: typeToSchema(t.Elem())}
	case reflect.Struct:
		return structToSchema(t)
	case reflect.Pointer:
		return typeToSchema(t.Elem())
	default:
		return &Schema{Type: "object"}
	}
}

func writeSchema(path string, schema *Schema) error {
	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal schema: %w", err)
	}

	return os.WriteFile(path, append(data, '\n'), 0o644)
}
