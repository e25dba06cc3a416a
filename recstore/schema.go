package recstore

import (
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

type (
	// FieldType is the type of a model field.
	FieldType string

	// Field describes a model field.
	Field struct {
		Name string    `yaml:"name"`
		Type FieldType `yaml:"type"`
		// Relation is the target model of relational fields.
		Relation string `yaml:"relation,omitempty"`
		// Inverse is the many2one field of the Relation model pointing back, required for one2many.
		Inverse string `yaml:"inverse,omitempty"`
		// Selection lists the values accepted by selection fields.
		Selection []string `yaml:"selection,omitempty"`
		Required  bool     `yaml:"required,omitempty"`
	}

	// Model describes a record type.
	Model struct {
		Name   string  `yaml:"name"`
		Fields []Field `yaml:"fields"`
		// ParentField is the many2one field on the model itself used by child_of and parent_of.
		// Defaults to "parent_id" when the model has such a field.
		ParentField string `yaml:"parent_field,omitempty"`
		// NameField is the field matched by [Store.NameSearch]. Defaults to "name".
		NameField string `yaml:"name_field,omitempty"`
	}
)

// Field types.
const (
	Char      FieldType = "char"
	Text      FieldType = "text"
	Integer   FieldType = "integer"
	Float     FieldType = "float"
	Boolean   FieldType = "boolean"
	Date      FieldType = "date"
	Datetime  FieldType = "datetime"
	Selection FieldType = "selection"
	Many2one  FieldType = "many2one"
	One2many  FieldType = "one2many"
	Many2many FieldType = "many2many"
)

// IDField is the name of the implicit primary key field of every model.
const IDField = "id"

// Relational reports whether t links to records of another model.
func (t FieldType) Relational() bool {
	return t == Many2one || t == One2many || t == Many2many
}

// Multi reports whether t holds a list of records.
func (t FieldType) Multi() bool {
	return t == One2many || t == Many2many
}

func (t FieldType) valid() bool {
	switch t {
	case Char, Text, Integer, Float, Boolean, Date, Datetime, Selection, Many2one, One2many, Many2many:
		return true
	}
	return false
}

// Validate checks the model definition on its own, relation targets are checked by [Store.Register].
func (m Model) Validate() error {
	var errs []error
	if m.Name == "" {
		errs = append(errs, errors.New("missing model name"))
	}
	seen := map[string]bool{}
	for _, f := range m.Fields {
		if err := f.validate(); err != nil {
			errs = append(errs, err)
		}
		if seen[f.Name] {
			errs = append(errs, fmt.Errorf("duplicated field %q", f.Name))
		}
		seen[f.Name] = true
	}
	if m.ParentField != "" {
		f, ok := m.field(m.ParentField)
		if !ok || f.Type != Many2one || f.Relation != m.Name {
			errs = append(errs, fmt.Errorf("parent field %q must be a many2one to %q", m.ParentField, m.Name))
		}
	}
	if m.NameField != "" {
		if _, ok := m.field(m.NameField); !ok {
			errs = append(errs, fmt.Errorf("unknown name field %q", m.NameField))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("%w: model %q: %w", ErrInvalidModel, m.Name, err)
	}
	return nil
}

func (f Field) validate() error {
	switch {
	case f.Name == IDField:
		return fmt.Errorf("field %q is implicit", IDField)
	case f.Name == "" || strings.ContainsAny(f.Name, ".\"\\ "):
		return fmt.Errorf("invalid field name %q", f.Name)
	case !f.Type.valid():
		return fmt.Errorf("field %q: unknown type %q", f.Name, f.Type)
	case f.Type.Relational() && f.Relation == "":
		return fmt.Errorf("field %q: %s requires a relation", f.Name, f.Type)
	case f.Type == One2many && f.Inverse == "":
		return fmt.Errorf("field %q: one2many requires an inverse", f.Name)
	case f.Type == Selection && len(f.Selection) == 0:
		return fmt.Errorf("field %q: selection requires options", f.Name)
	}
	return nil
}

func (m Model) field(name string) (Field, bool) {
	i := slices.IndexFunc(m.Fields, func(f Field) bool { return f.Name == name })
	if i < 0 {
		return Field{}, false
	}
	return m.Fields[i], true
}

func (m Model) parentField() string {
	if m.ParentField != "" {
		return m.ParentField
	}
	if f, ok := m.field("parent_id"); ok && f.Type == Many2one && f.Relation == m.Name {
		return f.Name
	}
	return ""
}

func (m Model) nameField() string {
	if m.NameField != "" {
		return m.NameField
	}
	return "name"
}

// LoadModels decodes a YAML schema:
//
//	models:
//	  - name: partner
//	    fields:
//	      - {name: name, type: char, required: true}
//	      - {name: parent_id, type: many2one, relation: partner}
//	      - {name: child_ids, type: one2many, relation: partner, inverse: parent_id}
//
// The models are validated on their own, see [Model.Validate].
func LoadModels(r io.Reader) ([]Model, error) {
	var schema struct {
		Models []Model `yaml:"models"`
	}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&schema); err != nil {
		return nil, fmt.Errorf("%w: decoding schema: %v", ErrInvalidModel, err)
	}
	var errs []error
	for _, m := range schema.Models {
		errs = append(errs, m.Validate())
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return schema.Models, nil
}
