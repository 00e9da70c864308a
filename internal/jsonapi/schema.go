package jsonapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Schema is the allow-list for one resource type. Nothing is exposed or
// accepted unless it is named here.
type Schema struct {
	Type string

	// Attributes are rendered in responses.
	Attributes []string

	// Creatable and Updatable name the attributes and relationships a client
	// may send on POST and PATCH.
	Creatable []string
	Updatable []string

	// ToOne and ToMany map relationship names to their resource types.
	ToOne  map[string]string
	ToMany map[string]string

	// Aliases rename incoming attribute names before the allow-list applies.
	Aliases map[string]string
}

type Operation int

const (
	Create Operation = iota
	Update
)

var (
	ErrMalformed    = errors.New("malformed JSON:API document")
	ErrTypeMismatch = errors.New("resource type mismatch")
)

// NotAllowedError is returned when a request names a field outside the
// allow-list for the operation.
type NotAllowedError struct {
	Field string
	Op    Operation
}

func (e *NotAllowedError) Error() string {
	verb := "created"
	if e.Op == Update {
		verb = "updated"
	}
	return fmt.Sprintf("%s is not allowed to be %s", e.Field, verb)
}

// Render builds a resource object exposing only allow-listed attributes and
// declared relationships.
func (s Schema) Render(id string, attrs map[string]interface{}, rels map[string]Relationship) Resource {
	out := Resource{Type: s.Type, ID: id, Attributes: map[string]interface{}{}}
	for _, name := range s.Attributes {
		if v, ok := attrs[name]; ok {
			out.Attributes[name] = v
		}
	}
	for name, rel := range rels {
		if s.isRelationship(name) {
			if out.Relationships == nil {
				out.Relationships = map[string]Relationship{}
			}
			out.Relationships[name] = rel
		}
	}
	return out
}

// Pointer returns the JSON pointer of field inside a request document.
func (s Schema) Pointer(field string) string {
	if s.isRelationship(field) {
		return "/data/relationships/" + field
	}
	return "/data/attributes/" + field
}

func (s Schema) isRelationship(name string) bool {
	if _, ok := s.ToOne[name]; ok {
		return true
	}
	_, ok := s.ToMany[name]
	return ok
}

func (s Schema) allowed(op Operation) []string {
	if op == Update {
		return s.Updatable
	}
	return s.Creatable
}

// Payload is a decoded request resource restricted to allowed fields.
type Payload struct {
	ID            string
	Attributes    map[string]json.RawMessage
	Relationships map[string]json.RawMessage
}

// Decode reads a single-resource document and rejects fields not allowed
// for op.
func (s Schema) Decode(r io.Reader, op Operation) (*Payload, error) {
	var doc struct {
		Data *struct {
			Type          string                     `json:"type"`
			ID            string                     `json:"id"`
			Attributes    map[string]json.RawMessage `json:"attributes"`
			Relationships map[string]struct {
				Data json.RawMessage `json:"data"`
			} `json:"relationships"`
		} `json:"data"`
	}
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if doc.Data == nil {
		return nil, fmt.Errorf("%w: missing data", ErrMalformed)
	}
	if doc.Data.Type != s.Type {
		return nil, fmt.Errorf("%w: expected %q, got %q", ErrTypeMismatch, s.Type, doc.Data.Type)
	}

	allowed := make(map[string]bool)
	for _, name := range s.allowed(op) {
		allowed[name] = true
	}

	p := &Payload{
		ID:            doc.Data.ID,
		Attributes:    map[string]json.RawMessage{},
		Relationships: map[string]json.RawMessage{},
	}
	for name, raw := range doc.Data.Attributes {
		if alias, ok := s.Aliases[name]; ok {
			name = alias
		}
		if !allowed[name] || s.isRelationship(name) {
			return nil, &NotAllowedError{Field: name, Op: op}
		}
		p.Attributes[name] = raw
	}
	for name, rel := range doc.Data.Relationships {
		if !allowed[name] || !s.isRelationship(name) {
			return nil, &NotAllowedError{Field: name, Op: op}
		}
		p.Relationships[name] = rel.Data
	}
	return p, nil
}

// Attr decodes attribute name into dst. It reports whether the attribute
// was present.
func (p *Payload) Attr(name string, dst interface{}) (bool, error) {
	raw, ok := p.Attributes[name]
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return true, fmt.Errorf("%w: attribute %s: %v", ErrMalformed, name, err)
	}
	return true, nil
}

// ToOneID returns the linked id of a to-one relationship. An explicit null
// linkage yields an empty id with present set.
func (p *Payload) ToOneID(name string) (id string, present bool, err error) {
	raw, ok := p.Relationships[name]
	if !ok {
		return "", false, nil
	}
	if len(raw) == 0 || strings.TrimSpace(string(raw)) == "null" {
		return "", true, nil
	}
	var ident ResourceIdentifier
	if err := json.Unmarshal(raw, &ident); err != nil {
		return "", true, fmt.Errorf("%w: relationship %s: %v", ErrMalformed, name, err)
	}
	return ident.ID, true, nil
}

// ToManyIDs returns the linked ids of a to-many relationship.
func (p *Payload) ToManyIDs(name string) (ids []string, present bool, err error) {
	raw, ok := p.Relationships[name]
	if !ok {
		return nil, false, nil
	}
	var idents []ResourceIdentifier
	if err := json.Unmarshal(raw, &idents); err != nil {
		return nil, true, fmt.Errorf("%w: relationship %s: %v", ErrMalformed, name, err)
	}
	ids = make([]string, 0, len(idents))
	for _, ident := range idents {
		ids = append(ids, ident.ID)
	}
	return ids, true, nil
}
