// Package jsonapi renders and decodes JSON:API documents. What an entity
// exposes and accepts is declared explicitly in a Schema.
package jsonapi

import (
	"encoding/json"
	"net/http"
)

const MediaType = "application/vnd.api+json"

type Document struct {
	Data     interface{}            `json:"data,omitempty"`
	Included []Resource             `json:"included,omitempty"`
	Errors   []ErrorObject          `json:"errors,omitempty"`
	Meta     map[string]interface{} `json:"meta,omitempty"`
}

type Resource struct {
	Type          string                  `json:"type"`
	ID            string                  `json:"id,omitempty"`
	Attributes    map[string]interface{}  `json:"attributes,omitempty"`
	Relationships map[string]Relationship `json:"relationships,omitempty"`
}

type ResourceIdentifier struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

// Relationship carries either a *ResourceIdentifier (null when empty) or a
// []ResourceIdentifier.
type Relationship struct {
	Data interface{} `json:"data"`
}

// ToOne builds a to-one linkage; an empty id renders as null.
func ToOne(typ, id string) Relationship {
	if id == "" {
		return Relationship{Data: nil}
	}
	return Relationship{Data: &ResourceIdentifier{Type: typ, ID: id}}
}

// ToMany builds a to-many linkage; it always renders as an array.
func ToMany(typ string, ids []string) Relationship {
	out := make([]ResourceIdentifier, 0, len(ids))
	for _, id := range ids {
		out = append(out, ResourceIdentifier{Type: typ, ID: id})
	}
	return Relationship{Data: out}
}

type ErrorObject struct {
	Status string       `json:"status"`
	Code   string       `json:"code,omitempty"`
	Title  string       `json:"title"`
	Detail string       `json:"detail,omitempty"`
	Source *ErrorSource `json:"source,omitempty"`
}

type ErrorSource struct {
	Pointer   string `json:"pointer,omitempty"`
	Parameter string `json:"parameter,omitempty"`
}

// Write encodes doc with the JSON:API media type.
func Write(w http.ResponseWriter, status int, doc Document) error {
	w.Header().Set("Content-Type", MediaType)
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(doc)
}

func WriteResource(w http.ResponseWriter, status int, r Resource) error {
	return Write(w, status, Document{Data: r})
}

func WriteCollection(w http.ResponseWriter, rs []Resource) error {
	if rs == nil {
		rs = []Resource{}
	}
	return Write(w, http.StatusOK, Document{Data: rs, Meta: map[string]interface{}{"count": len(rs)}})
}
