// Package seeds loads the reference catalog (topics, aggregators and their
// fields) that data points are built from.
package seeds

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/goccy/go-yaml"
)

// DataTypes lists the values a field's data_type may take.
var DataTypes = []string{"string", "integer", "decimal", "percent", "currency", "boolean"}

type Catalog struct {
	Topics      []TopicSeed      `yaml:"topics"`
	Aggregators []AggregatorSeed `yaml:"aggregators"`
}

type TopicSeed struct {
	Name string `yaml:"name"`
}

type AggregatorSeed struct {
	Name   string      `yaml:"name"`
	URL    string      `yaml:"url"`
	Fields []FieldSeed `yaml:"fields"`
}

type FieldSeed struct {
	Name     string `yaml:"name"`
	Label    string `yaml:"label"`
	DataType string `yaml:"data_type"`
}

func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("could not read catalog %s: %w", path, err)
	}
	return ParseCatalog(data)
}

// ParseCatalog decodes a YAML catalog, rejecting unknown keys, and
// validates it.
func ParseCatalog(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.UnmarshalWithOptions(data, &c, yaml.Strict()); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}
	for i := range c.Aggregators {
		for j := range c.Aggregators[i].Fields {
			if c.Aggregators[i].Fields[j].DataType == "" {
				c.Aggregators[i].Fields[j].DataType = "string"
			}
		}
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate requires names and keeps them unique within their scope.
func (c *Catalog) Validate() error {
	var errs []error

	topics := map[string]bool{}
	for i, t := range c.Topics {
		name := strings.TrimSpace(t.Name)
		switch {
		case name == "":
			errs = append(errs, fmt.Errorf("topics[%d]: name is required", i))
		case topics[name]:
			errs = append(errs, fmt.Errorf("topics[%d]: duplicate topic %q", i, name))
		}
		topics[name] = true
	}

	aggregators := map[string]bool{}
	for i, a := range c.Aggregators {
		name := strings.TrimSpace(a.Name)
		switch {
		case name == "":
			errs = append(errs, fmt.Errorf("aggregators[%d]: name is required", i))
		case aggregators[name]:
			errs = append(errs, fmt.Errorf("aggregators[%d]: duplicate aggregator %q", i, name))
		}
		aggregators[name] = true

		fields := map[string]bool{}
		for j, f := range a.Fields {
			fname := strings.TrimSpace(f.Name)
			switch {
			case fname == "":
				errs = append(errs, fmt.Errorf("aggregators[%d].fields[%d]: name is required", i, j))
			case fields[fname]:
				errs = append(errs, fmt.Errorf("aggregators[%d].fields[%d]: duplicate field %q", i, j, fname))
			}
			fields[fname] = true

			if !knownDataType(f.DataType) {
				errs = append(errs, fmt.Errorf("aggregators[%d].fields[%d]: unknown data_type %q", i, j, f.DataType))
			}
		}
	}
	return errors.Join(errs...)
}

func knownDataType(t string) bool {
	for _, dt := range DataTypes {
		if dt == t {
			return true
		}
	}
	return false
}
