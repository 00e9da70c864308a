package reports

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/EmpoweredVote/EV-Profiles/internal/jsonapi"
	"github.com/EmpoweredVote/EV-Profiles/internal/validation"
)

// Kind binds an entity type to its JSON:API schema and write rules.
type Kind[T any] struct {
	Schema jsonapi.Schema
	Render func(*T) jsonapi.Resource

	// Apply copies payload values onto v. Many-to-many changes are recorded
	// in links, keyed by association field name.
	Apply func(v *T, p *jsonapi.Payload, links map[string][]interface{}) error

	Validate func(ctx context.Context, refs RefChecker, v *T) error
}

var reportSchema = jsonapi.Schema{
	Type:       "reports",
	Attributes: []string{"title", "description", "created_at", "updated_at"},
	Creatable:  []string{"title", "description", "data_points"},
	Updatable:  []string{"title", "description", "data_points"},
	ToMany:     map[string]string{"data_points": "data_points"},
}

var ReportKind = Kind[Report]{
	Schema: reportSchema,
	Render: func(r *Report) jsonapi.Resource {
		ids := make([]string, 0, len(r.DataPoints))
		for _, dp := range r.DataPoints {
			ids = append(ids, dp.ID.String())
		}
		return reportSchema.Render(r.ID.String(), map[string]interface{}{
			"title":       r.Title,
			"description": r.Description,
			"created_at":  r.CreatedAt,
			"updated_at":  r.UpdatedAt,
		}, map[string]jsonapi.Relationship{
			"data_points": jsonapi.ToMany("data_points", ids),
		})
	},
	Apply: func(r *Report, p *jsonapi.Payload, links map[string][]interface{}) error {
		if _, err := p.Attr("title", &r.Title); err != nil {
			return err
		}
		if _, err := p.Attr("description", &r.Description); err != nil {
			return err
		}
		ids, ok, err := relIDs(p, "data_points")
		if err != nil || !ok {
			return err
		}
		r.DataPoints = make([]DataPoint, 0, len(ids))
		members := make([]interface{}, 0, len(ids))
		for _, id := range ids {
			r.DataPoints = append(r.DataPoints, DataPoint{ID: id})
			members = append(members, &DataPoint{ID: id})
		}
		links["DataPoints"] = members
		return nil
	},
	Validate: func(ctx context.Context, refs RefChecker, r *Report) error {
		var errs validation.Errors
		required(&errs, "title", r.Title)
		ids := make([]uuid.UUID, 0, len(r.DataPoints))
		for _, dp := range r.DataPoints {
			ids = append(ids, dp.ID)
		}
		if err := checkRefs(ctx, refs, &errs, "data_points", &DataPoint{}, ids...); err != nil {
			return err
		}
		return errs.Err()
	},
}

var dataPointSchema = jsonapi.Schema{
	Type:       "data_points",
	Attributes: []string{"name", "field_mappings", "created_at", "updated_at"},
	Creatable:  []string{"name", "field_mappings", "aggregator", "topic", "data_collections", "reports"},
	Updatable:  []string{"name", "field_mappings", "aggregator", "topic", "data_collections", "reports"},
	ToOne:      map[string]string{"aggregator": "aggregators", "topic": "topics"},
	ToMany:     map[string]string{"data_collections": "data_collections", "reports": "reports"},
}

var DataPointKind = Kind[DataPoint]{
	Schema: dataPointSchema,
	Render: func(dp *DataPoint) jsonapi.Resource {
		collections := make([]string, 0, len(dp.DataCollections))
		for _, c := range dp.DataCollections {
			collections = append(collections, c.ID.String())
		}
		reports := make([]string, 0, len(dp.Reports))
		for _, r := range dp.Reports {
			reports = append(reports, r.ID.String())
		}
		return dataPointSchema.Render(dp.ID.String(), map[string]interface{}{
			"name":           dp.Name,
			"field_mappings": json.RawMessage(dp.FieldMappings),
			"created_at":     dp.CreatedAt,
			"updated_at":     dp.UpdatedAt,
		}, map[string]jsonapi.Relationship{
			"aggregator":       jsonapi.ToOne("aggregators", idString(dp.AggregatorID)),
			"topic":            jsonapi.ToOne("topics", idString(dp.TopicID)),
			"data_collections": jsonapi.ToMany("data_collections", collections),
			"reports":          jsonapi.ToMany("reports", reports),
		})
	},
	Apply: func(dp *DataPoint, p *jsonapi.Payload, links map[string][]interface{}) error {
		if _, err := p.Attr("name", &dp.Name); err != nil {
			return err
		}
		var mappings json.RawMessage
		if ok, err := p.Attr("field_mappings", &mappings); err != nil {
			return err
		} else if ok {
			dp.FieldMappings = datatypes.JSON(mappings)
		}

		if id, ok, err := relID(p, "aggregator"); err != nil {
			return err
		} else if ok {
			dp.AggregatorID, dp.Aggregator = id, nil
		}
		if id, ok, err := relID(p, "topic"); err != nil {
			return err
		} else if ok {
			dp.TopicID, dp.Topic = id, nil
		}

		if ids, ok, err := relIDs(p, "data_collections"); err != nil {
			return err
		} else if ok {
			dp.DataCollections = make([]DataCollection, 0, len(ids))
			members := make([]interface{}, 0, len(ids))
			for _, id := range ids {
				dp.DataCollections = append(dp.DataCollections, DataCollection{ID: id})
				members = append(members, &DataCollection{ID: id})
			}
			links["DataCollections"] = members
		}
		if ids, ok, err := relIDs(p, "reports"); err != nil {
			return err
		} else if ok {
			dp.Reports = make([]Report, 0, len(ids))
			members := make([]interface{}, 0, len(ids))
			for _, id := range ids {
				dp.Reports = append(dp.Reports, Report{ID: id})
				members = append(members, &Report{ID: id})
			}
			links["Reports"] = members
		}
		return nil
	},
	Validate: func(ctx context.Context, refs RefChecker, dp *DataPoint) error {
		var errs validation.Errors

		if dp.AggregatorID == nil {
			errs.Add("aggregator", validation.MissingRequiredField, "can't be blank")
		} else if err := checkRefs(ctx, refs, &errs, "aggregator", &Aggregator{}, *dp.AggregatorID); err != nil {
			return err
		}
		if dp.TopicID != nil {
			if err := checkRefs(ctx, refs, &errs, "topic", &Topic{}, *dp.TopicID); err != nil {
				return err
			}
		}

		if len(dp.FieldMappings) == 0 || string(dp.FieldMappings) == "null" {
			errs.Add("field_mappings", validation.MissingRequiredField, "can't be blank")
		} else if _, err := Mappings(dp.FieldMappings); err != nil {
			errs.Add("field_mappings", validation.InvalidFormat, "must be a JSON object")
		}

		collections := make([]uuid.UUID, 0, len(dp.DataCollections))
		for _, c := range dp.DataCollections {
			collections = append(collections, c.ID)
		}
		if err := checkRefs(ctx, refs, &errs, "data_collections", &DataCollection{}, collections...); err != nil {
			return err
		}
		reports := make([]uuid.UUID, 0, len(dp.Reports))
		for _, r := range dp.Reports {
			reports = append(reports, r.ID)
		}
		if err := checkRefs(ctx, refs, &errs, "reports", &Report{}, reports...); err != nil {
			return err
		}
		return errs.Err()
	},
}

var aggregatorSchema = jsonapi.Schema{
	Type:       "aggregators",
	Attributes: []string{"name", "url", "created_at", "updated_at"},
	Creatable:  []string{"name", "url"},
	Updatable:  []string{"name", "url"},
	ToMany:     map[string]string{"fields": "fields"},
}

var AggregatorKind = Kind[Aggregator]{
	Schema: aggregatorSchema,
	Render: func(a *Aggregator) jsonapi.Resource {
		fields := make([]string, 0, len(a.Fields))
		for _, f := range a.Fields {
			fields = append(fields, f.ID.String())
		}
		return aggregatorSchema.Render(a.ID.String(), map[string]interface{}{
			"name":       a.Name,
			"url":        a.URL,
			"created_at": a.CreatedAt,
			"updated_at": a.UpdatedAt,
		}, map[string]jsonapi.Relationship{
			"fields": jsonapi.ToMany("fields", fields),
		})
	},
	Apply: func(a *Aggregator, p *jsonapi.Payload, _ map[string][]interface{}) error {
		if _, err := p.Attr("name", &a.Name); err != nil {
			return err
		}
		_, err := p.Attr("url", &a.URL)
		return err
	},
	Validate: func(_ context.Context, _ RefChecker, a *Aggregator) error {
		var errs validation.Errors
		required(&errs, "name", a.Name)
		return errs.Err()
	},
}

var fieldSchema = jsonapi.Schema{
	Type:       "fields",
	Attributes: []string{"name", "label", "data_type", "created_at", "updated_at"},
	Creatable:  []string{"name", "label", "data_type", "aggregator"},
	Updatable:  []string{"name", "label", "data_type"},
	ToOne:      map[string]string{"aggregator": "aggregators"},
}

var FieldKind = Kind[Field]{
	Schema: fieldSchema,
	Render: func(f *Field) jsonapi.Resource {
		agg := ""
		if f.AggregatorID != uuid.Nil {
			agg = f.AggregatorID.String()
		}
		return fieldSchema.Render(f.ID.String(), map[string]interface{}{
			"name":       f.Name,
			"label":      f.Label,
			"data_type":  f.DataType,
			"created_at": f.CreatedAt,
			"updated_at": f.UpdatedAt,
		}, map[string]jsonapi.Relationship{
			"aggregator": jsonapi.ToOne("aggregators", agg),
		})
	},
	Apply: func(f *Field, p *jsonapi.Payload, _ map[string][]interface{}) error {
		if _, err := p.Attr("name", &f.Name); err != nil {
			return err
		}
		if _, err := p.Attr("label", &f.Label); err != nil {
			return err
		}
		if _, err := p.Attr("data_type", &f.DataType); err != nil {
			return err
		}
		if id, ok, err := relID(p, "aggregator"); err != nil {
			return err
		} else if ok {
			f.AggregatorID = uuid.Nil
			if id != nil {
				f.AggregatorID = *id
			}
		}
		return nil
	},
	Validate: func(ctx context.Context, refs RefChecker, f *Field) error {
		var errs validation.Errors
		required(&errs, "name", f.Name)
		if f.AggregatorID == uuid.Nil {
			errs.Add("aggregator", validation.MissingRequiredField, "can't be blank")
		} else if err := checkRefs(ctx, refs, &errs, "aggregator", &Aggregator{}, f.AggregatorID); err != nil {
			return err
		}
		return errs.Err()
	},
}

var dataCollectionSchema = jsonapi.Schema{
	Type:       "data_collections",
	Attributes: []string{"name", "created_at", "updated_at"},
	Creatable:  []string{"name", "data_points"},
	Updatable:  []string{"name", "data_points"},
	ToMany:     map[string]string{"data_points": "data_points"},
}

var DataCollectionKind = Kind[DataCollection]{
	Schema: dataCollectionSchema,
	Render: func(c *DataCollection) jsonapi.Resource {
		ids := make([]string, 0, len(c.DataPoints))
		for _, dp := range c.DataPoints {
			ids = append(ids, dp.ID.String())
		}
		return dataCollectionSchema.Render(c.ID.String(), map[string]interface{}{
			"name":       c.Name,
			"created_at": c.CreatedAt,
			"updated_at": c.UpdatedAt,
		}, map[string]jsonapi.Relationship{
			"data_points": jsonapi.ToMany("data_points", ids),
		})
	},
	Apply: func(c *DataCollection, p *jsonapi.Payload, links map[string][]interface{}) error {
		if _, err := p.Attr("name", &c.Name); err != nil {
			return err
		}
		ids, ok, err := relIDs(p, "data_points")
		if err != nil || !ok {
			return err
		}
		c.DataPoints = make([]DataPoint, 0, len(ids))
		members := make([]interface{}, 0, len(ids))
		for _, id := range ids {
			c.DataPoints = append(c.DataPoints, DataPoint{ID: id})
			members = append(members, &DataPoint{ID: id})
		}
		links["DataPoints"] = members
		return nil
	},
	Validate: func(ctx context.Context, refs RefChecker, c *DataCollection) error {
		var errs validation.Errors
		required(&errs, "name", c.Name)
		ids := make([]uuid.UUID, 0, len(c.DataPoints))
		for _, dp := range c.DataPoints {
			ids = append(ids, dp.ID)
		}
		if err := checkRefs(ctx, refs, &errs, "data_points", &DataPoint{}, ids...); err != nil {
			return err
		}
		return errs.Err()
	},
}

var topicSchema = jsonapi.Schema{
	Type:       "topics",
	Attributes: []string{"name", "created_at", "updated_at"},
	Creatable:  []string{"name"},
	Updatable:  []string{"name"},
}

var TopicKind = Kind[Topic]{
	Schema: topicSchema,
	Render: func(t *Topic) jsonapi.Resource {
		return topicSchema.Render(t.ID.String(), map[string]interface{}{
			"name":       t.Name,
			"created_at": t.CreatedAt,
			"updated_at": t.UpdatedAt,
		}, nil)
	},
	Apply: func(t *Topic, p *jsonapi.Payload, _ map[string][]interface{}) error {
		_, err := p.Attr("name", &t.Name)
		return err
	},
	Validate: func(_ context.Context, _ RefChecker, t *Topic) error {
		var errs validation.Errors
		required(&errs, "name", t.Name)
		return errs.Err()
	},
}

// Mappings decodes a field-mapping payload into field name -> source key.
func Mappings(raw datatypes.JSON) (map[string]interface{}, error) {
	var m map[string]interface{}
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	if m == nil {
		return nil, fmt.Errorf("field mappings must be an object")
	}
	return m, nil
}

func required(errs *validation.Errors, field, value string) {
	if strings.TrimSpace(value) == "" {
		errs.Add(field, validation.MissingRequiredField, "can't be blank")
	}
}

// checkRefs records UnknownReference on field for every id with no row. The
// returned error is an infrastructure failure, not a validation one.
func checkRefs(ctx context.Context, refs RefChecker, errs *validation.Errors, field string, model interface{}, ids ...uuid.UUID) error {
	for _, id := range ids {
		ok, err := refs.Exists(ctx, model, id)
		if err != nil {
			return err
		}
		if !ok {
			errs.Add(field, validation.UnknownReference, "references unknown id %s", id)
		}
	}
	return nil
}

func relID(p *jsonapi.Payload, name string) (*uuid.UUID, bool, error) {
	raw, ok, err := p.ToOneID(name)
	if err != nil || !ok {
		return nil, ok, err
	}
	if raw == "" {
		return nil, true, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, true, fmt.Errorf("%w: relationship %s: invalid id %q", jsonapi.ErrMalformed, name, raw)
	}
	return &id, true, nil
}

func relIDs(p *jsonapi.Payload, name string) ([]uuid.UUID, bool, error) {
	raw, ok, err := p.ToManyIDs(name)
	if err != nil || !ok {
		return nil, ok, err
	}
	ids := make([]uuid.UUID, 0, len(raw))
	for _, s := range raw {
		id, err := uuid.Parse(s)
		if err != nil {
			return nil, true, fmt.Errorf("%w: relationship %s: invalid id %q", jsonapi.ErrMalformed, name, s)
		}
		ids = append(ids, id)
	}
	return ids, true, nil
}

func idString(id *uuid.UUID) string {
	if id == nil {
		return ""
	}
	return id.String()
}
