package profiles

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"gorm.io/datatypes"

	"github.com/EmpoweredVote/EV-Profiles/internal/geo"
	"github.com/EmpoweredVote/EV-Profiles/internal/places"
	"github.com/EmpoweredVote/EV-Profiles/internal/reports"
)

// Evaluator computes the evaluation of a place against a report. It must be
// a pure function of its inputs; callers only invoke it for complete
// profiles.
type Evaluator interface {
	Evaluate(ctx context.Context, place *places.Place, report *reports.Report) (datatypes.JSON, error)
}

// SummaryEvaluator describes what a report will measure over a place.
type SummaryEvaluator struct{}

type Summary struct {
	Title  string        `json:"title"`
	Place  PlaceSummary  `json:"place"`
	Report ReportSummary `json:"report"`
}

type PlaceSummary struct {
	ID     string   `json:"id"`
	Name   string   `json:"name"`
	Area   float64  `json:"area"`
	Geoids []string `json:"geoids"`
}

type ReportSummary struct {
	ID         string             `json:"id"`
	Title      string             `json:"title"`
	DataPoints []DataPointSummary `json:"data_points"`
}

type DataPointSummary struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Aggregator string   `json:"aggregator,omitempty"`
	Topic      string   `json:"topic,omitempty"`
	Fields     []string `json:"fields"`
}

func (SummaryEvaluator) Evaluate(ctx context.Context, place *places.Place, report *reports.Report) (datatypes.JSON, error) {
	if place == nil || report == nil {
		return nil, fmt.Errorf("evaluation needs both a place and a report")
	}

	shape, err := geo.Parse(place.Geometry)
	if err != nil {
		return nil, fmt.Errorf("place %s geometry: %w", place.ID, err)
	}
	poly, ok := shape.Polygon()
	if !ok {
		return nil, fmt.Errorf("place %s geometry is a %s, not a Polygon", place.ID, shape.Type)
	}

	geoids := append([]string{}, place.Geoids...)
	sort.Strings(geoids)

	points := make([]DataPointSummary, 0, len(report.DataPoints))
	for _, dp := range report.DataPoints {
		s := DataPointSummary{ID: dp.ID.String(), Name: dp.Name, Fields: []string{}}
		if dp.Aggregator != nil {
			s.Aggregator = dp.Aggregator.Name
		}
		if dp.Topic != nil {
			s.Topic = dp.Topic.Name
		}
		if len(dp.FieldMappings) > 0 {
			mappings, err := reports.Mappings(dp.FieldMappings)
			if err != nil {
				return nil, fmt.Errorf("data point %s field mappings: %w", dp.ID, err)
			}
			for k := range mappings {
				s.Fields = append(s.Fields, k)
			}
			sort.Strings(s.Fields)
		}
		points = append(points, s)
	}
	sort.SliceStable(points, func(i, j int) bool {
		if points[i].Name != points[j].Name {
			return points[i].Name < points[j].Name
		}
		return points[i].ID < points[j].ID
	})

	out, err := json.Marshal(Summary{
		Title: fmt.Sprintf("%s in %s", report.Title, place.Title()),
		Place: PlaceSummary{
			ID:     place.ID.String(),
			Name:   place.Name,
			Area:   geo.OuterArea(poly),
			Geoids: geoids,
		},
		Report: ReportSummary{
			ID:         report.ID.String(),
			Title:      report.Title,
			DataPoints: points,
		},
	})
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(out), nil
}
