// internal/storage/elastic/elastic.go
package elastic

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"ca-schools-query/internal/query"
	"ca-schools-query/internal/schema"
	"ca-schools-query/internal/storage"
)

const DefaultIndex = "dashboard_results"

// Store searches an index whose documents use the same field names as the
// Postgres table. Text fields carry a .keyword sub-field.
type Store struct {
	client *elasticsearch.Client
	index  string
}

func New(client *elasticsearch.Client, index string) *Store {
	if index == "" {
		index = DefaultIndex
	}
	return &Store{client: client, index: index}
}

func (s *Store) Name() string { return "elasticsearch" }

func (s *Store) Query(ctx context.Context, f query.FilterSpec) (storage.Cursor, error) {
	body, err := json.Marshal(buildSearch(f))
	if err != nil {
		return nil, fmt.Errorf("encode search: %w", err)
	}

	req := esapi.SearchRequest{
		Index: []string{s.index},
		Body:  strings.NewReader(string(body)),
	}
	res, err := req.Do(ctx, s.client)
	if err != nil {
		return nil, storage.Unavailable(err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, storage.Unavailable(fmt.Errorf("search failed: %s", res.Status()))
	}

	var r searchResponse
	if err := json.NewDecoder(res.Body).Decode(&r); err != nil {
		return nil, storage.Unavailable(fmt.Errorf("decode search response: %w", err))
	}

	records := make([]storage.SchoolRecord, 0, len(r.Hits.Hits))
	for _, h := range r.Hits.Hits {
		records = append(records, h.Source.record())
	}
	return storage.NewSliceCursor(records, r.Hits.Total.Value), nil
}

func buildSearch(f query.FilterSpec) map[string]interface{} {
	filter := []interface{}{
		map[string]interface{}{"term": map[string]interface{}{"indicator": string(f.Indicator)}},
		map[string]interface{}{"term": map[string]interface{}{"student_group": string(f.Demographic)}},
	}

	if f.Location != "" {
		pattern := "*" + escapeWildcard(strings.ToLower(f.Location)) + "*"
		var should []interface{}
		for _, field := range []string{"school_name", "district_name", "city", "county_name"} {
			should = append(should, map[string]interface{}{
				"wildcard": map[string]interface{}{
					field + ".keyword": map[string]interface{}{
						"value":            pattern,
						"case_insensitive": true,
					},
				},
			})
		}
		filter = append(filter, map[string]interface{}{
			"bool": map[string]interface{}{"should": should, "minimum_should_match": 1},
		})
	}

	if f.Constrained() {
		var should []interface{}
		for _, r := range f.Ranges {
			should = append(should, map[string]interface{}{
				"range": map[string]interface{}{"current_value": rangeBody(r)},
			})
		}
		filter = append(filter, map[string]interface{}{
			"bool": map[string]interface{}{"should": should, "minimum_should_match": 1},
		})
	}

	order := "asc"
	if f.Sort.Descending {
		order = "desc"
	}

	return map[string]interface{}{
		"query": map[string]interface{}{
			"bool": map[string]interface{}{"filter": filter},
		},
		"sort": []interface{}{
			map[string]interface{}{"current_value": map[string]interface{}{"order": order, "missing": "_last"}},
			map[string]interface{}{"school_name.keyword": map[string]interface{}{"order": "asc"}},
			map[string]interface{}{"cds_code": map[string]interface{}{"order": "asc"}},
		},
		"size":             f.Limit,
		"track_total_hits": true,
	}
}

func rangeBody(r schema.Range) map[string]interface{} {
	body := map[string]interface{}{}
	if r.Min != nil {
		op := "gt"
		if r.MinInclusive {
			op = "gte"
		}
		body[op] = *r.Min
	}
	if r.Max != nil {
		op := "lt"
		if r.MaxInclusive {
			op = "lte"
		}
		body[op] = *r.Max
	}
	return body
}

var wildcardEscaper = strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`)

func escapeWildcard(s string) string { return wildcardEscaper.Replace(s) }

type searchResponse struct {
	Hits struct {
		Total struct {
			Value int `json:"value"`
		} `json:"total"`
		Hits []struct {
			Source document `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

type document struct {
	CDSCode      string   `json:"cds_code"`
	SchoolName   string   `json:"school_name"`
	DistrictName string   `json:"district_name"`
	CountyName   string   `json:"county_name"`
	City         string   `json:"city"`
	Indicator    string   `json:"indicator"`
	StudentGroup string   `json:"student_group"`
	CurrentValue *float64 `json:"current_value"`
	ChangeValue  *float64 `json:"change_value"`
	StatusColor  *int     `json:"status_color"`
	Year         int      `json:"reporting_year"`
}

func (d document) record() storage.SchoolRecord {
	return storage.SchoolRecord{
		CDS:         d.CDSCode,
		SchoolName:  d.SchoolName,
		District:    d.DistrictName,
		County:      d.CountyName,
		City:        d.City,
		Indicator:   schema.Indicator(d.Indicator),
		Demographic: schema.Demographic(d.StudentGroup),
		Value:       d.CurrentValue,
		Change:      d.ChangeValue,
		StatusCode:  d.StatusColor,
		Year:        d.Year,
	}
}
