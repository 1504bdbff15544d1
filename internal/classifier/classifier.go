// internal/classifier/classifier.go
package classifier

import (
	"context"
	"time"

	"ca-schools-query/internal/common/logger"
	"ca-schools-query/internal/intent"
	"ca-schools-query/internal/query"
	"ca-schools-query/internal/schema"
	"ca-schools-query/internal/storage"
)

// ClassifiedRecord is a storage row with its band and 1-based rank.
type ClassifiedRecord struct {
	storage.SchoolRecord
	Band    schema.Color `json:"band"`
	Rank    int          `json:"rank"`
	Display string       `json:"display"`
}

type QueryEcho struct {
	ID         string    `json:"id"`
	Text       string    `json:"text"`
	ReceivedAt time.Time `json:"received_at"`
}

// ResponsePayload is what the narrative collaborator consumes.
type ResponsePayload struct {
	Query        QueryEcho            `json:"query"`
	Intent       intent.Canonical     `json:"intent"`
	Filter       query.FilterSpec     `json:"filter"`
	Records      []ClassifiedRecord   `json:"records"`
	TotalMatches int                  `json:"total_matches"`
	Returned     int                  `json:"returned"`
	Truncated    bool                 `json:"truncated"`
	Summary      map[schema.Color]int `json:"summary"`
	Narrative    string               `json:"narrative"`
}

type Classifier struct {
	registry *schema.Registry
	logger   logger.Logger
}

func New(registry *schema.Registry, log logger.Logger) *Classifier {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &Classifier{registry: registry, logger: logger.Component(log, "classifier")}
}

// Classify drains cur once, bands every record and assembles the payload.
// The cursor is closed on return. Cursor failures wrap ErrStorageUnavailable.
func (c *Classifier) Classify(ctx context.Context, q intent.RawQuery, in intent.Canonical, f query.FilterSpec, cur storage.Cursor) (ResponsePayload, error) {
	defer cur.Close()

	spec, err := c.registry.Describe(in.Indicator)
	if err != nil {
		return ResponsePayload{}, err
	}

	out := ResponsePayload{
		Query:   QueryEcho{ID: q.ID, Text: q.Text, ReceivedAt: q.ReceivedAt},
		Intent:  in,
		Filter:  f,
		Records: []ClassifiedRecord{},
		Summary: map[schema.Color]int{},
	}

	for cur.Next() {
		if err := ctx.Err(); err != nil {
			return ResponsePayload{}, storage.Unavailable(err)
		}
		if f.Limit > 0 && len(out.Records) >= f.Limit {
			break
		}
		rec := cur.Record()
		band := c.band(rec)
		out.Records = append(out.Records, ClassifiedRecord{
			SchoolRecord: rec,
			Band:         band,
			Rank:         len(out.Records) + 1,
			Display:      FormatValue(spec.Unit, rec.Value),
		})
		out.Summary[band]++
	}
	if err := cur.Err(); err != nil {
		return ResponsePayload{}, storage.Unavailable(err)
	}

	out.Returned = len(out.Records)
	out.TotalMatches = cur.Total()
	if out.TotalMatches < out.Returned {
		out.TotalMatches = out.Returned
	}
	out.Truncated = out.TotalMatches > out.Returned
	out.Narrative = c.narrate(spec, out)

	c.logger.Debug("classified results", map[string]interface{}{
		"queryId":  q.ID,
		"returned": out.Returned,
		"total":    out.TotalMatches,
	})
	return out, nil
}

// band classifies by value. Rows without a usable value fall back to the
// reported status color, then to no_data.
func (c *Classifier) band(rec storage.SchoolRecord) schema.Color {
	if rec.Value != nil {
		b, err := c.registry.Classify(rec.Indicator, *rec.Value)
		if err == nil {
			return b.Color
		}
		c.logger.Warn("value outside indicator domain", map[string]interface{}{
			"cds":       rec.CDS,
			"indicator": rec.Indicator,
			"error":     err,
		})
	}
	if rec.StatusCode != nil {
		return schema.BandFromStatusCode(*rec.StatusCode)
	}
	return schema.NoData
}
