package model

import (
	"encoding/json"
	"fmt"
	"io"
	"time"
)

// MonitoringRun is one ingestion batch: the classified articles plus the
// fetch/classify/discard counters of that batch.
type MonitoringRun struct {
	RunID           string
	RunTimestamp    time.Time // zero when absent or unparseable
	TotalFetched    int
	TotalClassified int
	TotalDiscarded  int
	Articles        []Article
}

// Article is a classified news article. Identity is positional: duplicates
// are legal and counted independently.
type Article struct {
	ID                  string
	Title               string
	Summary             string
	OriginalDescription string
	Link                string
	Topics              []string
	SourceFeed          string
	ConfidenceScores    map[string]float64
	DatePublished       string    // free-form, possibly unparseable
	DateProcessed       time.Time // zero when absent
	HasFullContent      bool

	// Provenance copied from the owning run.
	RunID        string
	RunTimestamp time.Time
}

// MaxConfidence returns the highest confidence score and whether any score
// exists at all.
func (a Article) MaxConfidence() (float64, bool) {
	if len(a.ConfidenceScores) == 0 {
		return 0, false
	}
	first := true
	var best float64
	for _, s := range a.ConfidenceScores {
		if first || s > best {
			best = s
			first = false
		}
	}
	return best, true
}

type runJSON struct {
	RunID           string        `json:"run_id,omitempty"`
	RunTimestamp    string        `json:"run_timestamp"`
	TotalFetched    int           `json:"total_articles_fetched"`
	TotalClassified int           `json:"total_articles_classified"`
	TotalDiscarded  int           `json:"total_articles_discarded"`
	Articles        []articleJSON `json:"articles"`
}

type articleJSON struct {
	ID                  string             `json:"id,omitempty"`
	Title               string             `json:"title"`
	Summary             string             `json:"summary"`
	OriginalDescription string             `json:"original_description"`
	Link                string             `json:"link,omitempty"`
	Topics              []string           `json:"topics"`
	SourceFeed          string             `json:"source_feed"`
	ConfidenceScores    map[string]float64 `json:"confidence_scores"`
	DatePublished       string             `json:"date_published"`
	DateProcessed       string             `json:"date_processed,omitempty"`
	HasFullContent      bool               `json:"has_full_content,omitempty"`
	RunID               string             `json:"run_id,omitempty"`
	RunTimestamp        string             `json:"run_timestamp,omitempty"`
}

// MarshalJSON writes the run in the on-disk record shape.
func (r MonitoringRun) MarshalJSON() ([]byte, error) {
	out := runJSON{
		RunID:           r.RunID,
		RunTimestamp:    FormatTimestamp(r.RunTimestamp),
		TotalFetched:    r.TotalFetched,
		TotalClassified: r.TotalClassified,
		TotalDiscarded:  r.TotalDiscarded,
		Articles:        make([]articleJSON, len(r.Articles)),
	}
	for i, a := range r.Articles {
		out.Articles[i] = a.toJSON()
	}
	return json.Marshal(out)
}

// UnmarshalJSON reads the on-disk record shape. Unparseable instants decode
// to the zero time instead of failing the whole record.
func (r *MonitoringRun) UnmarshalJSON(data []byte) error {
	var in runJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*r = MonitoringRun{
		RunID:           in.RunID,
		RunTimestamp:    ParseOptional(in.RunTimestamp),
		TotalFetched:    in.TotalFetched,
		TotalClassified: in.TotalClassified,
		TotalDiscarded:  in.TotalDiscarded,
	}
	if len(in.Articles) > 0 {
		r.Articles = make([]Article, len(in.Articles))
		for i, a := range in.Articles {
			r.Articles[i] = a.fromJSON()
		}
	}
	return nil
}

// MarshalJSON writes the article with provenance fields.
func (a Article) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.toJSON())
}

// UnmarshalJSON reads an article record.
func (a *Article) UnmarshalJSON(data []byte) error {
	var in articleJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*a = in.fromJSON()
	return nil
}

func (a Article) toJSON() articleJSON {
	topics := a.Topics
	if topics == nil {
		topics = []string{}
	}
	scores := a.ConfidenceScores
	if scores == nil {
		scores = map[string]float64{}
	}
	return articleJSON{
		ID:                  a.ID,
		Title:               a.Title,
		Summary:             a.Summary,
		OriginalDescription: a.OriginalDescription,
		Link:                a.Link,
		Topics:              topics,
		SourceFeed:          a.SourceFeed,
		ConfidenceScores:    scores,
		DatePublished:       a.DatePublished,
		DateProcessed:       FormatTimestamp(a.DateProcessed),
		HasFullContent:      a.HasFullContent,
		RunID:               a.RunID,
		RunTimestamp:        FormatTimestamp(a.RunTimestamp),
	}
}

func (in articleJSON) fromJSON() Article {
	return Article{
		ID:                  in.ID,
		Title:               in.Title,
		Summary:             in.Summary,
		OriginalDescription: in.OriginalDescription,
		Link:                in.Link,
		Topics:              in.Topics,
		SourceFeed:          in.SourceFeed,
		ConfidenceScores:    in.ConfidenceScores,
		DatePublished:       in.DatePublished,
		DateProcessed:       ParseOptional(in.DateProcessed),
		HasFullContent:      in.HasFullContent,
		RunID:               in.RunID,
		RunTimestamp:        ParseOptional(in.RunTimestamp),
	}
}

// DecodeRun decodes one run file. runID overrides any id stored in the file,
// matching how runs are identified by their file name.
func DecodeRun(r io.Reader, runID string) (MonitoringRun, error) {
	var run MonitoringRun
	if err := json.NewDecoder(r).Decode(&run); err != nil {
		return MonitoringRun{}, fmt.Errorf("decoding run %s: %w", runID, err)
	}
	if runID != "" {
		run.RunID = runID
	}
	return run, nil
}
