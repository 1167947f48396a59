package loader

import (
	"context"
	"fmt"

	"github.com/TobiSchelling/topicwatch/internal/database"
	"github.com/TobiSchelling/topicwatch/internal/model"
)

// ArchiveProvider loads runs from the SQLite run archive.
type ArchiveProvider struct {
	DB *database.DB
}

func (p *ArchiveProvider) LoadAll(ctx context.Context) ([]model.MonitoringRun, error) {
	runs, err := p.DB.ListRuns(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading run archive: %w", err)
	}
	return runs, nil
}
