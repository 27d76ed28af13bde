package analytics

import (
	"context"
	"fmt"
	"sort"

	"genboard/internal/domain"
	"genboard/internal/infra"
	"genboard/internal/registry"
	"genboard/internal/sqlinline"
)

// EngagementAggregator summarizes output interaction events. The whole report
// sits behind a k-anonymity gate: until at least minCohort distinct users have
// downloaded something, no numbers leave this package, so a lone early user
// can never be singled out of the aggregates.
type EngagementAggregator struct {
	sql       infra.SQLExecutor
	registry  *registry.Registry
	minCohort int
}

func NewEngagementAggregator(sql infra.SQLExecutor, reg *registry.Registry, minCohort int) *EngagementAggregator {
	if minCohort < 1 {
		minCohort = 1
	}
	return &EngagementAggregator{sql: sql, registry: reg, minCohort: minCohort}
}

type ModelEngagement struct {
	ModelID      string  `json:"model_id"`
	DisplayName  string  `json:"display_name"`
	Outputs      int     `json:"outputs"`
	Downloads    int     `json:"downloads"`
	DownloadRate float64 `json:"download_rate"`
}

// EventTypeStats summarizes one event type: how many events were logged, and
// how many distinct outputs and users they touched.
type EventTypeStats struct {
	Count           int `json:"count"`
	DistinctOutputs int `json:"distinct_outputs"`
	DistinctUsers   int `json:"distinct_users"`
}

type EngagementReport struct {
	Available             bool                      `json:"available"`
	Threshold             int                       `json:"threshold"`
	DistinctDownloadUsers int                       `json:"distinct_download_users"`
	Events                map[string]EventTypeStats `json:"events,omitempty"`
	TotalOutputs          int                       `json:"total_outputs,omitempty"`
	TotalDownloads        int                       `json:"total_downloads,omitempty"`
	DownloadRate          float64                   `json:"download_rate,omitempty"`
	Models                []ModelEngagement         `json:"models,omitempty"`
}

// Report builds the engagement summary. When the distinct-downloader count is
// below the cohort threshold the report carries no data at all, only the
// threshold the caller failed to clear.
func (a *EngagementAggregator) Report(ctx context.Context) (EngagementReport, error) {
	rows, err := a.sql.Query(ctx, sqlinline.QSelectOutputEvents)
	if err != nil {
		return EngagementReport{}, fmt.Errorf("select output events: %w", err)
	}
	defer rows.Close()

	counts := map[string]int{}
	outputsByType := map[string]map[string]struct{}{}
	usersByType := map[string]map[string]struct{}{}
	downloadsByOutput := map[string]int{}
	for rows.Next() {
		var outputID, userID, eventType string
		if err := rows.Scan(&outputID, &userID, &eventType); err != nil {
			return EngagementReport{}, fmt.Errorf("scan event row: %w", err)
		}
		counts[eventType]++
		if outputsByType[eventType] == nil {
			outputsByType[eventType] = map[string]struct{}{}
			usersByType[eventType] = map[string]struct{}{}
		}
		outputsByType[eventType][outputID] = struct{}{}
		usersByType[eventType][userID] = struct{}{}
		if eventType == string(domain.EventDownload) {
			downloadsByOutput[outputID]++
		}
	}
	if err := rows.Err(); err != nil {
		return EngagementReport{}, fmt.Errorf("iterate event rows: %w", err)
	}
	downloadUsers := usersByType[string(domain.EventDownload)]

	if len(downloadUsers) < a.minCohort {
		return EngagementReport{
			Available:             false,
			Threshold:             a.minCohort,
			DistinctDownloadUsers: len(downloadUsers),
		}, nil
	}

	outputModels, err := a.outputModels(ctx)
	if err != nil {
		return EngagementReport{}, err
	}
	modelTotals, err := a.modelOutputTotals(ctx)
	if err != nil {
		return EngagementReport{}, err
	}

	downloadsByModel := map[string]int{}
	for outputID, n := range downloadsByOutput {
		if modelID, ok := outputModels[outputID]; ok {
			downloadsByModel[modelID] += n
		}
	}

	events := make(map[string]EventTypeStats, len(counts))
	for eventType, n := range counts {
		events[eventType] = EventTypeStats{
			Count:           n,
			DistinctOutputs: len(outputsByType[eventType]),
			DistinctUsers:   len(usersByType[eventType]),
		}
	}

	report := EngagementReport{
		Available:             true,
		Threshold:             a.minCohort,
		DistinctDownloadUsers: len(downloadUsers),
		Events:                events,
		TotalDownloads:        counts[string(domain.EventDownload)],
	}
	for _, outputs := range modelTotals {
		report.TotalOutputs += outputs
	}
	if report.TotalOutputs > 0 {
		report.DownloadRate = float64(report.TotalDownloads) / float64(report.TotalOutputs)
	}
	for modelID, outputs := range modelTotals {
		downloads := downloadsByModel[modelID]
		rate := 0.0
		if outputs > 0 {
			rate = float64(downloads) / float64(outputs)
		}
		report.Models = append(report.Models, ModelEngagement{
			ModelID:      modelID,
			DisplayName:  a.registry.DisplayName(modelID),
			Outputs:      outputs,
			Downloads:    downloads,
			DownloadRate: rate,
		})
	}
	sort.Slice(report.Models, func(i, j int) bool {
		if report.Models[i].Downloads != report.Models[j].Downloads {
			return report.Models[i].Downloads > report.Models[j].Downloads
		}
		return report.Models[i].ModelID < report.Models[j].ModelID
	})
	return report, nil
}

func (a *EngagementAggregator) outputModels(ctx context.Context) (map[string]string, error) {
	rows, err := a.sql.Query(ctx, sqlinline.QSelectEventOutputModels)
	if err != nil {
		return nil, fmt.Errorf("select output models: %w", err)
	}
	defer rows.Close()

	out := map[string]string{}
	for rows.Next() {
		var outputID, modelID string
		if err := rows.Scan(&outputID, &modelID); err != nil {
			return nil, fmt.Errorf("scan output model row: %w", err)
		}
		out[outputID] = modelID
	}
	return out, rows.Err()
}

func (a *EngagementAggregator) modelOutputTotals(ctx context.Context) (map[string]int, error) {
	rows, err := a.sql.Query(ctx, sqlinline.QSelectModelOutputTotals)
	if err != nil {
		return nil, fmt.Errorf("select model output totals: %w", err)
	}
	defer rows.Close()

	out := map[string]int{}
	for rows.Next() {
		var modelID string
		var count int
		if err := rows.Scan(&modelID, &count); err != nil {
			return nil, fmt.Errorf("scan model total row: %w", err)
		}
		out[modelID] = count
	}
	return out, rows.Err()
}
