package analytics

import (
	"context"
	"fmt"
	"sort"
	"time"

	"genboard/internal/infra"
	"genboard/internal/registry"
	"genboard/internal/sqlinline"
)

// spendWindowDays is the length of the daily spend series.
const spendWindowDays = 30

// SpendAggregator rolls completed generation costs up into the admin spending
// report. Attribution runs through the model registry, so spend from models
// that were retired from the catalog still lands under a provider instead of
// disappearing.
type SpendAggregator struct {
	sql      infra.SQLExecutor
	registry *registry.Registry
	now      func() time.Time
}

func NewSpendAggregator(sql infra.SQLExecutor, reg *registry.Registry) *SpendAggregator {
	return &SpendAggregator{sql: sql, registry: reg, now: time.Now}
}

type ModelSpend struct {
	ModelID     string  `json:"model_id"`
	DisplayName string  `json:"display_name"`
	Generations int     `json:"generations"`
	SpendUSD    float64 `json:"spend_usd"`
}

type ProviderSpend struct {
	Provider string       `json:"provider"`
	SpendUSD float64      `json:"spend_usd"`
	Models   []ModelSpend `json:"models"`
}

type DailySpend struct {
	Date     string  `json:"date"`
	SpendUSD float64 `json:"spend_usd"`
}

type SpendReport struct {
	TotalUSD  float64         `json:"total_usd"`
	Providers []ProviderSpend `json:"providers"`
	Daily     []DailySpend    `json:"daily"`
}

// Report aggregates every completed generation with a recorded cost. The
// total and provider breakdown cover all time; the daily series covers the
// trailing 30 UTC days, zero-filled and ascending.
func (a *SpendAggregator) Report(ctx context.Context) (SpendReport, error) {
	rows, err := a.sql.Query(ctx, sqlinline.QSelectCompletedSpend)
	if err != nil {
		return SpendReport{}, fmt.Errorf("select completed spend: %w", err)
	}
	defer rows.Close()

	type modelAgg struct {
		count int
		spend float64
	}
	byModel := map[string]*modelAgg{}
	byDay := map[string]float64{}
	total := 0.0

	today := a.now().UTC().Truncate(24 * time.Hour)
	windowStart := today.AddDate(0, 0, -(spendWindowDays - 1))

	for rows.Next() {
		var modelID string
		var cost float64
		var createdAt time.Time
		if err := rows.Scan(&modelID, &cost, &createdAt); err != nil {
			return SpendReport{}, fmt.Errorf("scan spend row: %w", err)
		}
		total += cost
		agg := byModel[modelID]
		if agg == nil {
			agg = &modelAgg{}
			byModel[modelID] = agg
		}
		agg.count++
		agg.spend += cost

		day := createdAt.UTC().Truncate(24 * time.Hour)
		if !day.Before(windowStart) && !day.After(today) {
			byDay[day.Format("2006-01-02")] += cost
		}
	}
	if err := rows.Err(); err != nil {
		return SpendReport{}, fmt.Errorf("iterate spend rows: %w", err)
	}

	byProvider := map[string][]ModelSpend{}
	for modelID, agg := range byModel {
		provider := a.registry.ProviderForModelID(modelID)
		byProvider[provider] = append(byProvider[provider], ModelSpend{
			ModelID:     modelID,
			DisplayName: a.registry.DisplayName(modelID),
			Generations: agg.count,
			SpendUSD:    agg.spend,
		})
	}

	report := SpendReport{TotalUSD: total}
	for provider, models := range byProvider {
		sort.Slice(models, func(i, j int) bool {
			if models[i].SpendUSD != models[j].SpendUSD {
				return models[i].SpendUSD > models[j].SpendUSD
			}
			return models[i].ModelID < models[j].ModelID
		})
		sum := 0.0
		for _, m := range models {
			sum += m.SpendUSD
		}
		report.Providers = append(report.Providers, ProviderSpend{
			Provider: provider,
			SpendUSD: sum,
			Models:   models,
		})
	}
	sort.Slice(report.Providers, func(i, j int) bool {
		if report.Providers[i].SpendUSD != report.Providers[j].SpendUSD {
			return report.Providers[i].SpendUSD > report.Providers[j].SpendUSD
		}
		return report.Providers[i].Provider < report.Providers[j].Provider
	})

	for day := windowStart; !day.After(today); day = day.AddDate(0, 0, 1) {
		key := day.Format("2006-01-02")
		report.Daily = append(report.Daily, DailySpend{Date: key, SpendUSD: byDay[key]})
	}
	return report, nil
}
