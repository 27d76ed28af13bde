package analytics

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"genboard/internal/registry"
	"genboard/internal/sqlinline"
)

func spendRegistry() *registry.Registry {
	// Attribution falls back to id prefixes, so an empty catalog is enough.
	return registry.New()
}

func TestSpendReportAttributesProviders(t *testing.T) {
	now := time.Date(2026, 3, 14, 15, 0, 0, 0, time.UTC)
	sql := &fakeSQL{tuples: map[string][][]any{
		sqlinline.QSelectCompletedSpend: {
			{"gemini-2.5-flash-image", 1.0, now.Add(-time.Hour)},
			{"imagen-3", 2.0, now.Add(-2 * time.Hour)},
			{"qwen-image-plus", 2.0, now.Add(-3 * time.Hour)},
			{"mystery-model", 1.0, now.Add(-4 * time.Hour)},
		},
	}}
	agg := NewSpendAggregator(sql, spendRegistry())
	agg.now = func() time.Time { return now }

	report, err := agg.Report(context.Background())
	require.NoError(t, err)

	require.InDelta(t, 6.0, report.TotalUSD, 1e-9)
	require.Len(t, report.Providers, 3)

	byProvider := map[string]ProviderSpend{}
	for _, p := range report.Providers {
		byProvider[p.Provider] = p
	}
	require.InDelta(t, 3.0, byProvider["google"].SpendUSD, 1e-9)
	require.InDelta(t, 2.0, byProvider["alibaba"].SpendUSD, 1e-9)
	require.InDelta(t, 1.0, byProvider["unknown"].SpendUSD, 1e-9)
	require.Len(t, byProvider["google"].Models, 2)

	// Largest spender first.
	require.Equal(t, "google", report.Providers[0].Provider)
}

func TestSpendReportDailySeries(t *testing.T) {
	now := time.Date(2026, 3, 14, 15, 0, 0, 0, time.UTC)
	sql := &fakeSQL{tuples: map[string][][]any{
		sqlinline.QSelectCompletedSpend: {
			{"imagen-3", 0.04, now},
			{"imagen-3", 0.08, now.AddDate(0, 0, -1)},
			// Outside the trailing window: counted in the total only.
			{"imagen-3", 5.0, now.AddDate(0, 0, -45)},
		},
	}}
	agg := NewSpendAggregator(sql, spendRegistry())
	agg.now = func() time.Time { return now }

	report, err := agg.Report(context.Background())
	require.NoError(t, err)

	require.InDelta(t, 5.12, report.TotalUSD, 1e-9)
	require.Len(t, report.Daily, 30)
	require.Equal(t, "2026-02-13", report.Daily[0].Date)
	require.Equal(t, "2026-03-14", report.Daily[29].Date)
	require.InDelta(t, 0.04, report.Daily[29].SpendUSD, 1e-9)
	require.InDelta(t, 0.08, report.Daily[28].SpendUSD, 1e-9)
	for _, d := range report.Daily[:28] {
		require.Zero(t, d.SpendUSD, "day %s", d.Date)
	}
}

func TestSpendReportEmpty(t *testing.T) {
	sql := &fakeSQL{tuples: map[string][][]any{}}
	agg := NewSpendAggregator(sql, spendRegistry())
	agg.now = func() time.Time { return time.Date(2026, 3, 14, 15, 0, 0, 0, time.UTC) }

	report, err := agg.Report(context.Background())
	require.NoError(t, err)
	require.Zero(t, report.TotalUSD)
	require.Empty(t, report.Providers)
	require.Len(t, report.Daily, 30)
}
