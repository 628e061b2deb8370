package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"salereport/backend/internal/domain"
	"salereport/backend/internal/report"
)

func TestParseFlags(t *testing.T) {
	opts, err := parseFlags([]string{"-date", "2025-08-21", "-reconcile"}, io.Discard)
	require.NoError(t, err)
	assert.Equal(t, options{date: "2025-08-21", reconcile: true}, opts)

	for _, args := range [][]string{
		{},
		{"-date", "2025-8-21"},
		{"-date", "2025-02-30"},
		{"-date", "2025-08-21", "extra"},
		{"-unknown"},
	} {
		_, err := parseFlags(args, io.Discard)
		assert.Error(t, err, "args %v", args)
	}
}

type fakeReporter struct {
	calls  []string
	result domain.DailyReportResult
	err    error
}

func (f *fakeReporter) GenerateDailyReport(_ context.Context, date string) (domain.DailyReportResult, error) {
	f.calls = append(f.calls, "cache:"+date)
	return f.result, f.err
}

func (f *fakeReporter) RebuildDailyReport(_ context.Context, date string, clearCache bool) (domain.DailyReportResult, error) {
	if clearCache {
		f.calls = append(f.calls, "reconcile:"+date)
	} else {
		f.calls = append(f.calls, "store:"+date)
	}
	return f.result, f.err
}

func TestRollupSelectsPath(t *testing.T) {
	cases := []struct {
		opts options
		want string
	}{
		{options{date: "2025-08-21"}, "cache:2025-08-21"},
		{options{date: "2025-08-21", fromStore: true}, "store:2025-08-21"},
		{options{date: "2025-08-21", fromStore: true, reconcile: true}, "reconcile:2025-08-21"},
	}
	for _, tc := range cases {
		fake := &fakeReporter{result: domain.DailyReportResult{Date: tc.opts.date}}
		var out bytes.Buffer
		require.NoError(t, rollup(context.Background(), fake, tc.opts, &out))
		assert.Equal(t, []string{tc.want}, fake.calls)

		var printed domain.DailyReportResult
		require.NoError(t, json.Unmarshal(out.Bytes(), &printed))
		assert.Equal(t, tc.opts.date, printed.Date)
	}
}

func TestRollupPrintsPartialResultOnFailure(t *testing.T) {
	fake := &fakeReporter{
		result: domain.DailyReportResult{
			Date:  "2025-08-21",
			Shops: []domain.ShopRollup{{ShopID: "lazada", Status: domain.ShopStatusFailed, Error: "boom"}},
		},
		err: report.ErrInconsistentCache,
	}
	var out bytes.Buffer
	err := rollup(context.Background(), fake, options{date: "2025-08-21"}, &out)
	require.True(t, errors.Is(err, report.ErrInconsistentCache))
	assert.Contains(t, out.String(), `"status": "failed"`)
}
