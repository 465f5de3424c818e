package controller

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-jose/go-jose/v4/json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/pump-pill/arenax/app/query/types"
	"github.com/pump-pill/arenax/pkg/model"
)

func TestParsePageSpec(t *testing.T) {
	tests := []struct {
		name     string
		query    string
		expected pageSpec
		wantErr  error
	}{
		{name: "defaults", query: "", expected: pageSpec{Page: 1, PageSize: 50}},
		{name: "explicit values", query: "page=3&pageSize=25", expected: pageSpec{Page: 3, PageSize: 25}},
		{name: "max pageSize accepted", query: "pageSize=100", expected: pageSpec{Page: 1, PageSize: 100}},
		{name: "oversized pageSize rejected", query: "pageSize=150", wantErr: errPageSizeTooLarge},
		{name: "zero pageSize rejected", query: "pageSize=0", wantErr: errInvalidPageSize},
		{name: "negative pageSize rejected", query: "pageSize=-5", wantErr: errInvalidPageSize},
		{name: "non-numeric pageSize rejected", query: "pageSize=many", wantErr: errInvalidPageSize},
		{name: "zero page rejected", query: "page=0", wantErr: errInvalidPage},
		{name: "non-numeric page rejected", query: "page=first", wantErr: errInvalidPage},
		// Out-of-range pages are valid here; they produce an empty slice
		// later instead of an error.
		{name: "huge page accepted", query: "page=99&pageSize=50", expected: pageSpec{Page: 99, PageSize: 50}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/leaderboard?"+tt.query, nil)
			spec, err := parsePageSpec(r)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, spec)
		})
	}
}

func entries(n int) []model.LeaderboardEntry {
	out := make([]model.LeaderboardEntry, n)
	for i := range out {
		out[i] = model.LeaderboardEntry{Rank: i + 1, Wallet: string(rune('a' + i))}
	}
	return out
}

func TestPaginate(t *testing.T) {
	tests := []struct {
		name           string
		total          int
		spec           pageSpec
		wantLen        int
		wantFirstRank  int
		wantTotalPages int
	}{
		{name: "first page full", total: 120, spec: pageSpec{Page: 1, PageSize: 50}, wantLen: 50, wantFirstRank: 1, wantTotalPages: 3},
		{name: "middle page", total: 120, spec: pageSpec{Page: 2, PageSize: 50}, wantLen: 50, wantFirstRank: 51, wantTotalPages: 3},
		{name: "short last page", total: 120, spec: pageSpec{Page: 3, PageSize: 50}, wantLen: 20, wantFirstRank: 101, wantTotalPages: 3},
		{name: "out of range page is empty", total: 3, spec: pageSpec{Page: 99, PageSize: 50}, wantLen: 0, wantTotalPages: 1},
		{name: "empty leaderboard still pages from one", total: 0, spec: pageSpec{Page: 1, PageSize: 50}, wantLen: 0, wantTotalPages: 1},
		{name: "exact multiple", total: 100, spec: pageSpec{Page: 2, PageSize: 50}, wantLen: 50, wantFirstRank: 51, wantTotalPages: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, info := paginate(entries(tt.total), tt.spec)
			require.NotNil(t, data)
			assert.Len(t, data, tt.wantLen)
			if tt.wantLen > 0 {
				assert.Equal(t, tt.wantFirstRank, data[0].Rank)
			}
			assert.Equal(t, tt.total, info.Total)
			assert.Equal(t, tt.wantTotalPages, info.TotalPages)
			assert.Equal(t, tt.spec.Page, info.Page)
			assert.Equal(t, tt.spec.PageSize, info.PageSize)
		})
	}
}

// Validation failures are rejected before any storage access, so a bare App is
// enough to exercise the error contract.
func TestHandleLeaderboardValidation(t *testing.T) {
	c := &Controller{App: &types.App{Logger: zaptest.NewLogger(t)}}

	tests := []struct {
		name     string
		query    string
		wantCode string
	}{
		{name: "oversized pageSize", query: "pageSize=150", wantCode: CodePageSize},
		{name: "invalid pageSize", query: "pageSize=abc", wantCode: CodePageSize},
		{name: "invalid page", query: "page=-1", wantCode: CodeValidation},
		{name: "invalid sortBy", query: "sortBy=pnl", wantCode: CodeValidation},
		{name: "invalid order", query: "order=sideways", wantCode: CodeValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/leaderboard?"+tt.query, nil)
			w := httptest.NewRecorder()

			c.HandleLeaderboard(w, r)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			var body errorResponse
			require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
			assert.Equal(t, tt.wantCode, body.Code)
			assert.NotEmpty(t, body.Error)
		})
	}
}
