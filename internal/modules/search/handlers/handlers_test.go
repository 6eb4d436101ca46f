package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/magicfactory/internal/database"
	"github.com/aristath/magicfactory/internal/modules/distillation"
	"github.com/aristath/magicfactory/internal/modules/results"
	"github.com/aristath/magicfactory/internal/modules/search"
	testutil "github.com/aristath/magicfactory/internal/testing"
)

type fixture struct {
	router chi.Router
	runner *search.Runner
	repo   *results.Repository
}

func newFixture(t *testing.T, est search.Estimator) *fixture {
	t.Helper()
	log := zerolog.New(nil).Level(zerolog.Disabled)
	repo := results.NewRepository(testutil.NewTestDB(t, database.ResultsName), log)
	runner := search.NewRunner(est, repo, nil, search.RunnerConfig{Workers: 2}, log)
	r := chi.NewRouter()
	NewHandler(runner, repo, log).RegisterRoutes(r)
	return &fixture{router: r, runner: runner, repo: repo}
}

func (f *fixture) do(method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func (f *fixture) seed(t *testing.T) string {
	t.Helper()
	summary, err := f.runner.Run(context.Background(), search.Request{Space: &search.Space{
		Protocol: distillation.SmallFootprint15to1,
		PPhys:    []float64{1e-3},
		DX:       search.Span(5, 10, 2),
		DZ:       search.Span(1, 2, 1),
		DM:       search.Span(3, 4, 1),
	}})
	require.NoError(t, err)
	return summary.Run.ID
}

func TestHandleStart(t *testing.T) {
	f := newFixture(t, &testutil.FakeEstimator{})

	w := f.do("POST", "/searches", `{"space":{"protocol":"compact-15to1","pphys":[0.001],"dx":{"start":5,"stop":8,"step":2},"dz":{"start":1,"stop":2,"step":1},"dm":{"start":3,"stop":4,"step":1}}}`)
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())

	var resp struct {
		Data struct {
			RunID string `json:"run_id"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Data.RunID)
	assert.Equal(t, "/api/searches/"+resp.Data.RunID, w.Header().Get("Location"))

	require.Eventually(t, func() bool {
		run, err := f.repo.GetRun(context.Background(), resp.Data.RunID)
		return err == nil && run.Status == results.RunCompleted
	}, 5*time.Second, 10*time.Millisecond)
}

func TestHandleStart_BadRequests(t *testing.T) {
	f := newFixture(t, &testutil.FakeEstimator{})
	for name, body := range map[string]string{
		"malformed":      `{`,
		"unknown preset": `{"preset":"three-level"}`,
		"empty":          `{}`,
	} {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, http.StatusBadRequest, f.do("POST", "/searches", body).Code)
		})
	}
}

func TestHandleGetRunAndRows(t *testing.T) {
	f := newFixture(t, &testutil.FakeEstimator{})
	id := f.seed(t)

	w := f.do("GET", "/searches/"+id, "")
	require.Equal(t, http.StatusOK, w.Code)
	var runResp struct {
		Data results.Run `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &runResp))
	assert.Equal(t, results.RunCompleted, runResp.Data.Status)
	assert.Equal(t, 3, runResp.Data.Completed)

	w = f.do("GET", "/searches/"+id+"/rows", "")
	require.Equal(t, http.StatusOK, w.Code)
	var rowsResp struct {
		Data     []results.Row          `json:"data"`
		Metadata map[string]interface{} `json:"metadata"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rowsResp))
	assert.Len(t, rowsResp.Data, 3)
	assert.EqualValues(t, 3, rowsResp.Metadata["count"])

	assert.Equal(t, http.StatusNotFound, f.do("GET", "/searches/missing", "").Code)
	assert.Equal(t, http.StatusNotFound, f.do("GET", "/searches/missing/rows", "").Code)
}

func TestHandleListRuns(t *testing.T) {
	f := newFixture(t, &testutil.FakeEstimator{})
	f.seed(t)
	f.seed(t)

	w := f.do("GET", "/searches?limit=1", "")
	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Data []results.Run `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp.Data, 1)

	assert.Equal(t, http.StatusBadRequest, f.do("GET", "/searches?limit=zero", "").Code)
}

func TestHandleGetCSV(t *testing.T) {
	f := newFixture(t, &testutil.FakeEstimator{})
	id := f.seed(t)

	w := f.do("GET", "/searches/"+id+"/csv", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/csv", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "small_footprint_one_level_15to1_simulations-")

	lines := strings.Split(strings.TrimSpace(w.Body.String()), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, strings.Join(results.Columns(distillation.SmallFootprint15to1), ","), lines[0])
}

func TestHandleGetFrontier(t *testing.T) {
	f := newFixture(t, &testutil.FakeEstimator{})
	id := f.seed(t)

	w := f.do("GET", "/searches/"+id+"/frontier?max_qubits=200", "")
	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Data struct {
			Pareto []struct {
				Qubits int `json:"qubits"`
			} `json:"pareto"`
			Best struct {
				Qubits int `json:"qubits"`
			} `json:"best"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	// dx 5, 7, 9 with dz=1, dm=3: 144, 220 and 312 qubits, each more accurate.
	assert.Len(t, resp.Data.Pareto, 3)
	assert.Equal(t, 144, resp.Data.Best.Qubits)

	assert.Equal(t, http.StatusBadRequest, f.do("GET", "/searches/"+id+"/frontier?max_qubits=-1", "").Code)
}

func TestHandleGetPresets(t *testing.T) {
	f := newFixture(t, &testutil.FakeEstimator{})
	w := f.do("GET", "/searches/presets", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"name":"two-level-20to4"`)
	assert.Contains(t, w.Body.String(), `"points":21504`)
}

func TestHandleCancel(t *testing.T) {
	block := make(chan struct{})
	defer close(block)
	f := newFixture(t, &testutil.FakeEstimator{Block: block})

	id, err := f.runner.Start(context.Background(), search.Request{Preset: search.PresetOneLevel})
	require.NoError(t, err)

	assert.Equal(t, http.StatusNoContent, f.do("DELETE", "/searches/"+id, "").Code)
	require.Eventually(t, func() bool { return len(f.runner.Active()) == 0 }, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, http.StatusNotFound, f.do("DELETE", "/searches/"+id, "").Code)
}
