package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/desertthunder/pulse/internal/models"
	"github.com/desertthunder/pulse/internal/shared"
	tu "github.com/desertthunder/pulse/internal/testing"
)

type mockExtractor struct {
	mu     sync.Mutex
	calls  map[string]int
	colors map[string]models.RGB
	errs   map[string]error
}

func newMockExtractor() *mockExtractor {
	return &mockExtractor{calls: map[string]int{}, colors: map[string]models.RGB{}, errs: map[string]error{}}
}

func (m *mockExtractor) Extract(ctx context.Context, id, url string) (models.RGB, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls[id]++
	if err, ok := m.errs[id]; ok {
		return models.RGB{}, err
	}
	if c, ok := m.colors[id]; ok {
		return c, nil
	}
	return models.RGB{1, 2, 3}, nil
}

func requests(n int) []models.ColorRequest {
	reqs := make([]models.ColorRequest, n)
	for i := range reqs {
		reqs[i] = models.ColorRequest{ID: fmt.Sprintf("album%d", i), ImageURL: fmt.Sprintf("https://i.scdn.co/image/%d", i)}
	}
	return reqs
}

func TestBulkExtract(t *testing.T) {
	ctx := context.Background()

	t.Run("successful extraction keeps input order", func(t *testing.T) {
		ex := newMockExtractor()
		for i := range 6 {
			ex.colors[fmt.Sprintf("album%d", i)] = models.RGB{uint8(i), 0, 0}
		}

		result, err := BulkExtract(ctx, nil, ex, requests(6), BulkExtractOpts{NumWorkers: 3, RateLimit: 1000})
		if err != nil {
			t.Fatalf("BulkExtract() error = %v", err)
		}
		if result.Total != 6 || result.Succeeded != 6 || result.Failed != 0 {
			t.Errorf("unexpected counts %+v", result)
		}
		for i, res := range result.Results {
			if res.ID != fmt.Sprintf("album%d", i) || res.Color[0] != uint8(i) {
				t.Errorf("result %d out of order: %+v", i, res)
			}
		}
	})

	t.Run("partial failures", func(t *testing.T) {
		ex := newMockExtractor()
		ex.errs["album1"] = &shared.WorkerError{Stage: shared.StageDecode, Err: errors.New("bad image")}

		result, err := BulkExtract(ctx, nil, ex, requests(3), BulkExtractOpts{RateLimit: 1000})
		if err != nil {
			t.Fatalf("BulkExtract() error = %v", err)
		}
		if result.Succeeded != 2 || result.Failed != 1 {
			t.Errorf("expected 2/1, got %d/%d", result.Succeeded, result.Failed)
		}

		failed := result.Results[1]
		var wErr *shared.WorkerError
		if failed.Success || !errors.As(failed.Error, &wErr) || wErr.Stage != shared.StageDecode {
			t.Errorf("expected decode failure, got %+v", failed)
		}
		if !strings.Contains(failed.Message, "bad image") {
			t.Errorf("expected message to be recorded, got %q", failed.Message)
		}
	})

	t.Run("nil extractor", func(t *testing.T) {
		if _, err := BulkExtract(ctx, nil, nil, requests(1), BulkExtractOpts{}); !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})

	t.Run("empty input", func(t *testing.T) {
		result, err := BulkExtract(ctx, nil, newMockExtractor(), nil, BulkExtractOpts{})
		if err != nil {
			t.Fatalf("BulkExtract() error = %v", err)
		}
		if result.Total != 0 || len(result.Results) != 0 {
			t.Errorf("expected empty result, got %+v", result)
		}
	})

	t.Run("cancelled context fails remaining requests", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()

		ex := newMockExtractor()
		result, err := BulkExtract(cctx, nil, ex, requests(4), BulkExtractOpts{NumWorkers: 2})
		if err != nil {
			t.Fatalf("BulkExtract() error = %v", err)
		}
		if result.Failed != 4 {
			t.Errorf("expected all 4 to fail, got %d", result.Failed)
		}
		for _, res := range result.Results {
			if !errors.Is(res.Error, shared.ErrAborted) {
				t.Errorf("expected ErrAborted for %s, got %v", res.ID, res.Error)
			}
		}
		if len(ex.calls) != 0 {
			t.Errorf("extractor should not be called, got %v", ex.calls)
		}
	})

	t.Run("progress updates", func(t *testing.T) {
		prog := make(chan ProgressUpdate, 20)

		_, err := BulkExtract(ctx, prog, newMockExtractor(), requests(3), BulkExtractOpts{RateLimit: 1000})
		if err != nil {
			t.Fatalf("BulkExtract() error = %v", err)
		}
		close(prog)

		var phases []Phase
		for u := range prog {
			phases = append(phases, u.Phase)
		}
		if len(phases) != 4 || phases[0] != FetchCovers {
			t.Fatalf("unexpected phases %v", phases)
		}
		for _, p := range phases[1:] {
			if p != ExtractColors {
				t.Errorf("expected %s, got %s", ExtractColors, p)
			}
		}
	})

	t.Run("blocked progress channel does not stall", func(t *testing.T) {
		prog := make(chan ProgressUpdate)

		result, err := BulkExtract(ctx, prog, newMockExtractor(), requests(3), BulkExtractOpts{RateLimit: 1000})
		if err != nil || result.Succeeded != 3 {
			t.Errorf("expected 3 successes, got %+v, %v", result, err)
		}
	})

	t.Run("report", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "reports", "colors.json")

		result, err := BulkExtract(ctx, nil, newMockExtractor(), requests(2), BulkExtractOpts{RateLimit: 1000, ReportPath: path})
		if err != nil {
			t.Fatalf("BulkExtract() error = %v", err)
		}
		if result.ReportPath != path {
			t.Errorf("expected report path %s, got %s", path, result.ReportPath)
		}

		var report BulkExtractResult
		if err := json.Unmarshal([]byte(tu.MustReadFile(t, path)), &report); err != nil {
			t.Fatalf("invalid report: %v", err)
		}
		if report.Total != 2 || report.Results[0].Color != (models.RGB{1, 2, 3}) {
			t.Errorf("unexpected report %+v", report)
		}
	})
}

func TestUniqueRequests(t *testing.T) {
	reqs := []models.ColorRequest{
		{ID: "a", ImageURL: "u1"},
		{ID: "b", ImageURL: ""},
		{ID: "", ImageURL: "u3"},
		{ID: "a", ImageURL: "u4"},
		{ID: "c", ImageURL: "u5"},
	}

	got := UniqueRequests(reqs)
	if len(got) != 2 || got[0].ImageURL != "u1" || got[1].ID != "c" {
		t.Errorf("unexpected requests %+v", got)
	}
}

func TestPhase_String(t *testing.T) {
	tests := map[Phase]string{
		FetchCovers:   "fetch_covers",
		ExtractColors: "extract_colors",
		WriteReport:   "write_report",
		Phase(99):     "",
	}
	for p, want := range tests {
		if p.String() != want {
			t.Errorf("Phase(%d).String() = %q, want %q", p, p.String(), want)
		}
	}
}
