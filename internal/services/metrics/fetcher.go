// Package metrics orchestrates remote metric computation: pairwise matrix
// fetching, single-series statistics, per-kind state tracking and retry.
package metrics

import (
	"context"
	"fmt"
	"sync"

	"github.com/okrause/seriesdash/internal/client"
	"github.com/okrause/seriesdash/internal/logger"
	"github.com/okrause/seriesdash/internal/models"
)

// failureThreshold is the fraction of failed pairs above which a whole
// metric kind is discarded instead of being presented as mostly-empty data.
const failureThreshold = 0.25

// MetricCaller issues the per-pair and per-file remote calls.
type MetricCaller interface {
	PairMetric(ctx context.Context, req models.MetricRequest) (*float64, error)
	SeriesStat(ctx context.Context, req models.MetricRequest) (*float64, error)
	ClearRemote(ctx context.Context) error
}

// MatrixRequest describes one matrix computation over a category's files.
type MatrixRequest struct {
	Kind        models.KindInfo
	Category    string
	Files       []string
	Window      models.Window
	Tolerance   int
	Concurrency int // pair calls in flight at once; <=1 means sequential
}

// FetchMatrix computes a full n×n matrix by calling the remote service for
// each upper-triangle pair only (n(n-1)/2 calls), writing every successful
// value to both symmetric cells. Diagonal and default values are filled
// client-side, never requested. n <= 1 performs zero calls.
//
// Pair-level failures are tolerated and counted: each leaves the default
// cell value in place. When more than failureThreshold of the pairs fail
// the matrix is discarded and a TotalFailure ErrorRecord returned. Below
// the threshold the matrix comes back along with the failed-pair count.
func FetchMatrix(ctx context.Context, caller MetricCaller, req MatrixRequest) (*models.Matrix, int, error) {
	matrix := models.NewMatrix(req.Files, req.Kind.Family)

	n := len(req.Files)
	if n <= 1 {
		return matrix, 0, nil
	}

	type pair struct{ i, j int }
	var pairs []pair
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			pairs = append(pairs, pair{i, j})
		}
	}

	concurrency := req.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}

	var (
		mu     sync.Mutex
		failed int
		wg     sync.WaitGroup
		sem    = make(chan struct{}, concurrency)
	)

	for _, p := range pairs {
		wg.Add(1)
		go func(a, b string) {
			defer wg.Done()

			sem <- struct{}{}
			defer func() { <-sem }()

			if ctx.Err() != nil {
				return
			}

			value, err := caller.PairMetric(ctx, models.MetricRequest{
				Kind:      req.Kind,
				Category:  req.Category,
				File1:     a,
				File2:     b,
				Window:    req.Window,
				Tolerance: req.Tolerance,
			})

			mu.Lock()
			defer mu.Unlock()

			switch {
			case err != nil:
				failed++
				logger.Warn("pair computation failed",
					"kind", req.Kind.ID, "category", req.Category,
					"file1", a, "file2", b, "error", err)
			case value == nil:
				// Server declined the pair; the default cell value stands.
				logger.Debug("pair returned no value",
					"kind", req.Kind.ID, "file1", a, "file2", b)
			default:
				matrix.Set(a, b, *value)
			}
		}(req.Files[p.i], req.Files[p.j])
	}

	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, failed, err
	}

	if failed > 0 && float64(failed)/float64(len(pairs)) > failureThreshold {
		return nil, failed, &client.ErrorRecord{
			Kind: client.ErrTotalFailure,
			Message: fmt.Sprintf("%d of %d pair computations failed for %s in %q; discarding the result",
				failed, len(pairs), req.Kind.Label, req.Category),
		}
	}

	return matrix, failed, nil
}

// FetchStats computes one single-series statistic per file. A file whose
// call returns null is left out of the result map (zero is a valid value
// and must stay distinguishable from "unavailable"); a file whose call
// fails is counted. When every call fails the whole kind is a TotalFailure.
func FetchStats(ctx context.Context, caller MetricCaller, req MatrixRequest) (models.StatResults, int, error) {
	results := make(models.StatResults, len(req.Files))
	if len(req.Files) == 0 {
		return results, 0, nil
	}

	failed := 0
	for _, file := range req.Files {
		if err := ctx.Err(); err != nil {
			return nil, failed, err
		}

		value, err := caller.SeriesStat(ctx, models.MetricRequest{
			Kind:     req.Kind,
			Category: req.Category,
			File1:    file,
			Window:   req.Window,
		})
		if err != nil {
			failed++
			logger.Warn("statistic computation failed",
				"kind", req.Kind.ID, "category", req.Category,
				"file", file, "error", err)
			continue
		}
		if value == nil {
			continue
		}
		results[file] = *value
	}

	if failed == len(req.Files) {
		return nil, failed, &client.ErrorRecord{
			Kind: client.ErrTotalFailure,
			Message: fmt.Sprintf("every %s computation failed for %q",
				req.Kind.Label, req.Category),
		}
	}

	return results, failed, nil
}
