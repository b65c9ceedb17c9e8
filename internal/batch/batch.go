// Package batch runs a tool's per-item work concurrently and collects
// the outcomes into one envelope. A failing item never aborts its
// siblings.
package batch

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// DefaultLimit caps concurrent upstream calls within one tool call.
const DefaultLimit = 4

// Result is the outcome of one item.
type Result struct {
	Index   int    `json:"index"`
	Success bool   `json:"success"`
	ID      string `json:"id,omitempty"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Summary counts item outcomes.
type Summary struct {
	Total     int `json:"total"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}

// Envelope is returned by every batch tool. Success is true only when
// every item succeeded.
type Envelope struct {
	Success bool     `json:"success"`
	Summary Summary  `json:"summary"`
	Results []Result `json:"results"`
}

// Outcome is what a successful item reports.
type Outcome struct {
	ID   string
	Data any
}

// Func processes one item. index is the item's position in the input.
type Func[T any] func(ctx context.Context, index int, item T) (Outcome, error)

// Run applies fn to every item with at most limit running at once and
// returns the results in input order. A limit below one uses
// DefaultLimit. Panics inside fn are recorded as item failures.
func Run[T any](ctx context.Context, items []T, limit int, fn Func[T]) Envelope {
	if limit < 1 {
		limit = DefaultLimit
	}

	results := make([]Result, len(items))

	var g errgroup.Group

	g.SetLimit(limit)

	for i, item := range items {
		g.Go(func() error {
			results[i] = runOne(ctx, i, item, fn)
			return nil
		})
	}

	_ = g.Wait()

	return Collect(results)
}

func runOne[T any](ctx context.Context, index int, item T, fn Func[T]) (res Result) {
	res.Index = index

	defer func() {
		if r := recover(); r != nil {
			res = Failure(index, fmt.Errorf("internal error: %v", r))
		}
	}()

	if err := ctx.Err(); err != nil {
		return Failure(index, err)
	}

	out, err := fn(ctx, index, item)
	if err != nil {
		return Failure(index, err)
	}

	return Result{Index: index, Success: true, ID: out.ID, Data: out.Data}
}

// Failure builds a failed result for the item at index.
func Failure(index int, err error) Result {
	return Result{Index: index, Error: err.Error()}
}

// Collect builds an envelope from already computed results.
func Collect(results []Result) Envelope {
	env := Envelope{
		Summary: Summary{Total: len(results)},
		Results: results,
	}

	if env.Results == nil {
		env.Results = []Result{}
	}

	for _, r := range results {
		if r.Success {
			env.Summary.Succeeded++
		} else {
			env.Summary.Failed++
		}
	}

	env.Success = env.Summary.Failed == 0

	return env
}
