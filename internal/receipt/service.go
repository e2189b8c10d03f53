package receipt

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/singleflight"

	"github.com/zombor/receipt-extractor/internal/scanning"
)

// Service runs the extraction pipeline: prompt, remote extraction, JSON location,
// normalization and aggregation. Successful results are cached by submission.
type Service struct {
	scanner          scanning.Scanner
	cache            Cache
	credentialPrefix string
	inflight         singleflight.Group
}

// NewService creates a new Service with an in-memory cache
func NewService(scanner scanning.Scanner, credentialPrefix string) *Service {
	return NewServiceWithDeps(scanner, NewMemoryCache(DefaultCacheTTL), credentialPrefix)
}

// NewServiceWithDeps creates a new Service with a custom cache
func NewServiceWithDeps(scanner scanning.Scanner, cache Cache, credentialPrefix string) *Service {
	return &Service{
		scanner:          scanner,
		cache:            cache,
		credentialPrefix: credentialPrefix,
	}
}

// Extract returns the Result for req, calling the extraction service at most once per
// distinct submission inside the cache window.
func (s *Service) Extract(ctx context.Context, req Request) (*Result, error) {
	if len(req.Image) == 0 {
		return nil, fmt.Errorf("%w: no image provided", ErrInvalidRequest)
	}
	if req.ExpectedItems < 0 {
		return nil, fmt.Errorf("%w: expected items must not be negative", ErrInvalidRequest)
	}

	key := req.CacheKey()
	if result, ok := s.cache.Get(key); ok {
		slog.Debug("Serving extraction from cache", "image", req.ImageHash()[:12])
		return result, nil
	}

	ch := s.inflight.DoChan(key, func() (any, error) {
		// the first caller's cancellation must not fail the callers sharing this run
		return s.run(context.WithoutCancel(ctx), key, req)
	})

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("waiting for extraction: %w", ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Result), nil
	}
}

func (s *Service) run(ctx context.Context, key string, req Request) (*Result, error) {
	logger := slog.With("image", req.ImageHash()[:12], "expected_items", req.ExpectedItems)

	if result, ok := s.cache.Get(key); ok {
		return result, nil
	}

	if s.credentialPrefix != "" && !strings.HasPrefix(req.Credential, s.credentialPrefix) {
		logger.Warn("Credential does not have the expected prefix", "prefix", s.credentialPrefix)
	}

	prompt := scanning.BuildPrompt(req.ExpectedItems)

	logger.Info("Extracting receipt")
	raw, err := s.scanner.Extract(ctx, req.Image, req.Credential, prompt)
	if err != nil {
		logger.Error("Failed to extract receipt", "error", err)
		if errors.Is(err, scanning.ErrInvalidImage) {
			return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
		}
		return nil, fmt.Errorf("extracting receipt: %w", err)
	}
	logger.Debug("Model response", "raw", raw)

	parsed, err := scanning.LocateAndParse(raw)
	if err != nil {
		logger.Error("Failed to parse model response", "error", err)
		return nil, fmt.Errorf("parsing model response: %w", err)
	}

	record, err := Normalize(parsed)
	if err != nil {
		logger.Error("Failed to normalize model response", "error", err)
		return nil, fmt.Errorf("normalizing receipt: %w", err)
	}

	agg := Aggregate(record)
	result := &Result{
		Receipt:    record,
		Summary:    agg.Summary,
		Categories: agg.Categories,
		Warnings:   warnings(req, record, agg),
	}
	for _, w := range result.Warnings {
		logger.Warn("Partial result", "warning", w)
	}

	if err := s.cache.Set(key, result); err != nil {
		logger.Warn("Failed to cache result", "error", err)
	}

	return result, nil
}

func warnings(req Request, record *Receipt, agg Aggregation) []string {
	var out []string
	if req.ExpectedItems > 0 && len(record.Items) != req.ExpectedItems {
		out = append(out, fmt.Sprintf("expected %d items but the model returned %d", req.ExpectedItems, len(record.Items)))
	}
	if agg.DiscountErr != nil {
		out = append(out, fmt.Sprintf("discount unavailable: %v", agg.DiscountErr))
	}
	if agg.CategoryErr != nil {
		out = append(out, fmt.Sprintf("category totals omitted: %v", agg.CategoryErr))
	}
	for _, i := range agg.Skipped {
		out = append(out, fmt.Sprintf("item %d left out of category totals: product type is not text", i+1))
	}
	return out
}
