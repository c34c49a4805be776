package grpc

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/godilite/evaluation-engine/internal/rating"
	"github.com/godilite/evaluation-engine/internal/service"
	"github.com/godilite/evaluation-engine/pkg/cache"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	defaultCacheDuration = 10 * time.Minute
	defaultGRPCTimeout   = 10 * time.Second
)

type CacheKeyType string

const (
	cacheKeyDashboardMetrics CacheKeyType = "grpc:dashboard_metrics"
)

type GRPCHandlers struct {
	evaluations EvaluationService
	cache       *cache.ReadThrough
	logger      *zap.Logger
	cacheTTL    time.Duration
}

var _ EvaluationAnalyticsServer = (*GRPCHandlers)(nil)

// NewGRPCHandlers initializes the gRPC handlers. A nil cache disables dashboard caching.
func NewGRPCHandlers(evaluations EvaluationService, c Cacher, logger *zap.Logger, ttl time.Duration) *GRPCHandlers {
	if evaluations == nil {
		panic("nil EvaluationService provided to NewGRPCHandlers")
	}
	if ttl <= 0 {
		ttl = defaultCacheDuration
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	var store cache.Store
	if c != nil {
		store = c
	}

	logger = logger.Named("grpc-handler")
	return &GRPCHandlers{
		evaluations: evaluations,
		cache:       cache.NewReadThrough(store, ttl, logger),
		logger:      logger,
		cacheTTL:    ttl,
	}
}

// parseDashboardQuery validates the requested window and widens it to whole UTC days.
func (s *GRPCHandlers) parseDashboardQuery(req *structpb.Struct) (service.DashboardQuery, error) {
	var q service.DashboardQuery
	if err := FromStruct(req, &q); err != nil {
		return q, status.Errorf(codes.InvalidArgument, "malformed dashboard request: %v", err)
	}

	if q.Start.IsZero() || q.End.IsZero() {
		return q, status.Error(codes.InvalidArgument, "start and end dates are required")
	}
	if q.End.Before(q.Start) {
		return q, status.Error(codes.InvalidArgument, "end date must be after start date")
	}

	q.Start = q.Start.UTC().Truncate(24 * time.Hour)
	q.End = q.End.UTC().Truncate(24 * time.Hour).Add(24*time.Hour - time.Nanosecond)

	subjects := make([]string, 0, len(q.SubjectIDs))
	seen := make(map[string]struct{}, len(q.SubjectIDs))
	for _, id := range q.SubjectIDs {
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		subjects = append(subjects, id)
	}
	sort.Strings(subjects)
	q.SubjectIDs = subjects

	return q, nil
}

func normalizeKey(prefix CacheKeyType, version string, q service.DashboardQuery) string {
	s := q.Start.UTC().Truncate(24 * time.Hour).Format("2006-01-02")
	e := q.End.UTC().Truncate(24 * time.Hour).Format("2006-01-02")
	subjects := "*"
	if len(q.SubjectIDs) > 0 {
		subjects = strings.Join(q.SubjectIDs, ",")
	}
	return fmt.Sprintf("%s:%s:%s:%s:%s", prefix, version, subjects, s, e)
}

func (s *GRPCHandlers) handleError(ctx context.Context, op string, err error) error {
	switch ctx.Err() {
	case context.Canceled:
		s.logger.Warn("request canceled", zap.String("op", op))
		return status.Error(codes.Canceled, "request canceled")
	case context.DeadlineExceeded:
		s.logger.Warn("request timeout", zap.String("op", op))
		return status.Error(codes.DeadlineExceeded, "request timed out")
	}

	switch {
	case errors.Is(err, rating.ErrSchemaMismatch), errors.Is(err, rating.ErrRatingOutOfRange),
		errors.Is(err, service.ErrInvalidSubmission), errors.Is(err, service.ErrInvalidEvaluation):
		s.logger.Info("rejected submission", zap.String("op", op), zap.Error(err))
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, rating.ErrIncompleteSubmission):
		s.logger.Info("incomplete submission", zap.String("op", op), zap.Error(err))
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, service.ErrNoEvaluations):
		s.logger.Info("no evaluations found", zap.String("op", op))
		return status.Error(codes.NotFound, "no evaluations found for the given period")
	case errors.Is(err, service.ErrStorageFailure):
		s.logger.Error("storage failure", zap.String("op", op), zap.Error(err))
		return status.Error(codes.Internal, "database error")
	default:
		s.logger.Error("unexpected error", zap.String("op", op), zap.Error(err))
		return status.Errorf(codes.Internal, "%s failed: %v", op, err)
	}
}

func (s *GRPCHandlers) ScoreSubmission(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var sub service.Submission
	if err := FromStruct(req, &sub); err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "malformed submission: %v", err)
	}

	ev, err := s.evaluations.ScoreSubmission(sub)
	if err != nil {
		return nil, s.handleError(ctx, "ScoreSubmission", err)
	}
	return s.respond(ctx, "ScoreSubmission", ev)
}

func (s *GRPCHandlers) PreviewDraft(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var sub service.Submission
	if err := FromStruct(req, &sub); err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "malformed submission: %v", err)
	}

	preview, err := s.evaluations.PreviewDraft(sub)
	if err != nil {
		return nil, s.handleError(ctx, "PreviewDraft", err)
	}
	return s.respond(ctx, "PreviewDraft", preview)
}

func (s *GRPCHandlers) GetDashboardMetrics(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	q, err := s.parseDashboardQuery(req)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, defaultGRPCTimeout)
	defer cancel()

	cacheKey := normalizeKey(cacheKeyDashboardMetrics, s.evaluations.Taxonomy().Version(), q)

	metrics, err := cache.Fetch(ctx, s.cache, cacheKey, func(fetchCtx context.Context) (service.DashboardMetrics, error) {
		return s.evaluations.GetDashboardMetrics(fetchCtx, q)
	})
	if err != nil {
		return nil, s.handleError(ctx, "GetDashboardMetrics", err)
	}
	return s.respond(ctx, "GetDashboardMetrics", metrics)
}

func (s *GRPCHandlers) respond(ctx context.Context, op string, v any) (*structpb.Struct, error) {
	out, err := ToStruct(v)
	if err != nil {
		return nil, s.handleError(ctx, op, err)
	}
	return out, nil
}
