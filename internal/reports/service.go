package reports

import (
	"context"
	"fmt"
	"log/slog"

	"casework/internal/assessments"
	"casework/internal/person"
	"casework/pkg/domain"
)

// SummarySource supplies one page of assessment summaries for the
// requesting user.
type SummarySource interface {
	GetSummariesForUser(ctx context.Context, crn *domain.CRN, statuses []assessments.Status, page int, sortBy string, sortDesc bool) ([]assessments.Summary, assessments.PageInfo, error)
}

// NameResolver supplies redaction-aware person summaries in batches.
type NameResolver interface {
	ResolveManyInBatches(ctx context.Context, crns []domain.CRN, strategy person.AccessStrategy, batchSize int) ([]person.SummaryInfoResult, error)
}

// Query carries the listing filters straight through to the summary source.
type Query struct {
	CRN      *domain.CRN
	Statuses []assessments.Status
	Page     int
	SortBy   string
	SortDesc bool
}

// Service produces region-scoped assessment listings with person names
// filled in. Names always come from the access-checked resolution path, so
// a restricted case renders its placeholder rather than the real name.
type Service struct {
	source    SummarySource
	resolver  NameResolver
	batchSize int
	logger    *slog.Logger
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func NewService(source SummarySource, resolver NameResolver, batchSize int, opts ...Option) (*Service, error) {
	if source == nil {
		return nil, fmt.Errorf("summary source is required")
	}
	if resolver == nil {
		return nil, fmt.Errorf("name resolver is required")
	}
	if batchSize <= 0 {
		return nil, fmt.Errorf("batch size must be positive, got %d", batchSize)
	}

	svc := &Service{
		source:    source,
		resolver:  resolver,
		batchSize: batchSize,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// ListSummaries returns one page of summaries with the Name column filled
// from the resolver. Rows are matched to resolutions by CRN, never by
// position: batched upstream calls complete in arbitrary order.
func (s *Service) ListSummaries(ctx context.Context, query Query) ([]assessments.Summary, assessments.PageInfo, error) {
	rows, pageInfo, err := s.source.GetSummariesForUser(ctx, query.CRN, query.Statuses, query.Page, query.SortBy, query.SortDesc)
	if err != nil {
		return nil, assessments.PageInfo{}, err
	}
	if len(rows) == 0 {
		return rows, pageInfo, nil
	}

	crns := make([]domain.CRN, 0, len(rows))
	for _, row := range rows {
		crns = append(crns, row.CRN)
	}

	resolved, err := s.resolver.ResolveManyInBatches(ctx, crns, person.StrategyCheckAccess, s.batchSize)
	if err != nil {
		return nil, assessments.PageInfo{}, fmt.Errorf("resolve names for summary page: %w", err)
	}

	byCRN := make(map[domain.CRN]person.SummaryInfoResult, len(resolved))
	for _, res := range resolved {
		byCRN[res.CRN()] = res
	}

	for i := range rows {
		res, ok := byCRN[rows[i].CRN]
		if !ok {
			// Resolver output covers every requested CRN; a gap here means
			// an upstream contract break, so render the unknown placeholder.
			s.logger.WarnContext(ctx, "no resolution for crn in summary page",
				"crn", rows[i].CRN.String())
			res = person.NotFound(rows[i].CRN)
		}
		rows[i].Name = res.DisplayName()
	}
	return rows, pageInfo, nil
}
