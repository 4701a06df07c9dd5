package application

import (
	"context"
	"time"

	"github.com/shopline-platform/reconciliation-service/internal/domain"
	"github.com/shopline-platform/reconciliation-service/pkg/logging"
	"github.com/shopline-platform/reconciliation-service/pkg/metrics"
)

// ReconcileService replays a channel's completed transactions for a time
// window through the sale pipeline. It exists to catch sales whose webhook
// never arrived; re-seeing transactions already applied is the normal case,
// absorbed by the ledger's idempotency guard. Runs are sequential by design
// to respect channel rate limits and keep audit logs readable.
type ReconcileService struct {
	adapters *domain.AdapterFactory
	pipeline *SalePipeline
	logger   *logging.Logger
	metrics  *metrics.Metrics
}

// NewReconcileService creates a new reconcile service
func NewReconcileService(
	adapters *domain.AdapterFactory,
	pipeline *SalePipeline,
	logger *logging.Logger,
	m *metrics.Metrics,
) *ReconcileService {
	return &ReconcileService{
		adapters: adapters,
		pipeline: pipeline,
		logger:   logger.WithComponent("reconcile"),
		metrics:  m,
	}
}

// Reconcile pulls the channel's completed transactions inside the window and
// funnels each one through the pipeline, one at a time. Aborting between
// transactions is safe: each transaction's effects are durable before the
// next begins.
func (s *ReconcileService) Reconcile(ctx context.Context, channel domain.ChannelName, windowStart, windowEnd time.Time) (*ReconcileResult, error) {
	result := &ReconcileResult{
		Channel:     channel,
		WindowStart: windowStart,
		WindowEnd:   windowEnd,
		StartedAt:   time.Now().UTC(),
	}
	logger := s.logger.WithChannel(string(channel)).WithFields(map[string]any{
		"windowStart": windowStart.Format(time.RFC3339),
		"windowEnd":   windowEnd.Format(time.RFC3339),
	})

	adapter, err := s.adapters.GetAdapter(channel)
	if err != nil {
		return nil, err
	}

	transactions, err := adapter.FetchCompletedTransactions(ctx, windowStart, windowEnd)
	if err != nil {
		s.recordRun("fetch_failed", result)
		return nil, err
	}
	logger.WithFields(map[string]any{"transactions": len(transactions)}).Info("reconciliation window fetched")

	for _, tx := range transactions {
		select {
		case <-ctx.Done():
			s.recordRun("aborted", result)
			result.FinishedAt = time.Now().UTC()
			return result, ctx.Err()
		default:
		}

		txResult, err := s.pipeline.Process(ctx, tx)
		s.accumulate(result, txResult)
		if err != nil {
			// Ledger failure: stop the run, everything applied so far
			// is durable and the run can simply be repeated.
			result.Failures++
			s.recordRun("failed", result)
			result.FinishedAt = time.Now().UTC()
			return result, err
		}
		result.Transactions++
	}

	result.FinishedAt = time.Now().UTC()
	s.recordRun("completed", result)
	logger.WithFields(map[string]any{
		"transactions": result.Transactions,
		"applied":      result.Applied,
		"duplicates":   result.Duplicates,
		"unmatched":    result.Unmatched,
	}).Info("reconciliation run finished")

	return result, nil
}

func (s *ReconcileService) accumulate(result *ReconcileResult, txResult *PipelineResult) {
	if txResult == nil {
		return
	}
	result.Lines += txResult.Lines
	result.Applied += txResult.Applied
	result.Duplicates += txResult.Duplicates
	result.Unmatched += txResult.Unmatched
	result.CategoryMismatched += txResult.CategoryMismatched
}

func (s *ReconcileService) recordRun(status string, result *ReconcileResult) {
	if s.metrics == nil {
		return
	}
	s.metrics.RecordReconcileRun(status, time.Since(result.StartedAt))
}
