package application

import (
	"context"

	"github.com/shopline-platform/reconciliation-service/internal/domain"
	"github.com/shopline-platform/reconciliation-service/internal/resolver"
	"github.com/shopline-platform/reconciliation-service/pkg/logging"
	"github.com/shopline-platform/reconciliation-service/pkg/metrics"
)

// SalePipeline runs the resolve, decrement, cross-remove sequence for one
// external transaction. The webhook ingress and the batch reconciliation job
// both funnel into Process, which is what makes the two paths idempotent
// with respect to each other.
type SalePipeline struct {
	resolver     *resolver.Resolver
	ledger       *LedgerService
	orchestrator *RemovalOrchestrator
	logger       *logging.Logger
	metrics      *metrics.Metrics
}

// NewSalePipeline creates a new sale pipeline
func NewSalePipeline(
	r *resolver.Resolver,
	ledger *LedgerService,
	orchestrator *RemovalOrchestrator,
	logger *logging.Logger,
	m *metrics.Metrics,
) *SalePipeline {
	return &SalePipeline{
		resolver:     r,
		ledger:       ledger,
		orchestrator: orchestrator,
		logger:       logger.WithComponent("pipeline"),
		metrics:      m,
	}
}

// Process applies every line item of one transaction. Unresolved lines are
// counted and skipped, never errors: they belong to merchandise outside this
// system. Only ledger write failures propagate.
func (p *SalePipeline) Process(ctx context.Context, tx *domain.ExternalTransaction) (*PipelineResult, error) {
	result := &PipelineResult{}
	logger := p.logger.WithChannel(string(tx.Channel)).WithFields(map[string]any{
		"transactionId": tx.TransactionID,
	})

	for _, line := range tx.LineItems {
		result.Lines++

		resolution, err := p.resolver.Resolve(ctx, line)
		if err != nil {
			return result, err
		}
		if p.metrics != nil {
			p.metrics.RecordResolverOutcome(resolution.Strategy, string(resolution.Outcome))
		}

		switch resolution.Outcome {
		case resolver.OutcomeNoMatch:
			result.Unmatched++
			logger.WithFields(map[string]any{"line": line.Name}).
				Warn("line item did not resolve to an inventory item")
			continue
		case resolver.OutcomeCategoryMismatch:
			result.CategoryMismatched++
			logger.WithFields(map[string]any{"line": line.Name, "code": resolution.Code}).
				Warn("code matched an item outside its seller's categories")
			continue
		}

		application, err := p.ledger.ApplySale(ctx, resolution.Item, tx, line)
		if err != nil {
			return result, err
		}
		if application.Duplicate {
			result.Duplicates++
			continue
		}
		result.Applied++

		if application.SoldOut() {
			removal := p.orchestrator.RemoveFromOtherChannels(ctx, application.Item, tx.Channel)
			if !removal.Complete() {
				logger.WithFields(map[string]any{
					"itemId":   application.Item.ItemID,
					"failures": len(removal.Failures),
				}).Warn("cross-channel removal incomplete")
			}
		} else {
			// Small-batch stock remains; the other channels still list it
			// and need the new quantity.
			p.orchestrator.SyncQuantity(ctx, application.Item, tx.Channel)
		}
	}

	return result, nil
}
