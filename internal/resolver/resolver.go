package resolver

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"github.com/shopline-platform/reconciliation-service/internal/domain"
	"github.com/shopline-platform/reconciliation-service/pkg/logging"
)

// Outcome classifies the result of resolving a transaction line item
type Outcome string

const (
	// OutcomeMatched means a single inventory item was identified
	OutcomeMatched Outcome = "matched"
	// OutcomeNoMatch means no strategy produced an item; the line is
	// assumed to belong to merchandise outside this system.
	OutcomeNoMatch Outcome = "no_match"
	// OutcomeCategoryMismatch means a code matched an item whose category
	// is outside its seller's authorized set, so the match was rejected.
	OutcomeCategoryMismatch Outcome = "category_mismatch"
)

// Strategy names, in chain order
const (
	StrategyPOSVariationRef  = "pos_variation_ref"
	StrategyPOSItemRef       = "pos_item_ref"
	StrategyMarketListingRef = "market_listing_ref"
	StrategyCodeFromName     = "code_from_name"
)

// codePatterns extract an item code from a free-text line name, tried in
// order: prefixed code before a dash, bare number before a dash, prefixed
// code before whitespace.
var codePatterns = []*regexp.Regexp{
	regexp.MustCompile(`^([A-Z]{2,3}\d+)\s*-`),
	regexp.MustCompile(`^(\d+)\s*-`),
	regexp.MustCompile(`^([A-Z]{2,3}\d+)\s+`),
}

// ExtractCode pulls an item code out of a line item name. Returns the empty
// string when no pattern matches.
func ExtractCode(name string) string {
	for _, pattern := range codePatterns {
		if match := pattern.FindStringSubmatch(name); match != nil {
			return strings.ToUpper(match[1])
		}
	}
	return ""
}

// SellerScopes maps a seller to the categories they are authorized to sell.
// A seller with no configured scope is unrestricted.
type SellerScopes map[string][]string

// Authorizes reports whether the seller may carry items of the category
func (s SellerScopes) Authorizes(sellerID, category string) bool {
	categories, ok := s[sellerID]
	if !ok {
		return true
	}
	for _, c := range categories {
		if c == category {
			return true
		}
	}
	return false
}

// Resolution is the outcome of resolving one transaction line item
type Resolution struct {
	Outcome  Outcome
	Item     *domain.InventoryItem
	Strategy string
	// Code is set when the code-from-name strategy fired
	Code string
	// Ambiguous is set when several items shared the extracted code and
	// the most recent one was chosen.
	Ambiguous bool
}

// Resolver maps an external transaction line to an inventory item by running
// an ordered strategy chain: explicit channel references first, free-text
// code extraction last. The first strategy producing an item wins.
type Resolver struct {
	items  domain.ItemRepository
	scopes SellerScopes
	logger *logging.Logger
}

// New creates a Resolver
func New(items domain.ItemRepository, scopes SellerScopes, logger *logging.Logger) *Resolver {
	return &Resolver{
		items:  items,
		scopes: scopes,
		logger: logger.WithComponent("resolver"),
	}
}

// Resolve runs the strategy chain for one line item
func (r *Resolver) Resolve(ctx context.Context, line domain.TransactionLineItem) (*Resolution, error) {
	// The POS reports one opaque catalog id per line. For a regular item
	// that id is the variation; for an item whose single variation was
	// collapsed into its parent it is the item itself, so the same id is
	// tried against both indexes.
	posItemRef := line.POSItemRef
	if posItemRef == "" {
		posItemRef = line.POSVariationRef
	}

	refLookups := []struct {
		strategy string
		ref      string
		find     func(context.Context, string) (*domain.InventoryItem, error)
	}{
		{StrategyPOSVariationRef, line.POSVariationRef, r.items.FindByPOSVariationRef},
		{StrategyPOSItemRef, posItemRef, r.items.FindByPOSItemRef},
		{StrategyMarketListingRef, line.MarketListingRef, r.items.FindByMarketListingRef},
	}

	for _, lookup := range refLookups {
		if lookup.ref == "" {
			continue
		}
		item, err := lookup.find(ctx, lookup.ref)
		if err != nil {
			if errors.Is(err, domain.ErrItemNotFound) {
				continue
			}
			return nil, err
		}
		return &Resolution{
			Outcome:  OutcomeMatched,
			Item:     item,
			Strategy: lookup.strategy,
		}, nil
	}

	return r.resolveByCode(ctx, line)
}

func (r *Resolver) resolveByCode(ctx context.Context, line domain.TransactionLineItem) (*Resolution, error) {
	code := ExtractCode(line.Name)
	if code == "" {
		return &Resolution{Outcome: OutcomeNoMatch}, nil
	}

	candidates, err := r.items.FindByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return &Resolution{Outcome: OutcomeNoMatch, Code: code}, nil
	}

	// Codes repeat across intake batches; the most recent item wins
	item := candidates[0]
	ambiguous := len(candidates) > 1
	if ambiguous {
		r.logger.WithFields(map[string]interface{}{
			"code":       code,
			"candidates": len(candidates),
			"chosen":     item.ItemID,
		}).Warn("ambiguous item code, using most recent item")
	}

	if !r.scopes.Authorizes(item.SellerID, item.Category) {
		r.logger.WithFields(map[string]interface{}{
			"code":     code,
			"itemId":   item.ItemID,
			"sellerId": item.SellerID,
			"category": item.Category,
		}).Warn("code match rejected, category outside seller scope")
		return &Resolution{
			Outcome:   OutcomeCategoryMismatch,
			Strategy:  StrategyCodeFromName,
			Code:      code,
			Ambiguous: ambiguous,
		}, nil
	}

	return &Resolution{
		Outcome:   OutcomeMatched,
		Item:      item,
		Strategy:  StrategyCodeFromName,
		Code:      code,
		Ambiguous: ambiguous,
	}, nil
}
