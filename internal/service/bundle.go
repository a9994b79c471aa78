package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"

	"github.com/utafrali/PromotionGo/internal/domain"
	"github.com/utafrali/PromotionGo/internal/repository"
	"github.com/utafrali/PromotionGo/pkg/database"
	apperrors "github.com/utafrali/PromotionGo/pkg/errors"
)

// BundleEngine mutates bundle stock against component stock. Every operation
// runs inside the caller's transaction and never opens its own; the caller
// decides what commits together.
//
// Component rows are always locked in ascending id order so two concurrent
// operations sharing components cannot deadlock.
type BundleEngine struct {
	catalog repository.CatalogRepository
	logger  *slog.Logger
}

// NewBundleEngine creates a new bundle composition engine.
func NewBundleEngine(catalog repository.CatalogRepository, logger *slog.Logger) *BundleEngine {
	return &BundleEngine{catalog: catalog, logger: logger}
}

// Assemble builds qty kits of a KIT bundle out of component stock: each
// component is debited qty x componentQty and the bundle's own stock is
// credited qty. One stock movement is written per touched row.
func (e *BundleEngine) Assemble(ctx context.Context, q database.DBTX, bundleID int64, qty int) error {
	bundle, items, err := e.lockKitBundle(ctx, q, bundleID, qty)
	if err != nil {
		return err
	}

	for _, c := range items {
		required := qty * c.ComponentQty
		if c.Stock < required {
			return apperrors.InsufficientStock(fmt.Sprintf("component variant %d", c.ComponentVariantID), required, c.Stock)
		}
	}

	related := fmt.Sprint(bundleID)
	for _, c := range items {
		debit := qty * c.ComponentQty
		if err := e.catalog.AdjustStock(ctx, q, c.ComponentVariantID, -debit); err != nil {
			return err
		}
		if err := e.catalog.InsertMovement(ctx, q, &domain.StockMovement{
			VariantID: c.ComponentVariantID,
			Change:    -debit,
			Type:      domain.MovementBundleAssembleComponent,
			RelatedID: related,
		}); err != nil {
			return err
		}
	}

	if err := e.catalog.AdjustStock(ctx, q, bundleID, qty); err != nil {
		return err
	}
	if err := e.catalog.InsertMovement(ctx, q, &domain.StockMovement{
		VariantID: bundleID,
		Change:    qty,
		Type:      domain.MovementBundleAssemble,
	}); err != nil {
		return err
	}

	e.logger.InfoContext(ctx, "assembled bundle",
		slog.Int64("bundle_variant_id", bundle.ID),
		slog.Int("qty", qty),
		slog.Int("components", len(items)))
	return nil
}

// Disassemble is the exact inverse of Assemble: the bundle's stock is
// debited qty and each component is credited qty x componentQty.
func (e *BundleEngine) Disassemble(ctx context.Context, q database.DBTX, bundleID int64, qty int) error {
	bundle, items, err := e.lockKitBundle(ctx, q, bundleID, qty)
	if err != nil {
		return err
	}

	if bundle.Stock < qty {
		return apperrors.InsufficientStock(bundle.SKU, qty, bundle.Stock)
	}

	if err := e.catalog.AdjustStock(ctx, q, bundleID, -qty); err != nil {
		return err
	}
	if err := e.catalog.InsertMovement(ctx, q, &domain.StockMovement{
		VariantID: bundleID,
		Change:    -qty,
		Type:      domain.MovementBundleDisassemble,
	}); err != nil {
		return err
	}

	related := fmt.Sprint(bundleID)
	for _, c := range items {
		credit := qty * c.ComponentQty
		if err := e.catalog.AdjustStock(ctx, q, c.ComponentVariantID, credit); err != nil {
			return err
		}
		if err := e.catalog.InsertMovement(ctx, q, &domain.StockMovement{
			VariantID: c.ComponentVariantID,
			Change:    credit,
			Type:      domain.MovementBundleDisassembleComponent,
			RelatedID: related,
		}); err != nil {
			return err
		}
	}

	e.logger.InfoContext(ctx, "disassembled bundle",
		slog.Int64("bundle_variant_id", bundle.ID),
		slog.Int("qty", qty))
	return nil
}

// Consume debits component stock for qty units of a VIRTUAL bundle. The
// bundle's own stock field is untouched. The returned snapshot records the
// exact per-component debits; Restore replays it verbatim.
func (e *BundleEngine) Consume(ctx context.Context, q database.DBTX, bundleID int64, qty int, relatedID string) ([]domain.ComponentDebit, error) {
	if qty <= 0 {
		return nil, apperrors.InvalidInput("qty must be positive")
	}

	bundle, err := e.catalog.GetVariantForUpdate(ctx, q, bundleID)
	if err != nil {
		return nil, err
	}
	if !bundle.IsVirtualBundle() {
		return nil, apperrors.InvalidInput(fmt.Sprintf("variant %d is not a VIRTUAL bundle", bundleID))
	}

	components, err := e.catalog.LockComponents(ctx, q, bundleID)
	if err != nil {
		return nil, err
	}
	if len(components) == 0 {
		return nil, apperrors.InvalidInput(fmt.Sprintf("bundle %d has no components", bundleID))
	}

	for _, c := range components {
		required := qty * c.ComponentQty
		if c.Stock < required {
			return nil, apperrors.InsufficientStock(fmt.Sprintf("component variant %d", c.ComponentVariantID), required, c.Stock)
		}
	}

	debits := make([]domain.ComponentDebit, 0, len(components))
	for _, c := range components {
		debit := qty * c.ComponentQty
		if err := e.catalog.AdjustStock(ctx, q, c.ComponentVariantID, -debit); err != nil {
			return nil, err
		}
		if err := e.catalog.InsertMovement(ctx, q, &domain.StockMovement{
			VariantID: c.ComponentVariantID,
			Change:    -debit,
			Type:      domain.MovementBundleConsumeComponent,
			RelatedID: relatedID,
		}); err != nil {
			return nil, err
		}
		debits = append(debits, domain.ComponentDebit{
			ComponentVariantID: c.ComponentVariantID,
			QtyDebited:         debit,
		})
	}
	return debits, nil
}

// Restore re-credits exactly the amounts a Consume snapshot recorded. The
// amounts are never re-derived from current stock.
func (e *BundleEngine) Restore(ctx context.Context, q database.DBTX, debits []domain.ComponentDebit, relatedID string) error {
	for _, d := range debits {
		if err := e.catalog.AdjustStock(ctx, q, d.ComponentVariantID, d.QtyDebited); err != nil {
			return err
		}
		if err := e.catalog.InsertMovement(ctx, q, &domain.StockMovement{
			VariantID: d.ComponentVariantID,
			Change:    d.QtyDebited,
			Type:      domain.MovementBundleRestoreComponent,
			RelatedID: relatedID,
		}); err != nil {
			return err
		}
	}
	return nil
}

// RefreshDerivedStock recomputes and persists a VIRTUAL bundle's display
// stock from current component stock. The persisted value is denormalized
// for listings only.
func (e *BundleEngine) RefreshDerivedStock(ctx context.Context, q database.DBTX, bundleID int64) error {
	components, err := e.catalog.ListComponents(ctx, q, bundleID)
	if err != nil {
		return err
	}
	return e.catalog.SetStock(ctx, q, bundleID, domain.VirtualBundleStock(components))
}

// KitAssembler runs assemble/disassemble in their own transactions for the
// CMS endpoints, where no wider transaction exists.
type KitAssembler struct {
	db     database.TxStarter
	engine *BundleEngine
}

// NewKitAssembler creates a transactional wrapper around the bundle engine.
func NewKitAssembler(db database.TxStarter, engine *BundleEngine) *KitAssembler {
	return &KitAssembler{db: db, engine: engine}
}

// Assemble builds qty kits in one transaction.
func (a *KitAssembler) Assemble(ctx context.Context, bundleID int64, qty int) error {
	return database.WithinTx(ctx, a.db, func(tx pgx.Tx) error {
		return a.engine.Assemble(ctx, tx, bundleID, qty)
	})
}

// Disassemble breaks qty kits back into components in one transaction.
func (a *KitAssembler) Disassemble(ctx context.Context, bundleID int64, qty int) error {
	return database.WithinTx(ctx, a.db, func(tx pgx.Tx) error {
		return a.engine.Disassemble(ctx, tx, bundleID, qty)
	})
}

// lockKitBundle locks the bundle row and its component rows in one ascending
// id pass and returns the bundle plus the joined component view.
func (e *BundleEngine) lockKitBundle(ctx context.Context, q database.DBTX, bundleID int64, qty int) (*domain.ProductVariant, []domain.ComponentStock, error) {
	if qty <= 0 {
		return nil, nil, apperrors.InvalidInput("qty must be positive")
	}

	items, err := e.catalog.ListBundleItems(ctx, q, bundleID)
	if err != nil {
		return nil, nil, err
	}
	if len(items) == 0 {
		return nil, nil, apperrors.InvalidInput(fmt.Sprintf("bundle %d has no components", bundleID))
	}

	qtyByComponent := make(map[int64]int, len(items))
	ids := make([]int64, 0, len(items)+1)
	ids = append(ids, bundleID)
	for _, it := range items {
		qtyByComponent[it.ComponentVariantID] = it.ComponentQty
		ids = append(ids, it.ComponentVariantID)
	}

	variants, err := e.catalog.LockVariants(ctx, q, ids)
	if err != nil {
		return nil, nil, err
	}

	var (
		bundle     *domain.ProductVariant
		components []domain.ComponentStock
	)
	for i := range variants {
		v := &variants[i]
		if v.ID == bundleID {
			bundle = v
			continue
		}
		components = append(components, domain.ComponentStock{
			ComponentVariantID: v.ID,
			ComponentQty:       qtyByComponent[v.ID],
			Stock:              v.Stock,
		})
	}
	if bundle == nil {
		return nil, nil, apperrors.NotFound("bundle", fmt.Sprint(bundleID))
	}
	if !bundle.IsKitBundle() {
		return nil, nil, apperrors.InvalidInput(fmt.Sprintf("variant %d is not a KIT bundle", bundleID))
	}
	if len(components) != len(items) {
		return nil, nil, apperrors.NotFound("bundle component", fmt.Sprint(bundleID))
	}
	return bundle, components, nil
}
