package postgres

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/utafrali/PromotionGo/internal/domain"
	"github.com/utafrali/PromotionGo/internal/repository"
	"github.com/utafrali/PromotionGo/pkg/database"
	apperrors "github.com/utafrali/PromotionGo/pkg/errors"
)

// CampaignRepository implements repository.CampaignRepository using PostgreSQL.
type CampaignRepository struct {
	pool database.DBTX
}

// NewCampaignRepository creates a new PostgreSQL-backed campaign repository.
func NewCampaignRepository(pool database.DBTX) *CampaignRepository {
	return &CampaignRepository{pool: pool}
}

// GetByID retrieves a campaign by id.
func (r *CampaignRepository) GetByID(ctx context.Context, id int64) (*domain.Campaign, error) {
	query := `
		SELECT id, name, kind, status, starts_at, ends_at
		FROM campaigns
		WHERE id = $1`

	var c domain.Campaign
	err := r.pool.QueryRow(ctx, query, id).Scan(&c.ID, &c.Name, &c.Kind, &c.Status, &c.StartsAt, &c.EndsAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("get campaign: %w", err)
	}
	return &c, nil
}

// GetItemForUpdate locks and returns the campaign pivot row for a variant
// inside the caller's transaction.
func (r *CampaignRepository) GetItemForUpdate(ctx context.Context, q database.DBTX, campaignID, variantID int64) (*domain.CampaignItem, error) {
	query := `
		SELECT campaign_id, product_id, variant_id, promo_price, promo_stock
		FROM campaign_items
		WHERE campaign_id = $1 AND variant_id = $2
		FOR UPDATE`

	var it domain.CampaignItem
	err := q.QueryRow(ctx, query, campaignID, variantID).Scan(&it.CampaignID, &it.ProductID, &it.VariantID, &it.PromoPrice, &it.PromoStock)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("get campaign item for update: %w", err)
	}
	return &it, nil
}

// AdjustItemPromoStock shifts a pivot row's promo-scoped stock. Callers must
// hold the row lock.
func (r *CampaignRepository) AdjustItemPromoStock(ctx context.Context, q database.DBTX, campaignID, variantID int64, delta int) error {
	ct, err := q.Exec(ctx,
		`UPDATE campaign_items
		 SET promo_stock = promo_stock + $1
		 WHERE campaign_id = $2 AND variant_id = $3`,
		delta, campaignID, variantID,
	)
	if err != nil {
		return fmt.Errorf("adjust campaign item promo stock: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("campaign item", fmt.Sprint(variantID))
	}
	return nil
}

// ListConflicts returns live-campaign memberships for the given products. A
// campaign counts as live when published and inside its window at now.
func (r *CampaignRepository) ListConflicts(ctx context.Context, productIDs []int64, now time.Time) ([]repository.CampaignConflict, error) {
	if len(productIDs) == 0 {
		return []repository.CampaignConflict{}, nil
	}

	placeholders := make([]string, len(productIDs))
	args := make([]any, 0, len(productIDs)+2)
	args = append(args, domain.CampaignPublished, now)
	for i, id := range productIDs {
		placeholders[i] = "$" + strconv.Itoa(i+3)
		args = append(args, id)
	}

	query := `
		SELECT ci.product_id, ci.variant_id, ci.campaign_id
		FROM campaign_items ci
		JOIN campaigns c ON c.id = ci.campaign_id
		WHERE c.status = $1 AND c.starts_at <= $2 AND c.ends_at >= $2
		  AND ci.product_id IN (` + strings.Join(placeholders, ", ") + `)
		ORDER BY ci.campaign_id, ci.product_id`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list campaign conflicts: %w", err)
	}
	defer rows.Close()

	var conflicts []repository.CampaignConflict
	for rows.Next() {
		var c repository.CampaignConflict
		if err := rows.Scan(&c.ProductID, &c.VariantID, &c.CampaignID); err != nil {
			return nil, fmt.Errorf("scan campaign conflict row: %w", err)
		}
		conflicts = append(conflicts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate campaign conflict rows: %w", err)
	}

	if conflicts == nil {
		conflicts = []repository.CampaignConflict{}
	}
	return conflicts, nil
}

// EvictProducts removes the given products from every live campaign pivot.
// Only the CMS transfer flow calls this, and only after the caller opted in.
func (r *CampaignRepository) EvictProducts(ctx context.Context, q database.DBTX, productIDs []int64, now time.Time) (int64, error) {
	if len(productIDs) == 0 {
		return 0, nil
	}

	placeholders := make([]string, len(productIDs))
	args := make([]any, 0, len(productIDs)+2)
	args = append(args, domain.CampaignPublished, now)
	for i, id := range productIDs {
		placeholders[i] = "$" + strconv.Itoa(i+3)
		args = append(args, id)
	}

	query := `
		DELETE FROM campaign_items ci
		USING campaigns c
		WHERE c.id = ci.campaign_id
		  AND c.status = $1 AND c.starts_at <= $2 AND c.ends_at >= $2
		  AND ci.product_id IN (` + strings.Join(placeholders, ", ") + `)`

	ct, err := q.Exec(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("evict products from campaigns: %w", err)
	}
	return ct.RowsAffected(), nil
}
