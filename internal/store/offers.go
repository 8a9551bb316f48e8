// internal/store/offers.go
package store

import (
	"context"
	"database/sql"
	"errors"

	apperrors "github.com/naalis/influfinder/internal/common/errors"
	"github.com/naalis/influfinder/internal/models"
)

// OfferStore reads the offer catalog. Offers are authored elsewhere; this
// core never writes them.
type OfferStore struct {
	db *sql.DB
}

func NewOfferStore(db *sql.DB) *OfferStore {
	return &OfferStore{db: db}
}

// Get loads one offer by id.
func (s *OfferStore) Get(ctx context.Context, id string) (*models.Offer, error) {
	var (
		offer        models.Offer
		requirements []byte
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, business_id, title, budget_min, budget_max, requirements
		FROM offers WHERE id = $1`, id,
	).Scan(&offer.ID, &offer.BusinessID, &offer.Title,
		&offer.BudgetMin, &offer.BudgetMax, &requirements)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFoundError("offer", id)
	}
	if err != nil {
		return nil, apperrors.NewInternalError("offer get", err)
	}
	if offer.Requirements, err = unmarshalJSON(requirements); err != nil {
		return nil, apperrors.NewInternalError("offer get", err)
	}
	return &offer, nil
}
