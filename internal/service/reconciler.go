package service

import (
	"context"

	"github.com/sentinnell/analytics_api/internal/models"
)

// ExistenceChecker reports which external ids are already persisted.
type ExistenceChecker interface {
	Exists(ctx context.Context, ids []string) (map[string]struct{}, error)
}

// Reconciler flags fetched records that already exist in the store.
type Reconciler struct {
	store ExistenceChecker
}

// NewReconciler constructs a Reconciler.
func NewReconciler(store ExistenceChecker) *Reconciler {
	return &Reconciler{store: store}
}

// MarkExistence returns copies of records with ExistsInStore set. The store is
// asked once for the whole batch. Order is preserved and the input slice is
// left untouched.
func (r *Reconciler) MarkExistence(ctx context.Context, records []models.Product) ([]models.Product, error) {
	out := make([]models.Product, len(records))
	copy(out, records)
	if len(records) == 0 {
		return out, nil
	}

	ids := make([]string, 0, len(records))
	for _, p := range records {
		if p.ExternalID != "" {
			ids = append(ids, p.ExternalID)
		}
	}
	found, err := r.store.Exists(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range out {
		_, ok := found[out[i].ExternalID]
		out[i].ExistsInStore = ok && out[i].ExternalID != ""
	}
	return out, nil
}
