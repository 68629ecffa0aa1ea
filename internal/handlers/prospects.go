package handlers

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"verdant/internal/models"
	"verdant/internal/store"
)

// likeEscaper escapes ILIKE wildcards in user input.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// prospectContact is what a self-service tool knows about a homeowner.
type prospectContact struct {
	Address string
	Email   string
	Phone   string
	Source  string
}

// findOrCreateProspect returns the prospect whose street address contains
// the given address, creating an engaged prospect when there is none.
func (a *API) findOrCreateProspect(ctx context.Context, c prospectContact) (store.Row, error) {
	rows, err := a.store.List(ctx, "prospects", store.Query{
		Filters: []store.Filter{store.ILike("street_address", "%"+likeEscaper.Replace(c.Address)+"%")},
		OrderBy: "created_at",
		Limit:   1,
	})
	if err != nil {
		return nil, err
	}
	if len(rows) > 0 {
		return rows[0], nil
	}

	row := store.Row{
		"street_address": c.Address,
		"email":          c.Email,
		"contact_status": "engaged",
		"source":         c.Source,
	}
	if c.Phone != "" {
		row["phone"] = c.Phone
	}
	prospect, err := a.store.Insert(ctx, "prospects", row)
	if err != nil {
		return nil, err
	}
	slog.Info("prospect created", "prospect_id", prospect.ID(), "source", c.Source)
	return prospect, nil
}

// prospectNeighborhood loads the neighborhood a prospect belongs to. Both
// results are nil when the prospect has none or it no longer exists.
func (a *API) prospectNeighborhood(ctx context.Context, prospect store.Row) (store.Row, *models.Neighborhood, error) {
	id := prospect.String("neighborhood_id")
	if id == "" {
		return nil, nil, nil
	}
	row, err := a.store.Get(ctx, "neighborhoods", store.ByID(id))
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, err
	}
	n, err := store.Decode[models.Neighborhood](row)
	if err != nil {
		return nil, nil, err
	}
	return row, &n, nil
}
