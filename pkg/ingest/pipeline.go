// Package ingest deduplicates fetched posts and reels into the store.
//
// The pipeline is first-write-wins: a content ID that is already stored is
// returned as stored and never updated. New items are scored against the
// owner's current follower count and inserted. A failure on one item is
// recorded and the batch moves on.
package ingest

import (
	"context"
	"fmt"

	errs "github.com/Adwaitkp/primaspot/pkg/errors"
	"github.com/Adwaitkp/primaspot/pkg/logger"
	"github.com/Adwaitkp/primaspot/pkg/models"
)

// Repository is the slice of the store the pipeline writes through.
// FindByContentID reports found=false, with no error, when nothing is stored under id.
type Repository[T models.ContentItem] interface {
	FindByContentID(ctx context.Context, id string) (T, bool, error)
	Insert(ctx context.Context, item T) error
}

// Scorer fills an item's derived metrics before it is written
type Scorer[T models.ContentItem] func(item T, owner *models.Profile)

// ItemError records why one item of a batch was not saved
type ItemError struct {
	ContentID string         `json:"contentId"`
	Kind      errs.ErrorType `json:"kind"`
	Reason    string         `json:"reason"`
}

func (e ItemError) Error() string {
	return fmt.Sprintf("item %s: %s", e.ContentID, e.Reason)
}

// Outcome is the result of one Ingest call.
// len(Saved)+len(Errors) always equals the number of input items.
type Outcome[T models.ContentItem] struct {
	Saved  []T
	Errors []ItemError
	// Inserted counts the items in Saved that were new in this batch
	Inserted int
}

// Pipeline ingests one kind of content item
type Pipeline[T models.ContentItem] struct {
	repo   Repository[T]
	score  Scorer[T]
	logger logger.Logger
}

// New creates a pipeline writing through repo and scoring with score
func New[T models.ContentItem](repo Repository[T], score Scorer[T], log logger.Logger) *Pipeline[T] {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Pipeline[T]{repo: repo, score: score, logger: log}
}

// Ingest processes items in input order against owner
func (p *Pipeline[T]) Ingest(ctx context.Context, items []T, owner *models.Profile) Outcome[T] {
	out := Outcome[T]{
		Saved:  make([]T, 0, len(items)),
		Errors: []ItemError{},
	}

	for _, item := range items {
		saved, inserted, err := p.ingestOne(ctx, item, owner)
		if err != nil {
			itemErr := ItemError{
				ContentID: item.ContentID(),
				Kind:      errs.TypeOf(err),
				Reason:    errs.Message(err),
			}
			p.logger.WarnWithFields("Skipping content item", map[string]interface{}{
				"content_id": itemErr.ContentID,
				"kind":       string(itemErr.Kind),
				"reason":     itemErr.Reason,
			})
			out.Errors = append(out.Errors, itemErr)
			continue
		}

		if inserted {
			out.Inserted++
		}
		out.Saved = append(out.Saved, saved)
	}

	return out
}

func (p *Pipeline[T]) ingestOne(ctx context.Context, item T, owner *models.Profile) (T, bool, error) {
	var zero T

	if err := ctx.Err(); err != nil {
		return zero, false, errs.Wrap(err, errs.ErrorTypeInternal, "ingestion cancelled")
	}

	existing, found, err := p.repo.FindByContentID(ctx, item.ContentID())
	if err != nil {
		return zero, false, err
	}
	if found {
		return existing, false, nil
	}

	item.AttachOwner(owner.ID)
	p.score(item, owner)

	if err := p.repo.Insert(ctx, item); err != nil {
		return zero, false, err
	}
	return item, true, nil
}
