package core

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"garage-backend-go/internal/form"
	"garage-backend-go/internal/models"
	"garage-backend-go/internal/state"
)

// arrivalDateLayout is how the arrival date is written into notes.
const arrivalDateLayout = "1/2/2006"

// MoveOptions override the target defaults of a move.
type MoveOptions struct {
	PurchasePrice *float64
	CurrentValue  *float64
}

// MoveResult describes a finished move.
type MoveResult struct {
	From     models.Category `json:"from"`
	To       models.Category `json:"to"`
	SourceID string          `json:"sourceId"`
	TargetID string          `json:"targetId"`
}

// MovePrompt is the confirmation question for moving between categories.
func MovePrompt(from, to models.Category) string {
	switch {
	case from == models.CategoryWanted && to == models.CategoryOwned:
		return "Congratulations! Move this item to your main Garage?"
	case from == models.CategoryPreorder && to == models.CategoryOwned:
		return "Has this item arrived? Move to Main Garage?"
	}
	return fmt.Sprintf("Move this item to %s?", to)
}

// moveTarget builds the record written into to from a mirrored record.
func moveTarget(item models.Item, from, to models.Category, opts MoveOptions, now time.Time) models.Item {
	target := item
	target.ID = ""
	target.Category = to
	target.AddedAt = now.UTC()

	override := func(v *float64, fallback float64) float64 {
		if v != nil {
			return models.Amount(*v)
		}
		return fallback
	}

	switch to {
	case models.CategoryOwned:
		switch from {
		case models.CategoryPreorder:
			target.PurchasePrice = override(opts.PurchasePrice, item.ExpectedPrice)
			target.CurrentValue = override(opts.CurrentValue, item.ExpectedPrice)
			target.Condition = models.ConditionMintInBox
			target.Notes = fmt.Sprintf("Pre-ordered from %s. Arrived: %s", item.Source, now.Format(arrivalDateLayout))
		default:
			target.PurchasePrice = override(opts.PurchasePrice, 0)
			target.CurrentValue = override(opts.CurrentValue, 0)
		}
		if target.Packaging == "" {
			target.Packaging = models.PackagingBlister
		}
	case models.CategoryPreorder:
		defaults := form.NewPreorderForm(now)
		target.ExpectedPrice = override(opts.PurchasePrice, 0)
		target.PaidAmount = 0
		if target.ETAMonth == "" {
			target.ETAMonth = defaults.ETAMonth
		}
		if target.ETAYear == "" {
			target.ETAYear = defaults.ETAYear
		}
	}
	if target.Condition == "" {
		target.Condition = models.ConditionMintInBox
	}
	return target
}

// Move copies a mirrored record into to and then deletes it from from. The
// two writes are journaled; a failed delete leaves the record in both
// categories and returns a *MoveIncompleteError. Nothing is retried here;
// see Reconcile.
func (c *SyncController) Move(ctx context.Context, from models.Category, id string, to models.Category, opts MoveOptions) (*MoveResult, error) {
	if !from.Valid() || !to.Valid() {
		return nil, ErrUnknownCategory
	}
	if from == to {
		return nil, ErrSameCategory
	}
	repo, uid, _, err := c.active()
	if err != nil {
		return nil, err
	}
	item, ok := c.Item(from, id)
	if !ok {
		return nil, fmt.Errorf("%w: '%s' in %s", ErrItemNotFound, id, from)
	}

	log := c.logger.With(zap.String("from", from.String()), zap.String("to", to.String()), zap.String("id", id))
	target := moveTarget(item, from, to, opts, c.now())

	var marker *state.Move
	if c.journal != nil {
		marker, err = c.journal.Begin(ctx, uid, from, to, id)
		if err != nil {
			log.Warn("Could not journal move", zap.Error(err))
			marker = nil
		}
	}

	newID, err := repo.Add(ctx, uid, to, target)
	if err != nil {
		log.Error("Move failed creating target", zap.Error(err))
		if marker != nil {
			if jerr := c.journal.Abort(ctx, marker.ID); jerr != nil {
				log.Warn("Could not clear move marker", zap.Error(jerr))
			}
		}
		return nil, fmt.Errorf("%w: creating in %s: %w", ErrMoveFailed, to, err)
	}
	if marker != nil {
		if jerr := c.journal.MarkCreated(ctx, marker.ID, newID); jerr != nil {
			log.Warn("Could not record move target", zap.Error(jerr))
		}
	}

	result := &MoveResult{From: from, To: to, SourceID: id, TargetID: newID}
	if err := repo.Delete(ctx, uid, from, id); err != nil {
		log.Error("Move failed removing source; item is in both categories", zap.String("targetId", newID), zap.Error(err))
		incomplete := &MoveIncompleteError{From: from, To: to, SourceID: id, TargetID: newID, Err: err}
		if marker != nil {
			incomplete.MarkerID = marker.ID
			if jerr := c.journal.MarkFailed(ctx, marker.ID, err); jerr != nil {
				log.Warn("Could not record move failure", zap.Error(jerr))
			}
		}
		return result, incomplete
	}
	if marker != nil {
		if jerr := c.journal.Complete(ctx, marker.ID); jerr != nil {
			log.Warn("Could not clear move marker", zap.Error(jerr))
		}
	}
	log.Info("Item moved", zap.String("targetId", newID))
	return result, nil
}

// PendingMoves lists the journaled moves of the current user that did not
// finish.
func (c *SyncController) PendingMoves(ctx context.Context) ([]state.Move, error) {
	if c.journal == nil {
		return nil, ErrNoJournal
	}
	_, uid, _, err := c.active()
	if err != nil {
		return nil, err
	}
	return c.journal.List(ctx, uid)
}

// ReconcileReport summarises a Reconcile pass.
type ReconcileReport struct {
	Completed []string          `json:"completed"`
	Abandoned []string          `json:"abandoned"`
	Failed    map[string]string `json:"failed,omitempty"`
}

// Reconcile finishes interrupted moves of the current user. A marker whose
// target was recorded gets its source deleted; a marker without a recorded
// target is abandoned, since there is nothing known to undo. It only runs
// when called.
func (c *SyncController) Reconcile(ctx context.Context) (*ReconcileReport, error) {
	if c.journal == nil {
		return nil, ErrNoJournal
	}
	repo, uid, _, err := c.active()
	if err != nil {
		return nil, err
	}
	moves, err := c.journal.List(ctx, uid)
	if err != nil {
		return nil, fmt.Errorf("listing pending moves: %w", err)
	}

	report := &ReconcileReport{Completed: []string{}, Abandoned: []string{}}
	fail := func(m state.Move, err error) {
		if report.Failed == nil {
			report.Failed = make(map[string]string)
		}
		report.Failed[m.ID] = err.Error()
	}

	for _, m := range moves {
		log := c.logger.With(zap.String("marker", m.ID), zap.String("from", m.From.String()), zap.String("sourceId", m.SourceID))
		switch m.Status {
		case state.MoveCreated:
			if err := repo.Delete(ctx, uid, m.From, m.SourceID); err != nil {
				log.Warn("Reconcile could not remove source", zap.Error(err))
				if jerr := c.journal.MarkFailed(ctx, m.ID, err); jerr != nil {
					log.Warn("Could not record move failure", zap.Error(jerr))
				}
				fail(m, err)
				continue
			}
			if err := c.journal.Complete(ctx, m.ID); err != nil {
				fail(m, err)
				continue
			}
			report.Completed = append(report.Completed, m.ID)
		default:
			if err := c.journal.Abort(ctx, m.ID); err != nil {
				fail(m, err)
				continue
			}
			log.Info("Abandoned move without a recorded target")
			report.Abandoned = append(report.Abandoned, m.ID)
		}
	}
	return report, nil
}
