package command

import (
	"context"
	"fmt"
	"time"

	"github.com/campus-hub/study-match/internal/application/service"
	"github.com/campus-hub/study-match/internal/domain/matching"
	"github.com/campus-hub/study-match/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// UPSERT OFFER COMMAND
// Declares or updates a teach/learn interest. Keyed on (user, subject, role).
// ══════════════════════════════════════════════════════════════════════════════

// UpsertOfferCommand contains the offer data.
type UpsertOfferCommand struct {
	UserID      string
	Subject     string
	Role        matching.Role
	Proficiency matching.Proficiency
	Urgency     matching.Urgency
	TargetDate  *time.Time
	Tags        []string
}

// UpsertOfferResult contains the stored offer.
type UpsertOfferResult struct {
	Offer *matching.SubjectOffer
}

// UpsertOfferHandler handles the UpsertOfferCommand.
type UpsertOfferHandler struct {
	offers matching.OfferRepository
	clock  shared.Clock
}

// NewUpsertOfferHandler creates a new UpsertOfferHandler.
func NewUpsertOfferHandler(offers matching.OfferRepository, clock shared.Clock) *UpsertOfferHandler {
	return &UpsertOfferHandler{offers: offers, clock: orSystem(clock)}
}

// Handle executes the upsert.
func (h *UpsertOfferHandler) Handle(ctx context.Context, cmd UpsertOfferCommand) (*UpsertOfferResult, error) {
	if cmd.UserID == "" {
		return nil, fmt.Errorf("upsert_offer: %w", unauthenticated("upsert_offer"))
	}

	offer, err := matching.NewSubjectOffer(matching.NewSubjectOfferParams{
		ID:          service.NewID(),
		UserID:      cmd.UserID,
		Subject:     cmd.Subject,
		Role:        cmd.Role,
		Proficiency: cmd.Proficiency,
		Urgency:     cmd.Urgency,
		TargetDate:  cmd.TargetDate,
		Tags:        cmd.Tags,
		Now:         h.clock.Now(),
	})
	if err != nil {
		return nil, fmt.Errorf("upsert_offer: %w", err)
	}

	stored, err := h.offers.Upsert(ctx, offer)
	if err != nil {
		return nil, fmt.Errorf("upsert_offer: %w", err)
	}
	return &UpsertOfferResult{Offer: stored}, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// REMOVE OFFER COMMAND
// ══════════════════════════════════════════════════════════════════════════════

// RemoveOfferCommand removes an offer owned by the caller.
type RemoveOfferCommand struct {
	OfferID string
	UserID  string
}

// RemoveOfferHandler handles the RemoveOfferCommand.
type RemoveOfferHandler struct {
	offers matching.OfferRepository
}

// NewRemoveOfferHandler creates a new RemoveOfferHandler.
func NewRemoveOfferHandler(offers matching.OfferRepository) *RemoveOfferHandler {
	return &RemoveOfferHandler{offers: offers}
}

// Handle executes the removal.
func (h *RemoveOfferHandler) Handle(ctx context.Context, cmd RemoveOfferCommand) error {
	if cmd.UserID == "" {
		return fmt.Errorf("remove_offer: %w", unauthenticated("remove_offer"))
	}

	offer, err := h.offers.GetByID(ctx, cmd.OfferID)
	if err != nil {
		return fmt.Errorf("remove_offer: %w", err)
	}
	if offer.UserID != cmd.UserID {
		return fmt.Errorf("remove_offer: %w", shared.ErrNotOfferOwner)
	}
	if err := h.offers.Delete(ctx, offer.ID); err != nil {
		return fmt.Errorf("remove_offer: %w", err)
	}
	return nil
}
