package service

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/sogos/mirai-scheduler/internal/domain/apperr"
	"github.com/sogos/mirai-scheduler/internal/domain/entity"
	"github.com/sogos/mirai-scheduler/internal/domain/repository"
)

// ShotLinkEngine implements the shot link / timeline engine:
// appending generations to shots, assigning and reassigning timeline frames
// atomically under a shot-scoped advisory lock, and maintaining the
// per-generation shot_data index as part of the same transaction.
type ShotLinkEngine struct {
	tx repository.Transactor
}

// NewShotLinkEngine creates a new shot link / timeline engine.
func NewShotLinkEngine(tx repository.Transactor) *ShotLinkEngine {
	return &ShotLinkEngine{tx: tx}
}

// AddGenerationToShot implements add_generation_to_shot(shot, generation,
// with_position). A new shot-link is always created; duplicates are
// permitted. withPosition assigns max(existing non-null frames)+50,
// starting at 0 when the shot has none.
func (e *ShotLinkEngine) AddGenerationToShot(ctx context.Context, shotID, generationID uuid.UUID, withPosition bool) (*entity.ShotLink, error) {
	var created *entity.ShotLink
	err := e.tx.WithinShotTx(ctx, shotID, func(ctx context.Context, links repository.ShotLinkRepository, gens repository.GenerationRepository) error {
		existing, err := links.ListByShot(ctx, shotID)
		if err != nil {
			return fmt.Errorf("list shot links: %w", err)
		}

		link := &entity.ShotLink{ShotID: shotID, GenerationID: generationID}
		if withPosition {
			frame := nextFrame(existing, entity.FrameSpacing)
			link.TimelineFrame = &frame
		}
		if err := links.Create(ctx, link); err != nil {
			return fmt.Errorf("create shot link: %w", err)
		}
		created = link

		return syncShotData(ctx, links, gens, generationID)
	})
	if err != nil {
		return nil, fmt.Errorf("add generation to shot: %w", err)
	}
	return created, nil
}

// nextFrame computes max(existing non-null frames)+spacing, or 0 if none
// exist.
func nextFrame(existing []*entity.ShotLink, spacing int) int {
	max := -spacing
	found := false
	for _, l := range existing {
		if l.TimelineFrame == nil {
			continue
		}
		found = true
		if *l.TimelineFrame > max {
			max = *l.TimelineFrame
		}
	}
	if !found {
		return 0
	}
	return max + spacing
}

// FrameChange is one (generation, frame) assignment in an
// apply_timeline_frames batch.
type FrameChange struct {
	GenerationID uuid.UUID
	Frame        int
}

// ApplyTimelineFrames atomically applies a batch of (generation, frame)
// assignments: it validates every referenced generation is
// currently linked to the shot and that frames are non-negative and
// pairwise distinct, then applies the two-stage null-then-write update so
// the partial-unique (shot, timeline_frame) constraint never sees a
// transient collision. Returns the shot's full link listing in ascending
// frame order.
//
// A generation linked more than once into the same shot resolves to its
// first (lowest ordinal) link; the batch format carries no link id.
func (e *ShotLinkEngine) ApplyTimelineFrames(ctx context.Context, shotID uuid.UUID, changes []FrameChange) ([]*entity.ShotLink, error) {
	var result []*entity.ShotLink
	err := e.tx.WithinShotTx(ctx, shotID, func(ctx context.Context, links repository.ShotLinkRepository, gens repository.GenerationRepository) error {
		existing, err := links.ListByShot(ctx, shotID)
		if err != nil {
			return fmt.Errorf("list shot links: %w", err)
		}
		byGeneration := make(map[uuid.UUID]*entity.ShotLink, len(existing))
		for _, l := range existing {
			if _, ok := byGeneration[l.GenerationID]; !ok {
				byGeneration[l.GenerationID] = l
			}
		}

		seenFrames := make(map[int]bool, len(changes))
		linkIDs := make([]uuid.UUID, 0, len(changes))
		targets := make(map[uuid.UUID]int, len(changes))
		touchedGenerations := make(map[uuid.UUID]bool, len(changes))
		for _, c := range changes {
			if c.Frame < 0 {
				return apperr.InvalidInput("shot_link", fmt.Errorf("frame %d is negative", c.Frame))
			}
			if seenFrames[c.Frame] {
				return apperr.InvalidInput("shot_link", fmt.Errorf("frame %d assigned more than once", c.Frame))
			}
			seenFrames[c.Frame] = true

			link, ok := byGeneration[c.GenerationID]
			if !ok {
				return apperr.InvalidInput("shot_link", fmt.Errorf("generation %s is not linked to shot %s", c.GenerationID, shotID))
			}
			linkIDs = append(linkIDs, link.ID)
			targets[link.ID] = c.Frame
			touchedGenerations[c.GenerationID] = true
		}

		if err := links.ClearFrames(ctx, linkIDs); err != nil {
			return fmt.Errorf("clear frames: %w", err)
		}
		for _, id := range linkIDs {
			frame := targets[id]
			if err := links.SetFrame(ctx, id, &frame); err != nil {
				return fmt.Errorf("set frame: %w", err)
			}
		}

		for generationID := range touchedGenerations {
			if err := syncShotData(ctx, links, gens, generationID); err != nil {
				return err
			}
		}

		result, err = links.ListByShot(ctx, shotID)
		if err != nil {
			return fmt.Errorf("list shot links: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("apply timeline frames: %w", err)
	}
	return result, nil
}

// ExchangeTimelineFrames implements exchange_timeline_frames(shot, a, b):
// swaps two links' frames via a three-step park-swap (park a at NULL, which
// is unconstrained under the partial-unique index, then move b's old frame
// onto a and a's old frame onto b), honoring the same constraint
// ApplyTimelineFrames does. a and b are shot-link ids, since a generation
// may be linked into a shot more than once.
func (e *ShotLinkEngine) ExchangeTimelineFrames(ctx context.Context, shotID, a, b uuid.UUID) error {
	return e.tx.WithinShotTx(ctx, shotID, func(ctx context.Context, links repository.ShotLinkRepository, gens repository.GenerationRepository) error {
		existing, err := links.ListByShot(ctx, shotID)
		if err != nil {
			return fmt.Errorf("list shot links: %w", err)
		}
		var linkA, linkB *entity.ShotLink
		for _, l := range existing {
			switch l.ID {
			case a:
				linkA = l
			case b:
				linkB = l
			}
		}
		if linkA == nil || linkB == nil {
			return apperr.NotFound("shot_link")
		}
		frameA, frameB := linkA.TimelineFrame, linkB.TimelineFrame

		if err := links.SetFrame(ctx, linkA.ID, nil); err != nil {
			return fmt.Errorf("park link: %w", err)
		}
		if err := links.SetFrame(ctx, linkB.ID, frameA); err != nil {
			return fmt.Errorf("move b: %w", err)
		}
		if err := links.SetFrame(ctx, linkA.ID, frameB); err != nil {
			return fmt.Errorf("move a: %w", err)
		}

		if err := syncShotData(ctx, links, gens, linkA.GenerationID); err != nil {
			return err
		}
		if linkB.GenerationID != linkA.GenerationID {
			if err := syncShotData(ctx, links, gens, linkB.GenerationID); err != nil {
				return err
			}
		}
		return nil
	})
}

// InitializeTimelineFramesForShot implements
// initialize_timeline_frames_for_shot(shot, spacing): assigns ascending
// frames to every currently-unpositioned link in the shot, in listing
// order, continuing from the shot's existing maximum frame.
func (e *ShotLinkEngine) InitializeTimelineFramesForShot(ctx context.Context, shotID uuid.UUID, spacing int) error {
	if spacing <= 0 {
		spacing = entity.FrameSpacing
	}
	return e.tx.WithinShotTx(ctx, shotID, func(ctx context.Context, links repository.ShotLinkRepository, gens repository.GenerationRepository) error {
		existing, err := links.ListByShot(ctx, shotID)
		if err != nil {
			return fmt.Errorf("list shot links: %w", err)
		}

		next := nextFrame(existing, spacing)
		touched := make(map[uuid.UUID]bool)
		for _, l := range existing {
			if l.TimelineFrame != nil {
				continue
			}
			frame := next
			if err := links.SetFrame(ctx, l.ID, &frame); err != nil {
				return fmt.Errorf("set frame: %w", err)
			}
			touched[l.GenerationID] = true
			next += spacing
		}
		for generationID := range touched {
			if err := syncShotData(ctx, links, gens, generationID); err != nil {
				return err
			}
		}
		return nil
	})
}

// PositionExistingGenerationInShot implements
// position_existing_generation_in_shot(shot, generation): promotes the
// single null-frame link for (shot, generation) to the next frame
// position. Errors NotFound if no unpositioned link for that pair exists.
func (e *ShotLinkEngine) PositionExistingGenerationInShot(ctx context.Context, shotID, generationID uuid.UUID) error {
	return e.tx.WithinShotTx(ctx, shotID, func(ctx context.Context, links repository.ShotLinkRepository, gens repository.GenerationRepository) error {
		existing, err := links.ListByShot(ctx, shotID)
		if err != nil {
			return fmt.Errorf("list shot links: %w", err)
		}

		var target *entity.ShotLink
		for _, l := range existing {
			if l.GenerationID == generationID && l.TimelineFrame == nil {
				target = l
				break
			}
		}
		if target == nil {
			return apperr.NotFound("shot_link")
		}

		frame := nextFrame(existing, entity.FrameSpacing)
		if err := links.SetFrame(ctx, target.ID, &frame); err != nil {
			return fmt.Errorf("set frame: %w", err)
		}
		return syncShotData(ctx, links, gens, generationID)
	})
}

// syncShotData rebuilds a generation's denormalized shot_data map from its
// full current link set, within the caller's transaction. Absence of
// any links yields a nil (null) shot_data.
func syncShotData(ctx context.Context, links repository.ShotLinkRepository, gens repository.GenerationRepository, generationID uuid.UUID) error {
	all, err := links.ListByGeneration(ctx, generationID)
	if err != nil {
		return fmt.Errorf("list links for generation: %w", err)
	}

	var data entity.ShotFrames
	if len(all) > 0 {
		data = make(entity.ShotFrames)
		for _, l := range all {
			data[l.ShotID] = append(data[l.ShotID], l.TimelineFrame)
		}
		for shotID, frames := range data {
			sort.Slice(frames, func(i, j int) bool {
				if frames[i] == nil {
					return false
				}
				if frames[j] == nil {
					return true
				}
				return *frames[i] < *frames[j]
			})
			data[shotID] = frames
		}
	}

	if err := gens.UpdateShotData(ctx, generationID, data); err != nil {
		return fmt.Errorf("update shot_data: %w", err)
	}
	return nil
}
