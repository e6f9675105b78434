package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"yunmun/api/internal/auth"
	"yunmun/api/internal/rbac"
	"yunmun/api/internal/store"
	"yunmun/api/internal/util"
	"yunmun/api/internal/workflow"
)

type CreateWorkInput struct {
	Title string `json:"title"`
	// AuthorID lets an admin register a work on an author's behalf.
	AuthorID string `json:"authorId"`
}

type CreateContractInput struct {
	EditorID     string `json:"editorId"`
	ChapterStart int    `json:"chapterStart"`
	ChapterEnd   *int   `json:"chapterEnd"`
}

func (s *Service) CreateWork(ctx context.Context, actor auth.Actor, input CreateWorkInput) (store.Work, error) {
	if err := requireActor(actor); err != nil {
		return store.Work{}, err
	}
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return store.Work{}, errBadRequest("title is required")
	}
	authorID := actor.UserID
	switch actor.Role {
	case rbac.RoleAuthor:
	case rbac.RoleAdmin:
		if id := strings.TrimSpace(input.AuthorID); id != "" {
			authorID = id
		}
	default:
		return store.Work{}, errForbidden("only authors and admins may create works", nil)
	}

	now := s.timestamp()
	work := store.Work{
		ID:        util.NewID("work"),
		Title:     title,
		AuthorID:  authorID,
		Status:    workflow.WorkDrafting,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.WithinTx(ctx, func(tx store.Tx) error {
		return tx.InsertWork(ctx, work)
	}); err != nil {
		return store.Work{}, err
	}
	return work, nil
}

func (s *Service) ListContracts(ctx context.Context, actor auth.Actor, workID string) ([]store.Contract, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if _, err := loadWork(ctx, s.store, actor, workID); err != nil {
		return nil, err
	}
	contracts, err := s.store.ListContracts(ctx, workID)
	if err != nil {
		return nil, err
	}
	if contracts == nil {
		contracts = []store.Contract{}
	}
	return contracts, nil
}

// CreateContract assigns an editor to a chapter range. An earlier active
// contract between the same editor and work is closed first.
func (s *Service) CreateContract(ctx context.Context, actor auth.Actor, workID string, input CreateContractInput) (store.Contract, error) {
	if err := requireActor(actor); err != nil {
		return store.Contract{}, err
	}
	editorID := strings.TrimSpace(input.EditorID)
	if editorID == "" {
		return store.Contract{}, errBadRequest("editorId is required")
	}
	if input.ChapterStart < 0 || (input.ChapterEnd != nil && *input.ChapterEnd < input.ChapterStart) {
		return store.Contract{}, errBadRequest("invalid chapter range")
	}

	editor, err := s.store.GetUserByID(ctx, editorID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.Contract{}, errNotFound("editor")
		}
		return store.Contract{}, err
	}
	if editor.Role != rbac.RoleEditor {
		return store.Contract{}, errBadRequest(fmt.Sprintf("user %s is not an editor", editorID))
	}

	var contract store.Contract
	err = s.store.WithinTx(ctx, func(tx store.Tx) error {
		work, err := requireEditableWork(ctx, tx, actor, workID)
		if err != nil {
			return err
		}
		now := s.timestamp()
		if err := tx.DeactivateContracts(ctx, workID, editorID, now); err != nil {
			return err
		}
		contract = store.Contract{
			ID:           util.NewID("ctr"),
			WorkID:       workID,
			AuthorID:     work.AuthorID,
			EditorID:     editorID,
			ChapterStart: input.ChapterStart,
			ChapterEnd:   input.ChapterEnd,
			Active:       true,
			CreatedAt:    now,
		}
		if err := tx.InsertContract(ctx, contract); err != nil {
			if errors.Is(err, store.ErrDuplicate) {
				return errConflict("editor already has an active contract for this work", nil)
			}
			return err
		}
		if err := tx.SetWorkEditor(ctx, workID, editorID, now); err != nil {
			return err
		}
		if work.Status == workflow.WorkCompleted {
			if err := tx.UpdateWorkStatus(ctx, workID, workflow.WorkInReview, now); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return store.Contract{}, err
	}
	return contract, nil
}

// CompleteContract closes an active contract. With the last contract closed
// and every chapter approved, the work completes in the same transaction.
func (s *Service) CompleteContract(ctx context.Context, actor auth.Actor, workID, contractID string) (store.Contract, error) {
	if err := requireActor(actor); err != nil {
		return store.Contract{}, err
	}
	var (
		contract  store.Contract
		completed bool
	)
	err := s.store.WithinTx(ctx, func(tx store.Tx) error {
		work, err := requireEditableWork(ctx, tx, actor, workID)
		if err != nil {
			return err
		}
		contract, err = tx.GetContract(ctx, contractID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return errNotFound("contract")
			}
			return err
		}
		if contract.WorkID != workID {
			return errNotFound("contract")
		}
		if !contract.Active {
			return errConflict("contract is already completed", nil)
		}

		now := s.timestamp()
		if err := tx.CompleteContract(ctx, contract.ID, now); err != nil {
			return err
		}
		contract.Active = false
		contract.CompletedAt = &now
		if err := tx.InsertActivity(ctx, store.Activity{
			ID:        util.NewID("act"),
			WorkID:    workID,
			ActorID:   actor.UserID,
			Type:      store.ActivityContractCompleted,
			Summary:   fmt.Sprintf("윤문 계약 종료 (%s화)", contract.RangeLabel()),
			Metadata:  map[string]any{"contractId": contract.ID, "editorId": contract.EditorID},
			CreatedAt: now,
		}); err != nil {
			return err
		}
		completed, err = s.completeWorkIfReady(ctx, tx, actor, work, now)
		return err
	})
	if err != nil {
		return store.Contract{}, err
	}
	if completed {
		s.goBackground(func(ctx context.Context) {
			s.publishCompletedWork(ctx, actor, workID)
		})
	}
	return contract, nil
}
