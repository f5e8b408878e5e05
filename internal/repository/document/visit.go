package document

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/humanplus/posture-console/internal/docstore"
	"github.com/humanplus/posture-console/internal/model"
	"github.com/humanplus/posture-console/internal/repository"
)

const (
	VisitsCollection = "visits"

	defaultRecentVisits = 10
	defaultVisitsByDate = 50
)

type visitDocument struct {
	PatientID    string             `json:"patient_id"`
	OperatorID   string             `json:"operator_id"`
	AnalysisType model.AnalysisType `json:"tipo_analisi"`
	Status       string             `json:"status"`
	Note         string             `json:"note"`
	Exercises    []json.RawMessage  `json:"exercises"`
}

type visitRepository struct {
	store docstore.Store
	now   func() time.Time
}

func NewVisitRepository(store docstore.Store) repository.VisitRepository {
	return &visitRepository{store: store, now: time.Now}
}

func (r *visitRepository) Create(ctx context.Context, patientID, operatorID string, analysisType model.AnalysisType, note *string) (string, error) {
	doc := visitDocument{
		PatientID:    patientID,
		OperatorID:   operatorID,
		AnalysisType: analysisType,
		Status:       model.VisitStatusInProgress,
		Exercises:    []json.RawMessage{},
	}
	if note != nil {
		doc.Note = *note
	}

	fields, err := encode(doc)
	if err != nil {
		return "", err
	}

	id, err := r.store.Add(ctx, VisitsCollection, fields, fieldCreatedAt)
	if err != nil {
		return "", fmt.Errorf("failed to create visit: %w", err)
	}
	return id, nil
}

func (r *visitRepository) Get(ctx context.Context, id string) (*model.Visit, error) {
	snap, err := r.store.Get(ctx, VisitsCollection, id)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get visit: %w", err)
	}
	return r.toVisit(*snap), nil
}

func (r *visitRepository) ListRecentByPatient(ctx context.Context, patientID string, max int) ([]*model.Visit, error) {
	if max <= 0 {
		max = defaultRecentVisits
	}
	return r.query(ctx, docstore.Query{
		Where:   []docstore.Filter{{Field: "patient_id", Value: patientID}},
		OrderBy: fieldCreatedAt,
		Desc:    true,
		Limit:   max,
	})
}

func (r *visitRepository) ListByDate(ctx context.Context, max int) ([]*model.Visit, error) {
	if max <= 0 {
		max = defaultVisitsByDate
	}
	return r.query(ctx, docstore.Query{
		OrderBy: fieldCreatedAt,
		Desc:    true,
		Limit:   max,
	})
}

// UpdateExercises replaces the exercise sequence wholesale.
func (r *visitRepository) UpdateExercises(ctx context.Context, id string, exercises []json.RawMessage) error {
	if exercises == nil {
		exercises = []json.RawMessage{}
	}
	if err := r.store.Update(ctx, VisitsCollection, id, map[string]any{"exercises": exercises}); err != nil {
		return fmt.Errorf("failed to update visit exercises: %w", err)
	}
	return nil
}

func (r *visitRepository) query(ctx context.Context, q docstore.Query) ([]*model.Visit, error) {
	snaps, err := r.store.Query(ctx, VisitsCollection, q)
	if err != nil {
		return nil, fmt.Errorf("failed to query visits: %w", err)
	}
	visits := make([]*model.Visit, 0, len(snaps))
	for _, snap := range snaps {
		visits = append(visits, r.toVisit(snap))
	}
	return visits, nil
}

func (r *visitRepository) toVisit(snap docstore.Snapshot) *model.Visit {
	exercises := []json.RawMessage{}
	if list, ok := snap.Data["exercises"].([]any); ok {
		for _, e := range list {
			raw, err := json.Marshal(e)
			if err != nil {
				continue
			}
			exercises = append(exercises, raw)
		}
	}

	return &model.Visit{
		ID:           snap.ID,
		PatientID:    asString(snap.Data["patient_id"]),
		OperatorID:   asString(snap.Data["operator_id"]),
		AnalysisType: model.AnalysisType(asString(snap.Data["tipo_analisi"])),
		Status:       asString(snap.Data["status"]),
		Note:         asOptionalString(snap.Data["note"]),
		CreatedAt:    asTime(snap.Data[fieldCreatedAt], r.now),
		Exercises:    exercises,
	}
}
