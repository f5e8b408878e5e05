package visit

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/humanplus/posture-console/internal/docstore"
	"github.com/humanplus/posture-console/internal/model"
	"github.com/humanplus/posture-console/internal/repository"
	apperrors "github.com/humanplus/posture-console/pkg/errors"
	"github.com/humanplus/posture-console/pkg/logger"
)

type VisitService interface {
	CreateVisit(ctx context.Context, req *model.CreateVisitRequest) (*model.Visit, error)
	GetVisit(ctx context.Context, id string) (*model.Visit, error)
	ListRecentByPatient(ctx context.Context, patientID string, max int) ([]*model.Visit, error)
	ListByDate(ctx context.Context, max int) ([]*model.Visit, error)
	UpdateExercises(ctx context.Context, id string, exercises []json.RawMessage) (*model.Visit, error)
}

type Service struct {
	repo repository.VisitRepository
	log  *logger.Logger
}

func NewService(repo repository.VisitRepository, log *logger.Logger) *Service {
	if log == nil {
		log = logger.Nop()
	}
	return &Service{repo: repo, log: log.With("visit-service")}
}

// CreateVisit opens an in-progress visit. Patient and operator references
// must be non-empty; their existence is not checked.
func (s *Service) CreateVisit(ctx context.Context, req *model.CreateVisitRequest) (*model.Visit, error) {
	if strings.TrimSpace(req.PatientID) == "" {
		return nil, apperrors.BadRequest("patient id is required", nil)
	}
	if strings.TrimSpace(req.OperatorID) == "" {
		return nil, apperrors.BadRequest("operator id is required", nil)
	}
	if !req.AnalysisType.Valid() {
		return nil, apperrors.BadRequest("invalid analysis type", nil)
	}

	id, err := s.repo.Create(ctx, req.PatientID, req.OperatorID, req.AnalysisType, req.Note)
	if err != nil {
		s.log.Error(err, "failed to create visit", "patient_id", req.PatientID)
		return nil, apperrors.Internal(err)
	}
	s.log.Info("visit created", "visit_id", id, "patient_id", req.PatientID, "analysis_type", string(req.AnalysisType))
	return s.GetVisit(ctx, id)
}

func (s *Service) GetVisit(ctx context.Context, id string) (*model.Visit, error) {
	if strings.TrimSpace(id) == "" {
		return nil, apperrors.BadRequest("visit id is required", nil)
	}
	v, err := s.repo.Get(ctx, id)
	if err != nil {
		s.log.Error(err, "failed to get visit", "visit_id", id)
		return nil, apperrors.Internal(err)
	}
	if v == nil {
		return nil, apperrors.NotFound("visit", nil)
	}
	return v, nil
}

// ListRecentByPatient returns the patient's newest visits first. max <= 0
// uses the repository default.
func (s *Service) ListRecentByPatient(ctx context.Context, patientID string, max int) ([]*model.Visit, error) {
	if strings.TrimSpace(patientID) == "" {
		return nil, apperrors.BadRequest("patient id is required", nil)
	}
	visits, err := s.repo.ListRecentByPatient(ctx, patientID, max)
	if err != nil {
		s.log.Error(err, "failed to list patient visits", "patient_id", patientID)
		return nil, apperrors.Internal(err)
	}
	return visits, nil
}

func (s *Service) ListByDate(ctx context.Context, max int) ([]*model.Visit, error) {
	visits, err := s.repo.ListByDate(ctx, max)
	if err != nil {
		s.log.Error(err, "failed to list visits")
		return nil, apperrors.Internal(err)
	}
	return visits, nil
}

func (s *Service) UpdateExercises(ctx context.Context, id string, exercises []json.RawMessage) (*model.Visit, error) {
	if err := s.repo.UpdateExercises(ctx, id, exercises); err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return nil, apperrors.NotFound("visit", err)
		}
		s.log.Error(err, "failed to update exercises", "visit_id", id)
		return nil, apperrors.Internal(err)
	}
	return s.GetVisit(ctx, id)
}
