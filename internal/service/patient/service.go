package patient

import (
	"context"
	"strings"

	"github.com/humanplus/posture-console/internal/model"
	"github.com/humanplus/posture-console/internal/repository"
	apperrors "github.com/humanplus/posture-console/pkg/errors"
	"github.com/humanplus/posture-console/pkg/logger"
)

type PatientService interface {
	ListPatients(ctx context.Context) ([]*model.Patient, error)
	GetPatient(ctx context.Context, id string) (*model.Patient, error)
	CreatePatient(ctx context.Context, form *model.NewPatientForm) (*model.Patient, error)
}

type Service struct {
	repo repository.PatientRepository
	log  *logger.Logger
}

func NewService(repo repository.PatientRepository, log *logger.Logger) *Service {
	if log == nil {
		log = logger.Nop()
	}
	return &Service{repo: repo, log: log.With("patient-service")}
}

func (s *Service) ListPatients(ctx context.Context) ([]*model.Patient, error) {
	patients, err := s.repo.List(ctx)
	if err != nil {
		s.log.Error(err, "failed to list patients")
		return nil, apperrors.Internal(err)
	}
	return patients, nil
}

func (s *Service) GetPatient(ctx context.Context, id string) (*model.Patient, error) {
	if strings.TrimSpace(id) == "" {
		return nil, apperrors.BadRequest("patient id is required", nil)
	}
	p, err := s.repo.Get(ctx, id)
	if err != nil {
		s.log.Error(err, "failed to get patient", "patient_id", id)
		return nil, apperrors.Internal(err)
	}
	if p == nil {
		return nil, apperrors.NotFound("patient", nil)
	}
	return p, nil
}

// CreatePatient stores the intake form and returns the record as read back.
func (s *Service) CreatePatient(ctx context.Context, form *model.NewPatientForm) (*model.Patient, error) {
	if !form.PrivacyAccepted {
		return nil, apperrors.BadRequest("privacy consent is required", nil)
	}
	id, err := s.repo.Create(ctx, form)
	if err != nil {
		s.log.Error(err, "failed to create patient")
		return nil, apperrors.Internal(err)
	}
	s.log.Info("patient created", "patient_id", id)

	p, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	if p == nil {
		return nil, apperrors.NotFound("patient", nil)
	}
	return p, nil
}
