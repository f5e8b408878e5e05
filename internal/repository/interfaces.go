package repository

import (
	"context"
	"encoding/json"

	"github.com/humanplus/posture-console/internal/model"
)

// All repository interfaces in one file
type (
	// PatientRepository reads and creates clinical records. Get returns
	// (nil, nil) when the record does not exist.
	PatientRepository interface {
		List(ctx context.Context) ([]*model.Patient, error)
		Get(ctx context.Context, id string) (*model.Patient, error)
		Create(ctx context.Context, form *model.NewPatientForm) (string, error)
	}

	// VisitRepository reads and creates visits. Get returns (nil, nil) when the
	// visit does not exist.
	VisitRepository interface {
		Create(ctx context.Context, patientID, operatorID string, analysisType model.AnalysisType, note *string) (string, error)
		Get(ctx context.Context, id string) (*model.Visit, error)
		ListRecentByPatient(ctx context.Context, patientID string, max int) ([]*model.Visit, error)
		ListByDate(ctx context.Context, max int) ([]*model.Visit, error)
		UpdateExercises(ctx context.Context, id string, exercises []json.RawMessage) error
	}
)
