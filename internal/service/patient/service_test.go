package patient

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/humanplus/posture-console/internal/docstore/memory"
	"github.com/humanplus/posture-console/internal/model"
	"github.com/humanplus/posture-console/internal/repository/document"
	apperrors "github.com/humanplus/posture-console/pkg/errors"
)

func setupService() *Service {
	return NewService(document.NewPatientRepository(memory.NewStore()), nil)
}

func TestService_CreatePatient(t *testing.T) {
	svc := setupService()
	ctx := context.Background()

	p, err := svc.CreatePatient(ctx, &model.NewPatientForm{
		FirstName:       "Anna",
		LastName:        "Bianchi",
		Email:           "a@b.com",
		HeightCm:        "170",
		WeightKg:        "65",
		Sex:             "F",
		PrivacyAccepted: true,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, p.ID)
	assert.Equal(t, 170, p.HeightCm)
	assert.Nil(t, p.Diagnosis)

	all, err := svc.ListPatients(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestService_CreatePatientRequiresConsent(t *testing.T) {
	_, err := setupService().CreatePatient(context.Background(), &model.NewPatientForm{FirstName: "A", LastName: "B", Email: "a@b.com"})
	appErr, ok := apperrors.As(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrBadRequest, appErr.Code)
}

func TestService_GetPatientNotFound(t *testing.T) {
	_, err := setupService().GetPatient(context.Background(), "missing")
	appErr, ok := apperrors.As(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrNotFound, appErr.Code)
}
