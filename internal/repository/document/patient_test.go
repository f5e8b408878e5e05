package document

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/humanplus/posture-console/internal/docstore/memory"
	"github.com/humanplus/posture-console/internal/model"
)

func TestPatientRepository_CreateThenGet_RoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := NewPatientRepository(memory.NewStore())
	start := time.Now()

	id, err := repo.Create(ctx, &model.NewPatientForm{
		FirstName:       "Anna",
		LastName:        "Bianchi",
		Email:           "a@b.com",
		HeightCm:        "170",
		WeightKg:        "65",
		Sex:             "F",
		Diagnosis:       "",
		TherapyGoal:     "",
		PrivacyAccepted: true,
	})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	p, err := repo.Get(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, p)

	assert.Equal(t, id, p.ID)
	assert.Equal(t, "Anna", p.FirstName)
	assert.Equal(t, "Bianchi", p.LastName)
	assert.Equal(t, "a@b.com", p.Email)
	assert.Equal(t, 170, p.HeightCm)
	assert.Equal(t, 65, p.WeightKg)
	assert.Equal(t, "F", p.Sex)
	assert.Nil(t, p.Diagnosis)
	assert.Nil(t, p.TherapyGoal)
	assert.True(t, p.PrivacyAccepted)
	assert.False(t, p.CreatedAt.Before(start.Truncate(time.Microsecond)))
	assert.False(t, p.UpdatedAt.Before(start.Truncate(time.Microsecond)))
}

func TestPatientRepository_Create_NumericParsing(t *testing.T) {
	ctx := context.Background()
	repo := NewPatientRepository(memory.NewStore())

	id, err := repo.Create(ctx, &model.NewPatientForm{
		FirstName: "Luca",
		LastName:  "Rossi",
		Email:     "l@r.it",
		HeightCm:  "182.7",
		WeightKg:  "abc",
		Diagnosis: "scoliosi",
	})
	require.NoError(t, err)

	p, err := repo.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 182, p.HeightCm)
	assert.Equal(t, 0, p.WeightKg)
	require.NotNil(t, p.Diagnosis)
	assert.Equal(t, "scoliosi", *p.Diagnosis)
	assert.False(t, p.PrivacyAccepted)
}

func TestPatientRepository_Get_NotFound(t *testing.T) {
	repo := NewPatientRepository(memory.NewStore())

	p, err := repo.Get(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestPatientRepository_LenientRead(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	fixed := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	repo := NewPatientRepository(store).(*patientRepository)
	repo.now = func() time.Time { return fixed }

	// No timestamps, no consent block, string height, missing weight.
	id, err := store.Add(ctx, PatientsCollection, map[string]any{
		"personal_info": map[string]any{"first_name": "Mara"},
		"clinical_info": map[string]any{"height_cm": "tall", "diagnosis": ""},
	})
	require.NoError(t, err)

	p, err := repo.Get(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, p)

	assert.Equal(t, "Mara", p.FirstName)
	assert.Equal(t, "", p.LastName)
	assert.Equal(t, 0, p.HeightCm)
	assert.Equal(t, 0, p.WeightKg)
	assert.Nil(t, p.Diagnosis)
	assert.False(t, p.PrivacyAccepted)
	assert.Equal(t, fixed, p.CreatedAt)
	assert.Equal(t, fixed, p.UpdatedAt)
}

func TestPatientRepository_List(t *testing.T) {
	ctx := context.Background()
	repo := NewPatientRepository(memory.NewStore())

	for _, name := range []string{"A", "B", "C"} {
		_, err := repo.Create(ctx, &model.NewPatientForm{FirstName: name, LastName: "X", Email: name + "@x.it", PrivacyAccepted: true})
		require.NoError(t, err)
	}

	patients, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Len(t, patients, 3)

	names := map[string]bool{}
	for _, p := range patients {
		names[p.FirstName] = true
	}
	assert.Equal(t, map[string]bool{"A": true, "B": true, "C": true}, names)
}

func TestParseLeadingInt(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"170", 170},
		{"  65", 65},
		{"170.9", 170},
		{"42kg", 42},
		{"+12", 12},
		{"", 0},
		{"abc", 0},
		{"-5", 0},
		{"0", 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, parseLeadingInt(tt.in), "input %q", tt.in)
	}
}
