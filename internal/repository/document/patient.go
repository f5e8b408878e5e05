package document

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/humanplus/posture-console/internal/docstore"
	"github.com/humanplus/posture-console/internal/model"
	"github.com/humanplus/posture-console/internal/repository"
)

const PatientsCollection = "patients"

type patientDocument struct {
	PersonalInfo   personalInfo   `json:"personal_info"`
	ClinicalInfo   clinicalInfo   `json:"clinical_info"`
	PrivacyConsent privacyConsent `json:"privacy_consent"`
}

type personalInfo struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	BirthDate string `json:"birth_date"`
	Gender    string `json:"gender"`
}

type clinicalInfo struct {
	HeightCm    int    `json:"height_cm"`
	WeightKg    int    `json:"weight_kg"`
	Diagnosis   string `json:"diagnosis"`
	TherapyGoal string `json:"therapy_goal"`
}

type privacyConsent struct {
	AcceptedTerms bool `json:"accepted_terms"`
}

type patientRepository struct {
	store docstore.Store
	now   func() time.Time
}

func NewPatientRepository(store docstore.Store) repository.PatientRepository {
	return &patientRepository{store: store, now: time.Now}
}

func (r *patientRepository) List(ctx context.Context) ([]*model.Patient, error) {
	snaps, err := r.store.List(ctx, PatientsCollection)
	if err != nil {
		return nil, fmt.Errorf("failed to list patients: %w", err)
	}
	patients := make([]*model.Patient, 0, len(snaps))
	for _, snap := range snaps {
		patients = append(patients, r.toPatient(snap))
	}
	return patients, nil
}

func (r *patientRepository) Get(ctx context.Context, id string) (*model.Patient, error) {
	snap, err := r.store.Get(ctx, PatientsCollection, id)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get patient: %w", err)
	}
	return r.toPatient(*snap), nil
}

// Create writes the form as a nested document. Required-field validation is
// the caller's job.
func (r *patientRepository) Create(ctx context.Context, form *model.NewPatientForm) (string, error) {
	doc := patientDocument{
		PersonalInfo: personalInfo{
			FirstName: form.FirstName,
			LastName:  form.LastName,
			Email:     form.Email,
			Gender:    form.Sex,
		},
		ClinicalInfo: clinicalInfo{
			HeightCm:    parseLeadingInt(form.HeightCm),
			WeightKg:    parseLeadingInt(form.WeightKg),
			Diagnosis:   form.Diagnosis,
			TherapyGoal: form.TherapyGoal,
		},
		PrivacyConsent: privacyConsent{
			AcceptedTerms: form.PrivacyAccepted,
		},
	}

	fields, err := encode(doc)
	if err != nil {
		return "", err
	}

	id, err := r.store.Add(ctx, PatientsCollection, fields, fieldCreatedAt, fieldUpdatedAt)
	if err != nil {
		return "", fmt.Errorf("failed to create patient: %w", err)
	}
	return id, nil
}

func (r *patientRepository) toPatient(snap docstore.Snapshot) *model.Patient {
	p := asMap(snap.Data["personal_info"])
	c := asMap(snap.Data["clinical_info"])
	pr := asMap(snap.Data["privacy_consent"])

	return &model.Patient{
		ID:              snap.ID,
		FirstName:       asString(p["first_name"]),
		LastName:        asString(p["last_name"]),
		Email:           asString(p["email"]),
		HeightCm:        asInt(c["height_cm"]),
		WeightKg:        asInt(c["weight_kg"]),
		Sex:             asString(p["gender"]),
		Diagnosis:       asOptionalString(c["diagnosis"]),
		TherapyGoal:     asOptionalString(c["therapy_goal"]),
		PrivacyAccepted: asBool(pr["accepted_terms"]),
		CreatedAt:       asTime(snap.Data[fieldCreatedAt], r.now),
		UpdatedAt:       asTime(snap.Data[fieldUpdatedAt], r.now),
	}
}
