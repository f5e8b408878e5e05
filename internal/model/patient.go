package model

import (
	"time"
)

// Patient is the flat, UI-facing clinical record.
type Patient struct {
	ID              string    `json:"id"`
	FirstName       string    `json:"nome"`
	LastName        string    `json:"cognome"`
	Email           string    `json:"email"`
	HeightCm        int       `json:"altezza"`
	WeightKg        int       `json:"peso"`
	Sex             string    `json:"sesso"`
	Diagnosis       *string   `json:"patologia,omitempty"`
	TherapyGoal     *string   `json:"obiettivo,omitempty"`
	PrivacyAccepted bool      `json:"privacy_accepted"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// NewPatientForm is the new-patient form as submitted by the UI. Height and
// weight arrive as free text.
type NewPatientForm struct {
	FirstName       string `json:"nome" binding:"required"`
	LastName        string `json:"cognome" binding:"required"`
	Email           string `json:"email" binding:"required,email"`
	HeightCm        string `json:"altezza"`
	WeightKg        string `json:"peso"`
	Sex             string `json:"sesso" binding:"max=8"`
	Diagnosis       string `json:"patologia"`
	TherapyGoal     string `json:"obiettivo"`
	PrivacyAccepted bool   `json:"privacy_accepted" binding:"consent"`
}
