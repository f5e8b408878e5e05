package model

import (
	"encoding/json"
	"time"
)

// AnalysisType selects which exercises and metrics a visit expects.
type AnalysisType string

const (
	AnalysisFull          AnalysisType = "completa"
	AnalysisPostural      AnalysisType = "posturale"
	AnalysisUpperMobility AnalysisType = "mobilita_superiori"
	AnalysisLowerMobility AnalysisType = "mobilita_inferiori"
)

// AnalysisTypes lists every accepted analysis type.
var AnalysisTypes = []AnalysisType{
	AnalysisFull,
	AnalysisPostural,
	AnalysisUpperMobility,
	AnalysisLowerMobility,
}

func (t AnalysisType) Valid() bool {
	for _, v := range AnalysisTypes {
		if t == v {
			return true
		}
	}
	return false
}

const VisitStatusInProgress = "in_progress"

// Visit is one analysis session of a patient with an operator.
type Visit struct {
	ID           string            `json:"id"`
	PatientID    string            `json:"patient_id"`
	OperatorID   string            `json:"operator_id"`
	AnalysisType AnalysisType      `json:"tipo_analisi"`
	Status       string            `json:"status"`
	Note         *string           `json:"note,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
	Exercises    []json.RawMessage `json:"exercises"`
}

type CreateVisitRequest struct {
	PatientID    string       `json:"patient_id" binding:"required"`
	OperatorID   string       `json:"operator_id"`
	AnalysisType AnalysisType `json:"tipo_analisi" binding:"required,analysis_type"`
	Note         *string      `json:"note,omitempty"`
}
