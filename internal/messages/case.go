// Package messages turns a claim case record into per-stage message queues
// and reveals them while their stage is active.
package messages

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// CaseLog is one processing note recorded against a named stage.
type CaseLog struct {
	StageName string `json:"stageName"`
	Message   string `json:"message"`
}

// CaseRecord is the subset of a claim's status file the simulator reads.
type CaseRecord struct {
	ClaimID string                 `json:"claimId"`
	Status  string                 `json:"status"`
	Logs    []CaseLog              `json:"logs"`
	Facts   map[string]interface{} `json:"facts,omitempty"`
}

// stageIDs maps the stage names used in case records to canonical stage ids.
var stageIDs = map[string]string{
	"FNOL Ingestion":                   "fnolIngestion",
	"Metadata Extraction":              "metadataExtraction",
	"Document Classification":          "documentClassification",
	"Address Normalization":            "addressNormalization",
	"Deduplication Check":              "deduplicationCheck",
	"Policy Retrieval":                 "policyRetrieval",
	"Coverage Matching":                "coverageMatching",
	"Premium Check":                    "premiumCheck",
	"Coverage Integrity Score":         "coverageIntegrityScore",
	"Severity Scoring":                 "severityScoring",
	"Fraud/Anomaly Check":              "fraudAnomalyCheck",
	"Inspection Decisioning":           "inspectionDecisioning",
	"Evidence Collection":              "evidenceCollection",
	"Revalidation":                     "revalidation",
	"Property Damage Estimation":       "propertyDamageEstimation",
	"Reserve Estimation":               "reserveEstimation",
	"Managerial Escalation & Approval": "managerialEscalation",
	"Coverage Determination":           "coverageDetermination",
	"Payment Preparation":              "paymentPreparation",
	"Final Outcome":                    "finalOutcome",
}

// StageID resolves a case stage name. Matching is exact.
func StageID(stageName string) (string, bool) {
	id, ok := stageIDs[stageName]
	return id, ok
}

// ParseCase decodes a case status document.
func ParseCase(data []byte) (*CaseRecord, error) {
	var rec CaseRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("parse case: %w", err)
	}
	return &rec, nil
}

// LoadCaseFile reads a case status document from disk.
func LoadCaseFile(path string) (*CaseRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read case file: %w", err)
	}
	return ParseCase(data)
}

// Load builds the per-stage message queues for a case. Log entries whose
// stage name is not recognised are dropped.
func Load(rec *CaseRecord) map[string][]string {
	out := make(map[string][]string)
	if rec == nil {
		return out
	}
	for _, l := range rec.Logs {
		id, ok := StageID(l.StageName)
		if !ok || l.Message == "" {
			continue
		}
		out[id] = append(out[id], l.Message)
	}
	return out
}

// Outcome classifies the case status as accepted, rejected or pending.
func (r *CaseRecord) Outcome() string {
	switch {
	case strings.Contains(r.Status, "Accepted"):
		return "accepted"
	case strings.Contains(r.Status, "Rejected"):
		return "rejected"
	default:
		return "pending"
	}
}

// Facts derives the values branch conditions are evaluated against.
// Explicit facts in the record take precedence over derived ones.
func (r *CaseRecord) Facts() map[string]interface{} {
	queues := Load(r)

	status := "IGO"
	for _, m := range queues["revalidation"] {
		if strings.Contains(m, "NIGO") {
			status = "NIGO"
			break
		}
	}

	facts := map[string]interface{}{
		"claimId":            r.ClaimID,
		"caseStatus":         r.Status,
		"outcome":            r.Outcome(),
		"status":             status,
		"inspectionRequired": len(queues["evidenceCollection"]) > 0,
	}
	for k, v := range r.Facts {
		facts[k] = v
	}
	return facts
}
