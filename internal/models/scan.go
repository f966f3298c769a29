package models

// ScanStatus is the classification outcome for a scanned URL.
type ScanStatus string

const (
	ScanStatusSafe       ScanStatus = "SAFE"
	ScanStatusSuspicious ScanStatus = "SUSPICIOUS"
	ScanStatusMalicious  ScanStatus = "MALICIOUS"
	ScanStatusError      ScanStatus = "ERROR"
)

// ScanVerdict is the result returned by the external URL classifier.
type ScanVerdict struct {
	Safe            bool       `json:"safe"`
	Score           float64    `json:"score"`
	Status          ScanStatus `json:"status"`
	Threats         []string   `json:"threats,omitempty"`
	Reasoning       string     `json:"reasoning,omitempty"`
	Recommendations []string   `json:"recommendations,omitempty"`
	ModelVersion    string     `json:"model_version,omitempty"`
}
