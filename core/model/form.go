package model

import "encoding/json"

// DiagnosisForm is the record exchanged with the medical-diagnosis chaincode.
// Field names mirror the on-ledger JSON exactly; Signature, CreatedAt and
// UpdatedAt are managed by the chaincode and only appear on reads.
type DiagnosisForm struct {
	FormID       string          `json:"formId"`
	DoctorID     string          `json:"doctorId"`
	DoctorName   string          `json:"doctorName,omitempty"`
	PatientID    string          `json:"patientId"`
	PatientName  string          `json:"patientName,omitempty"`
	Timestamp    string          `json:"timestamp,omitempty"`
	Diagnosis    Diagnosis       `json:"diagnosis"`
	Symptoms     []string        `json:"symptoms"`
	PhysicalExam json.RawMessage `json:"physicalExam,omitempty"`
	LabResults   json.RawMessage `json:"labResults,omitempty"`
	Treatment    Treatment       `json:"treatment"`
	FollowUp     FollowUp        `json:"followUp"`
	Signature    string          `json:"signature,omitempty"`
	CreatedAt    string          `json:"createdAt,omitempty"`
	UpdatedAt    string          `json:"updatedAt,omitempty"`
}

type Diagnosis struct {
	Primary   string   `json:"primary"`
	Secondary []string `json:"secondary,omitempty"`
	ICDCodes  []string `json:"icdCodes"`
}

type Treatment struct {
	Medications     []Medication `json:"medications"`
	Recommendations []string     `json:"recommendations"`
}

type Medication struct {
	Name      string `json:"name"`
	Dosage    string `json:"dosage"`
	Frequency string `json:"frequency"`
	Duration  string `json:"duration,omitempty"`
}

type FollowUp struct {
	NextAppointment string   `json:"nextAppointment,omitempty"`
	UrgentContact   bool     `json:"urgentContact"`
	Instructions    string   `json:"instructions"`
	Referrals       []string `json:"referrals,omitempty"`
}
