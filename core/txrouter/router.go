// Package txrouter maps gateway operations onto named chaincode functions
// and their canonical argument encodings. The same table serves the HTTP
// handlers and the benchmark workload.
package txrouter

import (
	"encoding/json"
	"fmt"
	"strings"

	"medigateway/core/apierror"
	"medigateway/core/model"
)

// Mode distinguishes state-changing submits from read-only evaluates.
type Mode string

const (
	ModeSubmit   Mode = "submit"
	ModeEvaluate Mode = "evaluate"
)

// Invoker is the contract handle Dispatch drives. It matches ledger.Contract
// structurally so session contracts and fakes both satisfy it.
type Invoker interface {
	SubmitTransaction(name string, args ...string) ([]byte, error)
	EvaluateTransaction(name string, args ...string) ([]byte, error)
}

// Request is one routed operation: immutable once built.
type Request struct {
	Function string
	Args     []string
	Mode     Mode
}

func CreateForm(form model.DiagnosisForm) (Request, error) {
	payload, err := json.Marshal(form)
	if err != nil {
		return Request{}, fmt.Errorf("encode form: %w", err)
	}
	return Request{Function: "AddDiagnosisForm", Args: []string{string(payload)}, Mode: ModeSubmit}, nil
}

func ReadForm(formID string) Request {
	return Request{Function: "GetDiagnosisForm", Args: []string{formID}, Mode: ModeEvaluate}
}

func ListForms() Request {
	return Request{Function: "ListDiagnosisForms", Args: []string{}, Mode: ModeEvaluate}
}

func FormsByDoctor(doctorID string) Request {
	return Request{Function: "GetFormsByDoctor", Args: []string{doctorID}, Mode: ModeEvaluate}
}

func FormsByPatient(patientID string) Request {
	return Request{Function: "GetFormsByPatient", Args: []string{patientID}, Mode: ModeEvaluate}
}

func VerifySignature(formID string) Request {
	return Request{Function: "VerifyFormSignature", Args: []string{formID}, Mode: ModeEvaluate}
}

// UpdateForm is a full-record replace; the caller's validated record is
// forwarded as-is with no read-before-write.
func UpdateForm(formID string, form model.DiagnosisForm) (Request, error) {
	payload, err := json.Marshal(form)
	if err != nil {
		return Request{}, fmt.Errorf("encode form: %w", err)
	}
	return Request{Function: "UpdateDiagnosisForm", Args: []string{formID, string(payload)}, Mode: ModeSubmit}, nil
}

// PatchForm updates only the provided top-level fields.
func PatchForm(formID string, fields map[string]interface{}) (Request, error) {
	payload, err := json.Marshal(fields)
	if err != nil {
		return Request{}, fmt.Errorf("encode update fields: %w", err)
	}
	return Request{Function: "UpdateDiagnosisFormSelective", Args: []string{formID, string(payload)}, Mode: ModeSubmit}, nil
}

func FormAuditLog(formID string) Request {
	return Request{Function: "GetFormAuditLog", Args: []string{formID}, Mode: ModeEvaluate}
}

// Dispatch sends a routed request over the contract handle. Submits block
// until the network reports commit; evaluates return one peer's current
// state. Failures are tagged as ledger-originated for classification.
func Dispatch(inv Invoker, req Request) ([]byte, error) {
	switch req.Mode {
	case ModeSubmit:
		out, err := inv.SubmitTransaction(req.Function, req.Args...)
		return out, apierror.Tag(apierror.SourceLedger, err)
	case ModeEvaluate:
		out, err := inv.EvaluateTransaction(req.Function, req.Args...)
		return out, apierror.Tag(apierror.SourceLedger, err)
	default:
		return nil, fmt.Errorf("unknown dispatch mode %q", req.Mode)
	}
}

// DecodeForm parses an evaluate result holding a single form.
func DecodeForm(raw []byte) (model.DiagnosisForm, error) {
	var form model.DiagnosisForm
	if err := json.Unmarshal(raw, &form); err != nil {
		return model.DiagnosisForm{}, fmt.Errorf("decode form: %w", err)
	}
	return form, nil
}

// DecodeForms parses an evaluate result holding a list of forms. The ledger
// ordering is preserved; a null result decodes to an empty slice.
func DecodeForms(raw []byte) ([]model.DiagnosisForm, error) {
	var forms []model.DiagnosisForm
	if err := json.Unmarshal(raw, &forms); err != nil {
		return nil, fmt.Errorf("decode form list: %w", err)
	}
	if forms == nil {
		forms = []model.DiagnosisForm{}
	}
	return forms, nil
}

// DecodeBool parses the "true"/"false" string the verify function returns.
func DecodeBool(raw []byte) bool {
	return strings.TrimSpace(string(raw)) == "true"
}
