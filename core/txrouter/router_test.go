package txrouter

import (
	"encoding/json"
	"errors"
	"testing"

	"medigateway/core/apierror"
	"medigateway/core/model"
)

type recordingInvoker struct {
	method string
	name   string
	args   []string
	result []byte
	err    error
}

func (r *recordingInvoker) SubmitTransaction(name string, args ...string) ([]byte, error) {
	r.method, r.name, r.args = "submit", name, args
	return r.result, r.err
}

func (r *recordingInvoker) EvaluateTransaction(name string, args ...string) ([]byte, error) {
	r.method, r.name, r.args = "evaluate", name, args
	return r.result, r.err
}

func sampleForm() model.DiagnosisForm {
	return model.DiagnosisForm{
		FormID:    "FORM001",
		DoctorID:  "DR001",
		PatientID: "PAT001",
		Diagnosis: model.Diagnosis{Primary: "Hypertension", ICDCodes: []string{"I10"}},
		Symptoms:  []string{"Headache"},
		Treatment: model.Treatment{
			Medications:     []model.Medication{{Name: "Lisinopril", Dosage: "10mg", Frequency: "Once daily"}},
			Recommendations: []string{"Exercise"},
		},
		FollowUp: model.FollowUp{Instructions: "Return in 2 weeks"},
	}
}

func TestOperationTable(t *testing.T) {
	form := sampleForm()
	create, err := CreateForm(form)
	if err != nil {
		t.Fatalf("CreateForm: %v", err)
	}
	update, err := UpdateForm("FORM001", form)
	if err != nil {
		t.Fatalf("UpdateForm: %v", err)
	}
	patch, err := PatchForm("FORM001", map[string]interface{}{"symptoms": []string{"Fatigue"}})
	if err != nil {
		t.Fatalf("PatchForm: %v", err)
	}

	cases := []struct {
		req      Request
		function string
		mode     Mode
		argCount int
	}{
		{create, "AddDiagnosisForm", ModeSubmit, 1},
		{ReadForm("FORM001"), "GetDiagnosisForm", ModeEvaluate, 1},
		{ListForms(), "ListDiagnosisForms", ModeEvaluate, 0},
		{FormsByDoctor("DR001"), "GetFormsByDoctor", ModeEvaluate, 1},
		{FormsByPatient("PAT001"), "GetFormsByPatient", ModeEvaluate, 1},
		{VerifySignature("FORM001"), "VerifyFormSignature", ModeEvaluate, 1},
		{update, "UpdateDiagnosisForm", ModeSubmit, 2},
		{patch, "UpdateDiagnosisFormSelective", ModeSubmit, 2},
		{FormAuditLog("FORM001"), "GetFormAuditLog", ModeEvaluate, 1},
	}
	for _, tc := range cases {
		if tc.req.Function != tc.function {
			t.Errorf("function = %q, want %q", tc.req.Function, tc.function)
		}
		if tc.req.Mode != tc.mode {
			t.Errorf("%s: mode = %q, want %q", tc.function, tc.req.Mode, tc.mode)
		}
		if len(tc.req.Args) != tc.argCount {
			t.Errorf("%s: args = %d, want %d", tc.function, len(tc.req.Args), tc.argCount)
		}
	}
}

func TestCreateFormEncodesWholeRecord(t *testing.T) {
	req, err := CreateForm(sampleForm())
	if err != nil {
		t.Fatalf("CreateForm: %v", err)
	}
	var decoded model.DiagnosisForm
	if err := json.Unmarshal([]byte(req.Args[0]), &decoded); err != nil {
		t.Fatalf("argument is not a form payload: %v", err)
	}
	if decoded.FormID != "FORM001" || decoded.Diagnosis.Primary != "Hypertension" {
		t.Errorf("round-tripped form lost fields: %+v", decoded)
	}
}

func TestDispatchRoutesByMode(t *testing.T) {
	inv := &recordingInvoker{result: []byte("ok")}

	if _, err := Dispatch(inv, ReadForm("FORM001")); err != nil {
		t.Fatalf("Dispatch evaluate: %v", err)
	}
	if inv.method != "evaluate" || inv.name != "GetDiagnosisForm" || inv.args[0] != "FORM001" {
		t.Errorf("evaluate dispatch = %s %s %v", inv.method, inv.name, inv.args)
	}

	req, _ := CreateForm(sampleForm())
	if _, err := Dispatch(inv, req); err != nil {
		t.Fatalf("Dispatch submit: %v", err)
	}
	if inv.method != "submit" || inv.name != "AddDiagnosisForm" {
		t.Errorf("submit dispatch = %s %s", inv.method, inv.name)
	}
}

func TestDispatchTagsLedgerFailures(t *testing.T) {
	inv := &recordingInvoker{err: errors.New("chaincode response: form does not exist")}
	_, err := Dispatch(inv, ReadForm("FORM404"))
	var tagged *apierror.TaggedError
	if !errors.As(err, &tagged) || tagged.Source != apierror.SourceLedger {
		t.Fatalf("Dispatch error = %v, want ledger-tagged", err)
	}
	if err.Error() != "chaincode response: form does not exist" {
		t.Errorf("message = %q, must stay untouched for marker refinement", err.Error())
	}
}

func TestDispatchUnknownMode(t *testing.T) {
	inv := &recordingInvoker{}
	if _, err := Dispatch(inv, Request{Function: "X", Mode: Mode("query")}); err == nil {
		t.Fatal("Dispatch() = nil, want error for unknown mode")
	}
	if inv.method != "" {
		t.Error("no transaction must be issued for an unknown mode")
	}
}

func TestDecodeForms(t *testing.T) {
	forms, err := DecodeForms([]byte("null"))
	if err != nil {
		t.Fatalf("DecodeForms(null) = %v", err)
	}
	if forms == nil || len(forms) != 0 {
		t.Errorf("null result must decode to an empty slice, got %v", forms)
	}

	forms, err = DecodeForms([]byte(`[{"formId":"A"},{"formId":"B"}]`))
	if err != nil {
		t.Fatalf("DecodeForms: %v", err)
	}
	if len(forms) != 2 || forms[0].FormID != "A" || forms[1].FormID != "B" {
		t.Errorf("ledger ordering lost: %v", forms)
	}
}

func TestDecodeBool(t *testing.T) {
	if !DecodeBool([]byte(" true\n")) {
		t.Error(`DecodeBool(" true\n") = false`)
	}
	if DecodeBool([]byte("false")) || DecodeBool([]byte("")) {
		t.Error("only the literal true may verify")
	}
}
