package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"medigateway/core/apierror"
	"medigateway/core/audit"
	"medigateway/core/ledger"
	"medigateway/core/model"
	"medigateway/core/txrouter"
)

// RegisterDiagnosisAPI wires the diagnosis form routes onto the mux.
func RegisterDiagnosisAPI(mux *http.ServeMux, s *Server) {
	protect := func(h http.HandlerFunc) http.Handler { return s.requireAuth(h) }

	mux.Handle("POST /api/diagnosis/forms", protect(s.handleCreateForm))
	mux.Handle("GET /api/diagnosis/forms", protect(s.handleListForms))
	mux.Handle("GET /api/diagnosis/forms/{formId}", protect(s.handleGetForm))
	// The two-segment GETs share one pattern: ServeMux cannot rank
	// "doctor/{doctorId}" against "{formId}/audit", so the split happens in
	// handleFormsSubroute. Literal prefixes win over the audit suffix.
	mux.Handle("GET /api/diagnosis/forms/{first}/{second}", protect(s.handleFormsSubroute))
	mux.Handle("POST /api/diagnosis/forms/{formId}/verify", protect(s.handleVerifyForm))
	mux.Handle("PUT /api/diagnosis/forms/{formId}", protect(s.handleUpdateForm))
	mux.Handle("PATCH /api/diagnosis/forms/{formId}", protect(s.handlePatchForm))
}

func (s *Server) handleFormsSubroute(w http.ResponseWriter, r *http.Request) {
	first, second := r.PathValue("first"), r.PathValue("second")
	switch {
	case first == "doctor":
		s.handleFormsByDoctor(w, r, second)
	case first == "patient":
		s.handleFormsByPatient(w, r, second)
	case second == "audit":
		s.handleFormAuditLog(w, r, first)
	default:
		s.writeError(w, r, routeNotFound(r))
	}
}

// invoke runs one routed request inside a scoped ledger session.
func (s *Server) invoke(req txrouter.Request) ([]byte, error) {
	var out []byte
	err := s.ledger.WithSession(func(c ledger.Contract) error {
		var derr error
		out, derr = txrouter.Dispatch(c, req)
		return derr
	})
	s.metrics.ObserveLedgerTx(string(req.Mode), err)
	return out, err
}

func (s *Server) readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes)
	return io.ReadAll(r.Body)
}

// validatedForm reads, validates and decodes the request body. Validation
// failures return before any ledger call is made.
func (s *Server) validatedForm(w http.ResponseWriter, r *http.Request) (model.DiagnosisForm, error) {
	body, err := s.readBody(w, r)
	if err != nil {
		return model.DiagnosisForm{}, err
	}
	if err := s.validator.Validate(body); err != nil {
		return model.DiagnosisForm{}, err
	}
	var form model.DiagnosisForm
	if err := json.Unmarshal(body, &form); err != nil {
		return model.DiagnosisForm{}, err
	}
	return form, nil
}

func (s *Server) recordAudit(r *http.Request, eventType, formID string, err error) {
	event := audit.Event{
		EventType: eventType,
		FormID:    formID,
		RequestID: requestIDFrom(r.Context()),
		Result:    "success",
	}
	if err != nil {
		event.Result = "failure"
		event.Detail = err.Error()
	}
	s.audit.Record(event)
}

func (s *Server) handleCreateForm(w http.ResponseWriter, r *http.Request) {
	form, err := s.validatedForm(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	req, err := txrouter.CreateForm(form)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	result, err := s.invoke(req)
	s.recordAudit(r, "FormCreated", form.FormID, err)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusCreated, map[string]interface{}{
		"success":       true,
		"message":       "Diagnosis form added successfully",
		"formId":        form.FormID,
		"transactionId": string(result),
	})
}

func (s *Server) handleGetForm(w http.ResponseWriter, r *http.Request) {
	formID := r.PathValue("formId")

	result, err := s.invoke(txrouter.ReadForm(formID))
	if err != nil {
		s.writeError(w, r, formNotFoundOr(err, formID))
		return
	}
	form, err := txrouter.DecodeForm(result)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"data":    form,
	})
}

func (s *Server) handleListForms(w http.ResponseWriter, r *http.Request) {
	result, err := s.invoke(txrouter.ListForms())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	forms, err := txrouter.DecodeForms(result)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"count":   len(forms),
		"data":    forms,
	})
}

func (s *Server) handleFormsByDoctor(w http.ResponseWriter, r *http.Request, doctorID string) {
	result, err := s.invoke(txrouter.FormsByDoctor(doctorID))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	forms, err := txrouter.DecodeForms(result)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":  true,
		"doctorId": doctorID,
		"count":    len(forms),
		"data":     forms,
	})
}

func (s *Server) handleFormsByPatient(w http.ResponseWriter, r *http.Request, patientID string) {
	result, err := s.invoke(txrouter.FormsByPatient(patientID))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	forms, err := txrouter.DecodeForms(result)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":   true,
		"patientId": patientID,
		"count":     len(forms),
		"data":      forms,
	})
}

func (s *Server) handleVerifyForm(w http.ResponseWriter, r *http.Request) {
	formID := r.PathValue("formId")

	result, err := s.invoke(txrouter.VerifySignature(formID))
	if err != nil {
		s.writeError(w, r, formNotFoundOr(err, formID))
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":        true,
		"formId":         formID,
		"signatureValid": txrouter.DecodeBool(result),
		"timestamp":      time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleUpdateForm(w http.ResponseWriter, r *http.Request) {
	formID := r.PathValue("formId")

	form, err := s.validatedForm(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	req, err := txrouter.UpdateForm(formID, form)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	_, err = s.invoke(req)
	s.recordAudit(r, "FormUpdated", formID, err)
	if err != nil {
		s.writeError(w, r, formNotFoundOr(err, formID))
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Diagnosis form updated successfully",
		"formId":  formID,
	})
}

func (s *Server) handlePatchForm(w http.ResponseWriter, r *http.Request) {
	formID := r.PathValue("formId")

	body, err := s.readBody(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var fields map[string]interface{}
	if err := json.Unmarshal(body, &fields); err != nil {
		s.writeError(w, r, err)
		return
	}
	if len(fields) == 0 {
		s.writeError(w, r, apierror.NewAPIError(http.StatusBadRequest, "No update fields provided"))
		return
	}

	req, err := txrouter.PatchForm(formID, fields)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	_, err = s.invoke(req)
	s.recordAudit(r, "FormPatched", formID, err)
	if err != nil {
		s.writeError(w, r, formNotFoundOr(err, formID))
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Diagnosis form updated successfully",
		"formId":  formID,
	})
}

func (s *Server) handleFormAuditLog(w http.ResponseWriter, r *http.Request, formID string) {
	result, err := s.invoke(txrouter.FormAuditLog(formID))
	if err != nil {
		s.writeError(w, r, formNotFoundOr(err, formID))
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"formId":  formID,
		"data":    json.RawMessage(result),
	})
}

// formNotFoundOr turns a ledger not-found failure into a 404 naming the
// form, matching the public contract. Only ledger-tagged errors qualify: a
// missing wallet identity also says "does not exist" but is a deployment
// fault, not a missing record, and must keep its 503 classification.
func formNotFoundOr(err error, formID string) error {
	var tagged *apierror.TaggedError
	if errors.As(err, &tagged) && tagged.Source == apierror.SourceLedger &&
		strings.Contains(err.Error(), "does not exist") {
		return apierror.NewAPIError(http.StatusNotFound,
			fmt.Sprintf("Diagnosis form with ID %s does not exist", formID))
	}
	return err
}
