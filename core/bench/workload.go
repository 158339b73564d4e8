// Package bench generates a randomized mixed read/write stream against the
// diagnosis contract. It drives the same txrouter table the HTTP path uses,
// which keeps the routing contract honest outside request handling.
package bench

import (
	"fmt"
	"math/rand"
	"sync"
	"time"

	"medigateway/core/idgen"
	"medigateway/core/model"
	"medigateway/core/txrouter"
)

// Config controls one benchmark round.
type Config struct {
	// WriteRatio is the probability in [0,1] of issuing a write per step.
	WriteRatio float64
	Channel    string
	ContractID string
}

// Stats counts issued operations for the round summary.
type Stats struct {
	Writes   int
	Reads    int
	Failures int
}

// Simulator executes one synthetic operation per Run call. It keeps the set
// of ids it has created so reads always target an existing form. Safe for
// concurrent workers.
type Simulator struct {
	cfg Config
	inv txrouter.Invoker
	ids idgen.Generator

	mu      sync.Mutex
	rng     *rand.Rand
	formIDs []string
	stats   Stats
}

func NewSimulator(cfg Config, inv txrouter.Invoker, rng *rand.Rand, ids idgen.Generator) *Simulator {
	return &Simulator{cfg: cfg, inv: inv, rng: rng, ids: ids}
}

// Run executes one unit of load: a write when the draw falls under the
// write ratio, or when nothing has been created yet; otherwise a read of a
// uniformly random previously-created form.
func (s *Simulator) Run() error {
	s.mu.Lock()
	doWrite := s.rng.Float64() < s.cfg.WriteRatio || len(s.formIDs) == 0
	var target string
	if !doWrite {
		target = s.formIDs[s.rng.Intn(len(s.formIDs))]
	}
	patientNum := s.rng.Intn(1000)
	s.mu.Unlock()

	if doWrite {
		formID := s.ids.NextID()
		req, err := txrouter.CreateForm(s.synthesizeForm(formID, patientNum))
		if err != nil {
			return err
		}
		if _, err := txrouter.Dispatch(s.inv, req); err != nil {
			s.count(func(st *Stats) { st.Failures++ })
			return fmt.Errorf("benchmark write %s: %w", formID, err)
		}
		s.count(func(st *Stats) { st.Writes++ })
		s.mu.Lock()
		s.formIDs = append(s.formIDs, formID)
		s.mu.Unlock()
		return nil
	}

	if _, err := txrouter.Dispatch(s.inv, txrouter.ReadForm(target)); err != nil {
		s.count(func(st *Stats) { st.Failures++ })
		return fmt.Errorf("benchmark read %s: %w", target, err)
	}
	s.count(func(st *Stats) { st.Reads++ })
	return nil
}

// Stats returns a snapshot of the round counters.
func (s *Simulator) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

func (s *Simulator) count(apply func(*Stats)) {
	s.mu.Lock()
	apply(&s.stats)
	s.mu.Unlock()
}

func (s *Simulator) synthesizeForm(formID string, patientNum int) model.DiagnosisForm {
	return model.DiagnosisForm{
		FormID:    formID,
		DoctorID:  "DR001",
		PatientID: fmt.Sprintf("PAT%d", patientNum),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Diagnosis: model.Diagnosis{
			Primary:   "Hypertension",
			Secondary: []string{"Diabetes Type 2"},
			ICDCodes:  []string{"I10", "E11.9"},
		},
		Symptoms: []string{"High blood pressure", "Fatigue"},
		Treatment: model.Treatment{
			Medications: []model.Medication{
				{Name: "Lisinopril", Dosage: "10mg", Frequency: "Once daily", Duration: "30d"},
			},
			Recommendations: []string{"Diet", "Exercise"},
		},
		FollowUp: model.FollowUp{
			UrgentContact: false,
			Instructions:  "Recheck in 2 weeks",
		},
	}
}
