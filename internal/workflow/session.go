package workflow

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/chaz8081/ambudictate/internal/extract"
)

// Field names accepted by SetField.
const (
	FieldText        = "text"
	FieldPatientName = "patient_name"
	FieldAge         = "age"
	FieldReason      = "reason"
	FieldDiagnosis   = "diagnosis"
	FieldTreatment   = "treatment"
)

// Fields lists the editable draft fields in display order.
var Fields = []string{FieldPatientName, FieldAge, FieldReason, FieldDiagnosis, FieldTreatment, FieldText}

// Draft is the unsaved record being prepared in a session.
type Draft struct {
	Text          string // normalized dictation or typed free text
	CorrectedText string // language-model corrected text, read only
	PatientName   string
	Age           string
	Reason        string
	Diagnosis     string
	Treatment     string
}

// Missing returns the required fields that are still empty.
func (d Draft) Missing() []string {
	var missing []string
	if strings.TrimSpace(d.PatientName) == "" {
		missing = append(missing, FieldPatientName)
	}
	if strings.TrimSpace(d.Age) == "" {
		missing = append(missing, FieldAge)
	}
	if strings.TrimSpace(d.Reason) == "" {
		missing = append(missing, FieldReason)
	}
	return missing
}

// apply fills the draft from an extraction result. The placeholder for
// unknown values and an age of 0 leave the field empty so the required
// field check catches them.
func (d *Draft) apply(res extract.Result) {
	d.CorrectedText = res.CorrectedText
	d.PatientName = known(res.PatientName)
	d.Age = res.Age.String()
	d.Reason = known(res.Reason)
	d.Diagnosis = known(res.Diagnosis)
	d.Treatment = known(res.Treatment)
}

func known(v string) string {
	if extract.IsPlaceholder(v) {
		return ""
	}
	return strings.TrimSpace(v)
}

func (d *Draft) set(field, value string) error {
	value = strings.TrimSpace(value)
	switch field {
	case FieldText:
		d.Text = value
	case FieldPatientName:
		d.PatientName = value
	case FieldAge:
		if value != "" {
			n, err := strconv.Atoi(value)
			if err != nil || n < 0 || n > 150 {
				return fmt.Errorf("%w: age must be a whole number of years, got %q", ErrValidation, value)
			}
			value = strconv.Itoa(n)
		}
		d.Age = value
	case FieldReason:
		d.Reason = value
	case FieldDiagnosis:
		d.Diagnosis = value
	case FieldTreatment:
		d.Treatment = value
	default:
		return fmt.Errorf("%w: unknown field %q (valid: %s)", ErrValidation, field, strings.Join(Fields, ", "))
	}
	return nil
}

// Session is one logged-in user's workflow state. Engines never see it;
// the Controller reads and updates it.
type Session struct {
	ID    uuid.UUID
	Owner string

	mu        sync.Mutex
	draft     Draft
	recording bool
}

func newSession(id uuid.UUID, owner string) *Session {
	return &Session{ID: id, Owner: owner}
}

// Draft returns a copy of the current draft.
func (s *Session) Draft() Draft {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.draft
}

// Recording reports whether a dictation capture is running.
func (s *Session) Recording() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recording
}

func (s *Session) beginRecording() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.recording {
		return false
	}
	s.recording = true
	return true
}

func (s *Session) endRecording() {
	s.mu.Lock()
	s.recording = false
	s.mu.Unlock()
}

func (s *Session) update(fn func(d *Draft) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(&s.draft)
}
