package workflow

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/chaz8081/ambudictate/internal/audio"
	"github.com/chaz8081/ambudictate/internal/config"
	"github.com/chaz8081/ambudictate/internal/extract"
	"github.com/chaz8081/ambudictate/internal/normalize"
	"github.com/chaz8081/ambudictate/internal/store"
)

// mockRecorder returns a fixed capture result.
type mockRecorder struct {
	CaptureFunc func(ctx context.Context, opts audio.CaptureOptions, progress func(audio.Progress)) (audio.Result, error)
	lastOpts    audio.CaptureOptions
}

func (m *mockRecorder) Capture(ctx context.Context, opts audio.CaptureOptions, progress func(audio.Progress)) (audio.Result, error) {
	m.lastOpts = opts
	return m.CaptureFunc(ctx, opts, progress)
}

// mockTranscriber returns a fixed transcript.
type mockTranscriber struct {
	text     string
	err      error
	language string
	rate     int
}

func (m *mockTranscriber) Transcribe(_ context.Context, _ []float32, sampleRate int, language string) (string, error) {
	m.rate = sampleRate
	m.language = language
	return m.text, m.err
}

// mockExtractor records the text it was given.
type mockExtractor struct {
	result extract.Result
	err    error
	got    []string
}

func (m *mockExtractor) Extract(_ context.Context, text string) (extract.Result, error) {
	m.got = append(m.got, text)
	return m.result, m.err
}

var testSecret = []byte("0123456789abcdef0123456789abcdef")

var fullResult = extract.Result{
	CorrectedText: "Paciente Juan Pérez de 45 años con dolor torácico.",
	PatientName:   "Juan Pérez",
	Age:           45,
	Reason:        "Dolor torácico",
	Diagnosis:     "Síndrome coronario agudo",
	Treatment:     "Oxígeno",
}

type fixture struct {
	ctl   *Controller
	store *store.Store
	rec   *mockRecorder
	tr    *mockTranscriber
	ex    *mockExtractor
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st, err := store.Open(context.Background(),
		config.StoreConfig{Driver: "sqlite", DSN: filepath.Join(t.TempDir(), "historias.db")},
		store.WithPasswordCost(bcrypt.MinCost))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	f := &fixture{
		store: st,
		rec: &mockRecorder{CaptureFunc: func(context.Context, audio.CaptureOptions, func(audio.Progress)) (audio.Result, error) {
			return audio.Result{Samples: make([]float32, 16000), SampleRate: 16000, Duration: time.Second, Reason: audio.StopSilence}, nil
		}},
		tr: &mockTranscriber{text: "eh paciente juan perez este 45 años dolor toracico"},
		ex: &mockExtractor{result: fullResult},
	}
	f.ctl = NewController(Config{
		Language: "es",
		Capture:  audio.DefaultCaptureOptions(),
		Secret:   testSecret,
		TokenTTL: time.Hour,
	}, Deps{
		Recorder:    f.rec,
		Transcriber: f.tr,
		Normalizer:  normalize.New(normalize.DefaultFillers),
		Extractor:   f.ex,
		Store:       st,
	})
	return f
}

func (f *fixture) login(t *testing.T) *Session {
	t.Helper()
	ctx := context.Background()
	_, err := f.ctl.Register(ctx, "paramedico", "clave")
	require.NoError(t, err)
	sess, _, err := f.ctl.Login(ctx, "paramedico", "clave")
	require.NoError(t, err)
	return sess
}

func TestRegisterAndLogin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.ctl.Register(ctx, " paramedico ", "clave")
	require.NoError(t, err)
	assert.True(t, created)

	created, err = f.ctl.Register(ctx, "paramedico", "otra")
	require.NoError(t, err)
	assert.False(t, created, "duplicate registration is a silent no-op")

	sess, token, err := f.ctl.Login(ctx, "paramedico", "clave")
	require.NoError(t, err)
	assert.Equal(t, "paramedico", sess.Owner)
	assert.NotEmpty(t, token)

	_, _, err = f.ctl.Login(ctx, "paramedico", "otra")
	assert.ErrorIs(t, err, ErrNotAuthenticated)

	_, err = f.ctl.Register(ctx, "", "x")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestResume(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.ctl.Register(ctx, "ana", "clave")
	require.NoError(t, err)
	sess, token, err := f.ctl.Login(ctx, "ana", "clave")
	require.NoError(t, err)

	resumed, err := f.ctl.Resume(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, sess.ID, resumed.ID)
	assert.Equal(t, "ana", resumed.Owner)

	_, err = f.ctl.Resume(ctx, token+"x")
	assert.ErrorIs(t, err, ErrNotAuthenticated)

	f.ctl.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, err = f.ctl.Resume(ctx, token)
	assert.ErrorIs(t, err, ErrNotAuthenticated, "expired token")
}

func TestResumeWithoutSecret(t *testing.T) {
	f := newFixture(t)
	f.ctl.cfg.Secret = nil
	sess := f.login(t)
	assert.NotNil(t, sess)

	_, err := f.ctl.Resume(context.Background(), "anything")
	assert.ErrorIs(t, err, ErrNotAuthenticated)
}

func TestDictateFillsDraft(t *testing.T) {
	f := newFixture(t)
	sess := f.login(t)
	stop := make(chan struct{})

	d, err := f.ctl.Dictate(context.Background(), sess, DictateOptions{Stop: stop})
	require.NoError(t, err)

	assert.Equal(t, "paciente juan perez 45 años dolor toracico", d.Text, "fillers removed before extraction")
	assert.Equal(t, []string{d.Text}, f.ex.got)
	assert.Equal(t, "es", f.tr.language)
	assert.Equal(t, 16000, f.tr.rate)
	assert.Equal(t, audio.StopSilence, d.StopReason)
	assert.Equal(t, (<-chan struct{})(stop), f.rec.lastOpts.Stop, "stop channel reaches the recorder")

	draft := sess.Draft()
	assert.Equal(t, "Juan Pérez", draft.PatientName)
	assert.Equal(t, "45", draft.Age)
	assert.Equal(t, "Dolor torácico", draft.Reason)
	assert.Equal(t, fullResult.CorrectedText, draft.CorrectedText)
	assert.False(t, sess.Recording())
}

func TestDictateDeviceError(t *testing.T) {
	f := newFixture(t)
	sess := f.login(t)
	f.rec.CaptureFunc = func(context.Context, audio.CaptureOptions, func(audio.Progress)) (audio.Result, error) {
		return audio.Result{}, audio.ErrDevice
	}

	_, err := f.ctl.Dictate(context.Background(), sess, DictateOptions{})
	assert.ErrorIs(t, err, audio.ErrDevice)
	assert.Empty(t, f.ex.got)
	assert.False(t, sess.Recording(), "recording flag cleared after a failure")
}

func TestDictateBusy(t *testing.T) {
	f := newFixture(t)
	sess := f.login(t)

	entered := make(chan struct{})
	release := make(chan struct{})
	f.rec.CaptureFunc = func(context.Context, audio.CaptureOptions, func(audio.Progress)) (audio.Result, error) {
		close(entered)
		<-release
		return audio.Result{Samples: []float32{0}, SampleRate: 16000}, nil
	}

	done := make(chan error, 1)
	go func() {
		_, err := f.ctl.Dictate(context.Background(), sess, DictateOptions{})
		done <- err
	}()
	<-entered
	assert.True(t, sess.Recording())

	_, err := f.ctl.Dictate(context.Background(), sess, DictateOptions{})
	assert.ErrorIs(t, err, ErrBusy)

	close(release)
	require.NoError(t, <-done)
}

func TestDictateNoSpeech(t *testing.T) {
	f := newFixture(t)
	sess := f.login(t)
	f.tr.text = "eh, este, mmm"

	_, err := f.ctl.Dictate(context.Background(), sess, DictateOptions{})
	assert.ErrorIs(t, err, ErrValidation)
	assert.Empty(t, f.ex.got, "nothing to extract from fillers only")
}

func TestAnalyzeFailureKeepsFields(t *testing.T) {
	f := newFixture(t)
	sess := f.login(t)
	require.NoError(t, f.ctl.SetField(sess, FieldPatientName, "Ana"))

	f.ex.err = errors.Join(extract.ErrExtractionFailed, errors.New("quota"))
	_, err := f.ctl.Analyze(context.Background(), sess, "mujer de 30 años, eh, caída")
	assert.ErrorIs(t, err, extract.ErrExtractionFailed)

	draft := sess.Draft()
	assert.Equal(t, "mujer de 30 años, caída", draft.Text)
	assert.Equal(t, "Ana", draft.PatientName, "no fabricated or cleared fields")
	assert.Empty(t, draft.Age)
}

func TestAnalyzeRejectsEmptyText(t *testing.T) {
	f := newFixture(t)
	sess := f.login(t)
	_, err := f.ctl.Analyze(context.Background(), sess, "  eh  ")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestAnalyzePlaceholdersLeaveFieldsEmpty(t *testing.T) {
	f := newFixture(t)
	sess := f.login(t)
	f.ex.result = extract.Result{PatientName: "No especificado", Age: 0, Reason: "Caída", Diagnosis: "no especificado"}

	_, err := f.ctl.Analyze(context.Background(), sess, "caída de su propia altura")
	require.NoError(t, err)

	draft := sess.Draft()
	assert.Empty(t, draft.PatientName)
	assert.Empty(t, draft.Age)
	assert.Empty(t, draft.Diagnosis)
	assert.Equal(t, "Caída", draft.Reason)
	assert.ElementsMatch(t, []string{FieldPatientName, FieldAge}, draft.Missing())
}

func TestAnalyzeQuotedPlaceholdersLeaveFieldsEmpty(t *testing.T) {
	f := newFixture(t)
	sess := f.login(t)
	f.ex.result = extract.Result{
		PatientName: "'No especificado'",
		Age:         41,
		Reason:      "No especificado.",
		Diagnosis:   "not specified",
		Treatment:   `"No especificada"`,
	}

	_, err := f.ctl.Analyze(context.Background(), sess, "paciente de 41 años")
	require.NoError(t, err)

	draft := sess.Draft()
	assert.Empty(t, draft.PatientName)
	assert.Empty(t, draft.Reason)
	assert.Empty(t, draft.Diagnosis)
	assert.Empty(t, draft.Treatment)
	assert.Equal(t, "41", draft.Age)
	assert.ElementsMatch(t, []string{FieldPatientName, FieldReason}, draft.Missing())
}

func TestSetField(t *testing.T) {
	f := newFixture(t)
	sess := f.login(t)

	tests := []struct {
		field   string
		value   string
		wantErr bool
	}{
		{field: FieldPatientName, value: " Ana López "},
		{field: FieldAge, value: "30"},
		{field: FieldAge, value: "treinta", wantErr: true},
		{field: FieldAge, value: "-1", wantErr: true},
		{field: FieldReason, value: "Caída"},
		{field: FieldDiagnosis, value: "Fractura"},
		{field: FieldTreatment, value: "Inmovilización"},
		{field: FieldText, value: "texto libre"},
		{field: "estado", value: "complete", wantErr: true},
	}
	for _, tt := range tests {
		err := f.ctl.SetField(sess, tt.field, tt.value)
		if tt.wantErr {
			assert.ErrorIs(t, err, ErrValidation, "%s=%q", tt.field, tt.value)
		} else {
			assert.NoError(t, err, "%s=%q", tt.field, tt.value)
		}
	}

	draft := sess.Draft()
	assert.Equal(t, "Ana López", draft.PatientName)
	assert.Equal(t, "30", draft.Age)
	assert.Equal(t, "Inmovilización", draft.Treatment)
}

func TestCommit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sess := f.login(t)

	_, err := f.ctl.Commit(ctx, sess)
	require.ErrorIs(t, err, ErrValidation)
	assert.Contains(t, err.Error(), "patient_name, age, reason")

	preview, err := f.ctl.PreviewSequenceID(ctx)
	require.NoError(t, err)

	_, err = f.ctl.Analyze(ctx, sess, "dictado completo")
	require.NoError(t, err)
	rec, err := f.ctl.Commit(ctx, sess)
	require.NoError(t, err)

	assert.Equal(t, preview, rec.SequenceID)
	assert.Equal(t, "paramedico", rec.Owner)
	assert.Equal(t, store.StatusIncomplete, rec.Status)
	assert.Equal(t, Draft{}, sess.Draft(), "draft cleared after commit")

	recs, err := f.ctl.List(ctx, sess, store.StatusIncomplete)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "Juan Pérez", recs[0].PatientName)
}

func TestCompleteAndList(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sess := f.login(t)

	_, err := f.ctl.Analyze(ctx, sess, "dictado")
	require.NoError(t, err)
	rec, err := f.ctl.Commit(ctx, sess)
	require.NoError(t, err)

	require.NoError(t, f.ctl.Complete(ctx, sess, rec.SequenceID))
	incomplete, err := f.ctl.List(ctx, sess, store.StatusIncomplete)
	require.NoError(t, err)
	assert.Empty(t, incomplete)
	complete, err := f.ctl.List(ctx, sess, store.StatusComplete)
	require.NoError(t, err)
	assert.Len(t, complete, 1)

	assert.ErrorIs(t, f.ctl.Complete(ctx, sess, ""), ErrValidation)
	assert.ErrorIs(t, f.ctl.Complete(ctx, sess, "HC-1999-0001"), store.ErrRecordNotFound)

	_, err = f.ctl.Register(ctx, "otro", "clave")
	require.NoError(t, err)
	other, _, err := f.ctl.Login(ctx, "otro", "clave")
	require.NoError(t, err)
	assert.ErrorIs(t, f.ctl.Complete(ctx, other, rec.SequenceID), store.ErrRecordNotFound)
}

func TestReset(t *testing.T) {
	f := newFixture(t)
	sess := f.login(t)
	require.NoError(t, f.ctl.SetField(sess, FieldReason, "Caída"))
	f.ctl.Reset(sess)
	assert.Equal(t, Draft{}, sess.Draft())
	assert.Equal(t, "paramedico", sess.Owner, "reset keeps the login")
}

func TestDictateWithoutAudio(t *testing.T) {
	f := newFixture(t)
	f.ctl.deps.Recorder = nil
	sess := f.login(t)
	_, err := f.ctl.Dictate(context.Background(), sess, DictateOptions{})
	assert.Error(t, err)
}

func TestSummary(t *testing.T) {
	rec := store.Record{
		SequenceID:  "HC-2025-0007",
		PatientName: "Juan",
		Age:         "45",
		Reason:      "Dolor",
		CreatedAt:   time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC),
	}
	s := Summary(rec)
	for _, want := range []string{"HC-2025-0007", "2025-03-14 09:30", "Paciente: Juan", "Diagnóstico: -"} {
		assert.True(t, strings.Contains(s, want), "summary missing %q:\n%s", want, s)
	}
	assert.Contains(t, DraftSummary(Draft{Reason: "Caída"}), "reason*       : Caída")
}
