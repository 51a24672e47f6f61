// Package workflow orchestrates a dictation session: capture, transcription,
// normalization, structured extraction, user review and commit to the
// record store.
//
// All per-user state lives in an explicit Session. The Controller itself
// holds only its collaborators and may serve several sessions.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"

	"github.com/chaz8081/ambudictate/internal/audio"
	"github.com/chaz8081/ambudictate/internal/extract"
	"github.com/chaz8081/ambudictate/internal/normalize"
	"github.com/chaz8081/ambudictate/internal/store"
)

var (
	// ErrValidation reports a caller-side precondition failure, such as a
	// missing required field.
	ErrValidation = errors.New("workflow: validation failed")
	// ErrNotAuthenticated reports bad credentials or an invalid session token.
	ErrNotAuthenticated = errors.New("workflow: not authenticated")
	// ErrBusy is returned when a dictation is started while one is running.
	ErrBusy = errors.New("workflow: dictation already in progress")
)

// Recorder captures one utterance.
type Recorder interface {
	Capture(ctx context.Context, opts audio.CaptureOptions, progress func(audio.Progress)) (audio.Result, error)
}

// Transcriber converts captured audio to text.
type Transcriber interface {
	Transcribe(ctx context.Context, samples []float32, sampleRate int, language string) (string, error)
}

// Extractor turns free text into structured fields.
type Extractor interface {
	Extract(ctx context.Context, text string) (extract.Result, error)
}

// Store persists accounts and records.
type Store interface {
	CreateAccount(ctx context.Context, username, password string) (bool, error)
	Authenticate(ctx context.Context, username, password string) (bool, error)
	AccountExists(ctx context.Context, username string) (bool, error)
	NextSequenceID(ctx context.Context) (string, error)
	Save(ctx context.Context, rec store.NewRecord) (store.Record, error)
	ListByStatus(ctx context.Context, owner string, status store.Status) ([]store.Record, error)
	MarkComplete(ctx context.Context, owner, sequenceID string) error
}

// Config holds the controller settings.
type Config struct {
	Language string
	Capture  audio.CaptureOptions
	Secret   []byte // HS256 key for session tokens; nil disables tokens
	TokenTTL time.Duration
}

// Deps are the controller's collaborators. Recorder and Transcriber may be
// nil when only typed text is analyzed.
type Deps struct {
	Recorder    Recorder
	Transcriber Transcriber
	Normalizer  *normalize.Normalizer
	Extractor   Extractor
	Store       Store
}

// Controller runs workflow operations against a Session.
type Controller struct {
	cfg  Config
	deps Deps
	now  func() time.Time
}

// NewController creates a Controller. A nil Normalizer uses the default
// disfluency vocabulary.
func NewController(cfg Config, deps Deps) *Controller {
	if deps.Normalizer == nil {
		deps.Normalizer = normalize.New(normalize.DefaultFillers)
	}
	return &Controller{cfg: cfg, deps: deps, now: time.Now}
}

// Register creates an account. An existing username is not an error;
// created reports whether the account is new.
func (c *Controller) Register(ctx context.Context, username, password string) (created bool, err error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return false, fmt.Errorf("%w: username and password are required", ErrValidation)
	}
	return c.deps.Store.CreateAccount(ctx, username, password)
}

// Login checks credentials and opens a new session. When a secret is
// configured it also returns a signed token for Resume.
func (c *Controller) Login(ctx context.Context, username, password string) (*Session, string, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, "", fmt.Errorf("%w: username and password are required", ErrValidation)
	}
	ok, err := c.deps.Store.Authenticate(ctx, username, password)
	if err != nil {
		return nil, "", err
	}
	if !ok {
		return nil, "", fmt.Errorf("%w: wrong username or password", ErrNotAuthenticated)
	}

	sess := newSession(uuid.New(), username)
	slog.Info("workflow: logged in", "user", username, "session", sess.ID)

	if len(c.cfg.Secret) == 0 {
		return sess, "", nil
	}
	token, err := c.issueToken(sess)
	if err != nil {
		return nil, "", err
	}
	return sess, token, nil
}

// Resume reopens a session from a token issued by Login. The draft starts
// empty.
func (c *Controller) Resume(ctx context.Context, token string) (*Session, error) {
	if len(c.cfg.Secret) == 0 {
		return nil, fmt.Errorf("%w: session tokens are disabled", ErrNotAuthenticated)
	}
	owner, id, err := c.parseToken(token)
	if err != nil {
		return nil, err
	}
	exists, err := c.deps.Store.AccountExists(ctx, owner)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("%w: account %q no longer exists", ErrNotAuthenticated, owner)
	}
	return newSession(id, owner), nil
}

// DictateOptions controls one dictation.
type DictateOptions struct {
	// Stop ends the capture early and keeps the audio recorded so far.
	Stop <-chan struct{}
	// Progress is called once per captured frame.
	Progress func(audio.Progress)
}

// Dictation is the outcome of Dictate.
type Dictation struct {
	Duration   time.Duration
	StopReason audio.StopReason
	Transcript string // raw transcription
	Text       string // normalized transcription, stored as the draft text
	Extraction extract.Result
}

// Dictate captures an utterance, transcribes and normalizes it, then runs
// extraction and fills the draft. When extraction fails the draft keeps
// the new text and the error is returned with the partial Dictation.
func (c *Controller) Dictate(ctx context.Context, sess *Session, opts DictateOptions) (Dictation, error) {
	if c.deps.Recorder == nil || c.deps.Transcriber == nil {
		return Dictation{}, fmt.Errorf("workflow: audio dictation is not configured")
	}
	if !sess.beginRecording() {
		return Dictation{}, ErrBusy
	}

	capOpts := c.cfg.Capture
	capOpts.Stop = opts.Stop
	captured, err := c.deps.Recorder.Capture(ctx, capOpts, opts.Progress)
	sess.endRecording()
	if err != nil {
		return Dictation{}, fmt.Errorf("workflow: capture: %w", err)
	}
	slog.Debug("workflow: captured", "duration", captured.Duration, "reason", captured.Reason)

	d := Dictation{Duration: captured.Duration, StopReason: captured.Reason}
	d.Transcript, err = c.deps.Transcriber.Transcribe(ctx, captured.Samples, int(captured.SampleRate), c.cfg.Language)
	if err != nil {
		return d, fmt.Errorf("workflow: %w", err)
	}

	d.Text = c.deps.Normalizer.Normalize(d.Transcript)
	if !hasContent(d.Text) {
		return d, fmt.Errorf("%w: no speech recognized", ErrValidation)
	}

	d.Extraction, err = c.analyze(ctx, sess, d.Text)
	return d, err
}

// Analyze normalizes typed or edited text, runs extraction and fills the
// draft. On failure the draft keeps the text and its other fields are left
// untouched.
func (c *Controller) Analyze(ctx context.Context, sess *Session, text string) (extract.Result, error) {
	text = c.deps.Normalizer.Normalize(text)
	if !hasContent(text) {
		return extract.Result{}, fmt.Errorf("%w: enter or dictate text before analyzing", ErrValidation)
	}
	return c.analyze(ctx, sess, text)
}

func (c *Controller) analyze(ctx context.Context, sess *Session, text string) (extract.Result, error) {
	_ = sess.update(func(d *Draft) error {
		d.Text = text
		return nil
	})

	res, err := c.deps.Extractor.Extract(ctx, text)
	if err != nil {
		return extract.Result{}, err
	}

	_ = sess.update(func(d *Draft) error {
		d.apply(res)
		return nil
	})

	stats := normalize.EditRate(text, res.CorrectedText)
	slog.Info("workflow: dictation analyzed",
		"session", sess.ID,
		"edit_rate", fmt.Sprintf("%.2f", stats.Rate),
		"substitutions", stats.Substitutions,
		"insertions", stats.Insertions,
		"deletions", stats.Deletions,
	)
	return res, nil
}

// SetField edits one draft field. Unknown fields and non-numeric ages fail
// with ErrValidation.
func (c *Controller) SetField(sess *Session, field, value string) error {
	return sess.update(func(d *Draft) error {
		return d.set(field, value)
	})
}

// PreviewSequenceID returns the id the next commit is expected to receive.
// The binding id is assigned by Commit.
func (c *Controller) PreviewSequenceID(ctx context.Context) (string, error) {
	return c.deps.Store.NextSequenceID(ctx)
}

// Commit saves the draft as a new incomplete record and clears the draft.
// Patient name, age and reason are required.
func (c *Controller) Commit(ctx context.Context, sess *Session) (store.Record, error) {
	draft := sess.Draft()
	if missing := draft.Missing(); len(missing) > 0 {
		return store.Record{}, fmt.Errorf("%w: missing required fields: %s", ErrValidation, strings.Join(missing, ", "))
	}

	rec, err := c.deps.Store.Save(ctx, store.NewRecord{
		Owner:       sess.Owner,
		PatientName: draft.PatientName,
		Age:         draft.Age,
		Reason:      draft.Reason,
		Diagnosis:   draft.Diagnosis,
		Treatment:   draft.Treatment,
	})
	if err != nil {
		return store.Record{}, err
	}

	c.Reset(sess)
	slog.Info("workflow: record saved", "id", rec.SequenceID, "user", sess.Owner)
	return rec, nil
}

// Reset discards the draft without touching the login.
func (c *Controller) Reset(sess *Session) {
	_ = sess.update(func(d *Draft) error {
		*d = Draft{}
		return nil
	})
}

// List returns the session owner's records with status, newest first.
func (c *Controller) List(ctx context.Context, sess *Session, status store.Status) ([]store.Record, error) {
	return c.deps.Store.ListByStatus(ctx, sess.Owner, status)
}

// Complete marks one of the session owner's records as reviewed.
func (c *Controller) Complete(ctx context.Context, sess *Session, sequenceID string) error {
	sequenceID = strings.TrimSpace(sequenceID)
	if sequenceID == "" {
		return fmt.Errorf("%w: record id is required", ErrValidation)
	}
	return c.deps.Store.MarkComplete(ctx, sess.Owner, sequenceID)
}

// hasContent reports whether text has any letter or digit left after
// normalization; a dictation of only fillers leaves bare punctuation.
func hasContent(text string) bool {
	return strings.IndexFunc(text, func(r rune) bool {
		return unicode.IsLetter(r) || unicode.IsDigit(r)
	}) >= 0
}
