package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/chaz8081/ambudictate/internal/audio"
	"github.com/chaz8081/ambudictate/internal/store"
	"github.com/chaz8081/ambudictate/internal/workflow"
)

const helpText = `Commands:
  dictate                 record a dictation (stops on silence, or type 'stop')
  stop                    end the running dictation and keep the audio
  analyze [text]          extract fields from text (default: the draft text)
  set <field> <value>     edit a draft field (patient_name, age, reason, diagnosis, treatment, text)
  show                    show the draft and the next record id
  save                    save the draft as a new record
  list [incomplete|complete]
  complete <id>           mark a record as reviewed
  reset                   discard the draft
  quit
`

// textInjector exports text to the focused application.
type textInjector interface {
	Enabled() bool
	Inject(text string) error
}

// dictationResult is delivered on app.done when a background dictation ends.
type dictationResult struct {
	dictation workflow.Dictation
	err       error
}

// recording is a dictation running in the background.
type recording struct {
	stop     chan struct{}
	stopOnce sync.Once
	cancel   context.CancelFunc
}

func (r *recording) requestStop() {
	r.stopOnce.Do(func() { close(r.stop) })
}

// app runs interactive commands for one session. Its methods are called
// from the main event loop only.
type app struct {
	ctl      *workflow.Controller
	sess     *workflow.Session
	injector textInjector
	out      io.Writer

	rec  *recording
	done chan dictationResult

	// onDictationDone is called after every dictation, e.g. to re-arm a
	// toggle hotkey.
	onDictationDone func()
}

func newApp(ctl *workflow.Controller, sess *workflow.Session, injector textInjector, out io.Writer) *app {
	return &app{
		ctl:      ctl,
		sess:     sess,
		injector: injector,
		out:      out,
		done:     make(chan dictationResult, 1),
	}
}

func (a *app) prompt() {
	fmt.Fprint(a.out, "> ")
}

// handle runs one command line and reports whether the user asked to quit.
func (a *app) handle(ctx context.Context, line string) (quit bool) {
	cmd, rest, _ := strings.Cut(strings.TrimSpace(line), " ")
	rest = strings.TrimSpace(rest)

	switch strings.ToLower(cmd) {
	case "":
	case "help", "?":
		fmt.Fprint(a.out, helpText)
	case "dictate":
		a.startDictation(ctx)
	case "stop":
		if a.rec == nil {
			fmt.Fprintln(a.out, "No dictation in progress.")
			return false
		}
		a.stopDictation()
	case "analyze":
		a.analyze(ctx, rest)
	case "set":
		field, value, _ := strings.Cut(rest, " ")
		if err := a.ctl.SetField(a.sess, field, value); err != nil {
			a.report(err)
			return false
		}
		a.show(ctx)
	case "show":
		a.show(ctx)
	case "save":
		a.save(ctx)
	case "list":
		a.list(ctx, rest)
	case "complete":
		if err := a.ctl.Complete(ctx, a.sess, rest); err != nil {
			a.report(err)
			return false
		}
		fmt.Fprintf(a.out, "Record %s marked complete.\n", rest)
	case "reset", "new":
		a.ctl.Reset(a.sess)
		fmt.Fprintln(a.out, "Draft cleared.")
	case "quit", "exit":
		return true
	default:
		fmt.Fprintf(a.out, "Unknown command %q. Type 'help' for commands.\n", cmd)
	}
	return false
}

// startDictation runs Dictate in the background; the result arrives on
// a.done.
func (a *app) startDictation(ctx context.Context) {
	if a.rec != nil {
		fmt.Fprintln(a.out, "A dictation is already in progress.")
		return
	}

	dctx, cancel := context.WithCancel(ctx)
	rec := &recording{stop: make(chan struct{}), cancel: cancel}
	a.rec = rec
	fmt.Fprintln(a.out, "Recording... speak now (stops after silence).")

	go func() {
		defer cancel()
		d, err := a.ctl.Dictate(dctx, a.sess, workflow.DictateOptions{
			Stop:     rec.stop,
			Progress: a.progress,
		})
		a.done <- dictationResult{dictation: d, err: err}
	}()
}

// stopDictation ends the running capture and keeps the audio so far.
func (a *app) stopDictation() {
	if a.rec != nil {
		a.rec.requestStop()
	}
}

func (a *app) progress(p audio.Progress) {
	marker := "●"
	if p.Silent {
		marker = "○"
	}
	fmt.Fprintf(a.out, "\r  %s %4.1fs  energy %.3f ", marker, p.Elapsed.Seconds(), p.Energy)
}

func (a *app) finishDictation(res dictationResult) {
	a.rec = nil
	if a.onDictationDone != nil {
		a.onDictationDone()
	}
	fmt.Fprintln(a.out)

	d := res.dictation
	if d.Duration > 0 {
		log.Printf("Captured %s of audio (stopped: %s)", d.Duration.Round(100*time.Millisecond), d.StopReason)
	}
	if d.Text != "" {
		fmt.Fprintf(a.out, "Transcript: %s\n", d.Text)
	}
	if res.err != nil {
		a.report(res.err)
		if d.Text != "" {
			fmt.Fprintln(a.out, "The transcript was kept as the draft text; edit it and run 'analyze' to retry.")
		}
		return
	}
	fmt.Fprint(a.out, workflow.DraftSummary(a.sess.Draft()))
}

func (a *app) analyze(ctx context.Context, text string) {
	if text == "" {
		text = a.sess.Draft().Text
	}
	if _, err := a.ctl.Analyze(ctx, a.sess, text); err != nil {
		a.report(err)
		return
	}
	fmt.Fprint(a.out, workflow.DraftSummary(a.sess.Draft()))
}

func (a *app) show(ctx context.Context) {
	if id, err := a.ctl.PreviewSequenceID(ctx); err == nil {
		fmt.Fprintf(a.out, "Next record: %s\n", id)
	}
	fmt.Fprint(a.out, workflow.DraftSummary(a.sess.Draft()))
}

func (a *app) save(ctx context.Context) {
	rec, err := a.ctl.Commit(ctx, a.sess)
	if err != nil {
		a.report(err)
		return
	}
	summary := workflow.Summary(rec)
	fmt.Fprintf(a.out, "Saved record %s.\n%s", rec.SequenceID, summary)

	if a.injector != nil && a.injector.Enabled() {
		if err := a.injector.Inject(summary); err != nil {
			log.Printf("WARNING: export to active application failed: %v", err)
		}
	}
}

func (a *app) list(ctx context.Context, arg string) {
	status := store.StatusIncomplete
	if arg != "" {
		s, err := store.ParseStatus(arg)
		if err != nil {
			a.report(err)
			return
		}
		status = s
	}

	recs, err := a.ctl.List(ctx, a.sess, status)
	if err != nil {
		a.report(err)
		return
	}
	if len(recs) == 0 {
		fmt.Fprintf(a.out, "No %s records.\n", status)
		return
	}
	for _, r := range recs {
		fmt.Fprintf(a.out, "  %s  %s  %-24s %s\n",
			r.SequenceID, r.CreatedAt.Format("2006-01-02 15:04"), r.PatientName, r.Reason)
	}
}

// shutdown cancels a running dictation without waiting for it.
func (a *app) shutdown() {
	if a.rec != nil {
		a.rec.cancel()
	}
}

// report prints a user-facing error. Validation errors are expected
// input problems and print without the package prefix.
func (a *app) report(err error) {
	switch {
	case errors.Is(err, workflow.ErrValidation):
		fmt.Fprintf(a.out, "%s\n", strings.TrimPrefix(err.Error(), workflow.ErrValidation.Error()+": "))
	case errors.Is(err, context.Canceled):
		fmt.Fprintln(a.out, "Canceled.")
	default:
		fmt.Fprintf(a.out, "Error: %v\n", err)
	}
}
