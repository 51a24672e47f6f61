package main

import (
	"bufio"
	"context"
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/chaz8081/ambudictate/internal/audio"
	"github.com/chaz8081/ambudictate/internal/config"
	"github.com/chaz8081/ambudictate/internal/extract"
	"github.com/chaz8081/ambudictate/internal/hotkey"
	"github.com/chaz8081/ambudictate/internal/inject"
	"github.com/chaz8081/ambudictate/internal/models"
	"github.com/chaz8081/ambudictate/internal/normalize"
	"github.com/chaz8081/ambudictate/internal/store"
	"github.com/chaz8081/ambudictate/internal/transcribe"
	"github.com/chaz8081/ambudictate/internal/workflow"
)

func main() {
	// CLI flags
	configPath := flag.String("config", "", "path to config file (default: ~/.config/ambudictate/config.yaml)")
	initConfig := flag.Bool("init-config", false, "write the default config file and exit")
	downloadModel := flag.Bool("download-model", false, "download a multilingual whisper model and exit")
	token := flag.String("token", os.Getenv("AMBUDICTATE_TOKEN"), "resume a session from a token printed at login")
	flag.Parse()

	if *initConfig {
		path, err := config.WriteDefault()
		if err != nil {
			log.Fatalf("init-config: %v", err)
		}
		if path == "" {
			log.Printf("Config already exists at %s", config.DefaultConfigPath())
			return
		}
		log.Printf("Wrote default config to %s", path)
		return
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: config.ParseLogLevel(cfg.LogLevel),
	})))

	ctx, stopSignals := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stopSignals()

	if *downloadModel {
		path, err := models.RunInteractiveDownload(ctx, os.Stdin, os.Stdout, filepath.Dir(cfg.Transcribe.ModelPath))
		if err != nil {
			log.Fatalf("download: %v", err)
		}
		log.Printf("Model ready at %s", path)
		return
	}

	if err := cfg.Validate(); err != nil {
		log.Fatalf("config validation: %v", err)
	}

	printBanner(cfg)

	st, err := store.Open(ctx, cfg.Store)
	if err != nil {
		log.Fatalf("Failed to open record store: %v", err)
	}
	var cleanup []func()
	cleanup = append(cleanup, func() { _ = st.Close() })
	log.Printf("Record store ready (%s)", cfg.Store.Driver)

	extractor, err := extract.New(ctx, &cfg.Extract)
	if err != nil {
		log.Fatalf("Failed to configure extraction: %v", err)
	}
	extractor.OnFallback = func(backend string, err error) {
		log.Printf("WARNING: %s failed, trying the next model: %.80v", backend, err)
	}
	log.Printf("Extraction backends: %s", strings.Join(extractor.Backends(), " -> "))

	deps := workflow.Deps{
		Normalizer: normalize.New(cfg.Normalize.Fillers),
		Extractor:  extractor,
		Store:      st,
	}

	engine, recorder := setupAudio(cfg)
	if engine != nil {
		cleanup = append(cleanup, func() { _ = engine.Close() }, func() { _ = recorder.Close() })
		deps.Transcriber = engine
		deps.Recorder = recorder
	}

	var secret []byte
	if cfg.Session.Secret != "" {
		secret, _ = hex.DecodeString(cfg.Session.Secret) // validated above
	}

	capture := audio.CaptureOptions{
		SampleRate:       cfg.Audio.SampleRate,
		Frame:            cfg.Audio.Frame,
		MaxDuration:      cfg.Audio.MaxDuration,
		SilenceTimeout:   cfg.Audio.SilenceTimeout,
		SilenceThreshold: cfg.Audio.SilenceThreshold,
	}
	ctl := workflow.NewController(workflow.Config{
		Language: cfg.Language,
		Capture:  capture,
		Secret:   secret,
		TokenTTL: cfg.Session.TTL,
	}, deps)

	injector, err := inject.NewInjector(cfg.Inject.Method)
	if err != nil {
		log.Fatalf("inject: %v", err)
	}

	lines := readLines(os.Stdin)

	sess, err := authenticate(ctx, ctl, *token, lines, os.Stdout)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		log.Fatalf("login: %v", err)
	}

	a := newApp(ctl, sess, injector, os.Stdout)

	var events <-chan hotkey.Event
	if cfg.Hotkey.Enabled && deps.Recorder != nil {
		listener := hotkey.NewListener(cfg.Hotkey)
		go listener.Start()
		events = listener.Events()
		a.onDictationDone = listener.Reset
		log.Printf("Hotkey ready (%s, mode: %s)", strings.Join(cfg.Hotkey.Keys, "+"), cfg.Hotkey.Mode)
	}

	log.Printf("Welcome, %s. Type 'help' for commands.", sess.Owner)
	a.prompt()

	// Main event loop
	for {
		select {
		case line, ok := <-lines:
			if !ok || a.handle(ctx, line) {
				a.shutdown()
				log.Println("Goodbye!")
				exit(cleanup)
			}
			a.prompt()

		case ev, ok := <-events:
			if !ok {
				log.Println("Hotkey listener stopped")
				events = nil
				continue
			}
			switch ev.Type {
			case hotkey.EventStart:
				a.startDictation(ctx)
			case hotkey.EventStop:
				a.stopDictation()
			}

		case res := <-a.done:
			a.finishDictation(res)
			a.prompt()

		case <-ctx.Done():
			log.Println("Received signal, shutting down...")
			a.shutdown()
			log.Println("Goodbye!")
			exit(cleanup)
		}
	}
}

// exit runs cleanup in reverse order, then leaves without running gohook's
// C cleanup, which can crash; the OS reclaims the event hook on exit.
func exit(cleanup []func()) {
	for i := len(cleanup) - 1; i >= 0; i-- {
		cleanup[i]()
	}
	os.Exit(0)
}

// setupAudio loads the speech model and opens the microphone. Dictation is
// disabled, not fatal, when either is unavailable; typed text still works.
func setupAudio(cfg *config.Config) (*transcribe.Engine, *audio.Recorder) {
	log.Printf("Loading speech model (%s)...", cfg.Transcribe.Backend)
	modelStart := time.Now()
	model, err := transcribe.New(&cfg.Transcribe)
	if err != nil {
		log.Printf("WARNING: dictation disabled: %v\n  Run 'ambudictate -download-model' to fetch a model into %s.",
			err, filepath.Dir(cfg.Transcribe.ModelPath))
		return nil, nil
	}
	log.Printf("Model loaded in %s", time.Since(modelStart).Round(time.Millisecond))

	recorder, err := audio.NewRecorder(cfg.Audio.SampleRate, cfg.Audio.Channels, cfg.Audio.DeviceTimeout)
	if err != nil {
		_ = model.Close()
		log.Printf("WARNING: dictation disabled: %v\n  Check that a microphone is connected and accessible.", err)
		return nil, nil
	}
	log.Println("Audio recorder ready")
	return transcribe.NewEngine(model, cfg.Transcribe.TempDir), recorder
}

// authenticate resumes from a token or asks for credentials, offering to
// create the account when login fails.
func authenticate(ctx context.Context, ctl *workflow.Controller, token string, lines <-chan string, out io.Writer) (*workflow.Session, error) {
	if token != "" {
		sess, err := ctl.Resume(ctx, token)
		if err == nil {
			return sess, nil
		}
		log.Printf("Session token rejected (%v), please log in.", err)
	}

	ask := func(label string) (string, error) {
		fmt.Fprint(out, label)
		select {
		case line, ok := <-lines:
			if !ok {
				return "", io.EOF
			}
			return strings.TrimSpace(line), nil
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	for attempt := 0; attempt < 3; attempt++ {
		user, err := ask("Usuario: ")
		if err != nil {
			return nil, err
		}
		pass, err := ask("Contraseña: ")
		if err != nil {
			return nil, err
		}

		sess, tok, err := ctl.Login(ctx, user, pass)
		if err == nil {
			if tok != "" {
				fmt.Fprintf(out, "Session token (use with -token): %s\n", tok)
			}
			return sess, nil
		}
		if !errors.Is(err, workflow.ErrNotAuthenticated) && !errors.Is(err, workflow.ErrValidation) {
			return nil, err
		}
		fmt.Fprintf(out, "%v\n", err)

		answer, err := ask("Create this account? [y/N]: ")
		if err != nil {
			return nil, err
		}
		if !strings.EqualFold(answer, "y") && !strings.EqualFold(answer, "s") {
			continue
		}
		created, err := ctl.Register(ctx, user, pass)
		if err != nil {
			fmt.Fprintf(out, "%v\n", err)
			continue
		}
		if !created {
			fmt.Fprintln(out, "That username is already taken.")
			continue
		}
		if sess, tok, err = ctl.Login(ctx, user, pass); err == nil {
			if tok != "" {
				fmt.Fprintf(out, "Session token (use with -token): %s\n", tok)
			}
			return sess, nil
		}
	}
	return nil, fmt.Errorf("too many failed attempts")
}

// readLines forwards stdin lines to a channel so they can be multiplexed
// with hotkey events and signals.
func readLines(r io.Reader) <-chan string {
	ch := make(chan string)
	go func() {
		defer close(ch)
		sc := bufio.NewScanner(r)
		for sc.Scan() {
			ch <- sc.Text()
		}
	}()
	return ch
}

// loadConfig loads the config from the specified path, or falls back to
// the default config path, or uses built-in defaults.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.Load(path)
	}

	defaultPath := config.DefaultConfigPath()
	if _, err := os.Stat(defaultPath); err == nil {
		cfg, err := config.Load(defaultPath)
		if err != nil {
			return nil, fmt.Errorf("loading %s: %w", defaultPath, err)
		}
		log.Printf("Config loaded from %s", defaultPath)
		return cfg, nil
	}

	// No config file, use defaults
	log.Println("No config file found, using defaults")
	cfg := config.Default()
	cfg.ApplyEnv()
	return cfg, nil
}

// printBanner displays the startup configuration summary.
func printBanner(cfg *config.Config) {
	fmt.Println("=== ambudictate ===")
	fmt.Printf("  Language:   %s\n", cfg.Language)
	switch cfg.Transcribe.Backend {
	case "server":
		fmt.Printf("  Speech:     server %s\n", cfg.Transcribe.ServerURL)
	default:
		fmt.Printf("  Speech:     whisper %s\n", cfg.Transcribe.ModelPath)
	}
	fmt.Printf("  Audio:      %dHz, %dch, stop after %s silence or %s\n",
		cfg.Audio.SampleRate, cfg.Audio.Channels, cfg.Audio.SilenceTimeout, cfg.Audio.MaxDuration)
	fmt.Printf("  Store:      %s\n", cfg.Store.Driver)
	if cfg.Hotkey.Enabled {
		fmt.Printf("  Hotkey:     %s (%s mode)\n", strings.Join(cfg.Hotkey.Keys, "+"), cfg.Hotkey.Mode)
	}
	fmt.Printf("  Inject:     %s\n", cfg.Inject.Method)
	fmt.Printf("  Log:        %s\n", cfg.LogLevel)
	fmt.Println("===================")
}
