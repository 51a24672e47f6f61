// Command test-hotkey checks push-to-dictate against the hotkey section of
// the ambudictate config. Each start/stop pair is printed with the length
// the dictation would have had. With -auto-stop, a dictation that is not
// stopped by the key ends on its own after that delay, the way a capture
// ends on silence, and the toggle state is re-armed.
//
// Usage:
//
//	go run ./cmd/test-hotkey [-config path] [-keys ctrl+shift+d] [-mode hold|toggle] [-auto-stop 3s]
package main

import (
	"flag"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/chaz8081/ambudictate/internal/config"
	"github.com/chaz8081/ambudictate/internal/hotkey"
)

func main() {
	configPath := flag.String("config", "", "config file to read the hotkey section from")
	keys := flag.String("keys", "", "override hotkey.keys, joined with +")
	mode := flag.String("mode", "", "override hotkey.mode: hold or toggle")
	autoStop := flag.Duration("auto-stop", 0, "end a dictation on its own after this long (0 disables)")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			log.Fatalf("config: %v", err)
		}
		cfg = loaded
	}
	hk := cfg.Hotkey
	hk.Enabled = true
	if *keys != "" {
		hk.Keys = strings.Split(*keys, "+")
	}
	if *mode != "" {
		hk.Mode = *mode
	}
	cfg.Hotkey = hk
	if err := cfg.Validate(); err != nil {
		log.Fatalf("hotkey config: %v", err)
	}

	listener := hotkey.NewListener(hk)
	log.Printf("Push-to-dictate on %s (%s mode). Ctrl+C exits.", strings.Join(hk.Keys, "+"), hk.Mode)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go listener.Start()

	var (
		started time.Time
		timeout <-chan time.Time
	)
	for {
		select {
		case ev, ok := <-listener.Events():
			if !ok {
				log.Println("listener closed")
				return
			}
			switch ev.Type {
			case hotkey.EventStart:
				if !started.IsZero() {
					log.Println("start ignored: dictation already running")
					continue
				}
				started = time.Now()
				if *autoStop > 0 {
					timeout = time.After(*autoStop)
				}
				log.Println("dictation started")
			case hotkey.EventStop:
				if started.IsZero() {
					log.Println("stop ignored: no dictation running")
					continue
				}
				log.Printf("dictation stopped by key after %s (audio kept)", time.Since(started).Round(10*time.Millisecond))
				started, timeout = time.Time{}, nil
			}

		case <-timeout:
			log.Printf("dictation ended on its own after %s; hotkey re-armed", time.Since(started).Round(10*time.Millisecond))
			started, timeout = time.Time{}, nil
			listener.Reset()

		case <-sigCh:
			listener.Stop()
			log.Println("Done.")
			// gohook's C cleanup can crash on return
			os.Exit(0)
		}
	}
}
