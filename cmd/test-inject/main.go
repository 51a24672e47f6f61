// Command test-inject is a manual check of record export. It waits 3
// seconds, then types or pastes a sample record summary into the focused
// application.
//
// Usage:
//
//	go run ./cmd/test-inject [-method type|paste]
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/chaz8081/ambudictate/internal/inject"
	"github.com/chaz8081/ambudictate/internal/store"
	"github.com/chaz8081/ambudictate/internal/workflow"
)

func main() {
	method := flag.String("method", "type", "inject method: type or paste")
	flag.Parse()

	now := time.Now()
	text := workflow.Summary(store.Record{
		SequenceID:  store.FormatSequenceID(now.Year(), 1),
		PatientName: "Paciente de prueba",
		Age:         "40",
		Reason:      "dolor torácico",
		CreatedAt:   now,
		Status:      store.StatusIncomplete,
	})

	inj, err := inject.NewInjector(*method)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Will export a sample record using %q method in 3 seconds...\n", *method)
	fmt.Println("Focus a text editor now!")

	for i := 3; i > 0; i-- {
		fmt.Printf("%d...\n", i)
		time.Sleep(time.Second)
	}

	if err := inj.Inject(text); err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}

	fmt.Println("\nDone!")
}
