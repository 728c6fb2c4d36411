// Command reconcile recomputes every denormalized counter once and prints
// what it repaired.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"snapgrid/internal/bootstrap"
	"snapgrid/internal/config"
	"snapgrid/internal/repository"
	"snapgrid/internal/service"
)

func main() {
	timeout := flag.Duration("timeout", 5*time.Minute, "Abort the run after this long")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	rt, err := bootstrap.InitRuntime(cfg, bootstrap.Options{})
	if err != nil {
		log.Fatalf("Failed to initialize runtime: %v", err)
	}
	defer rt.Close()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	report, err := service.NewCounterService(repository.NewCounterRepository(rt.DB)).Reconcile(ctx)
	if err != nil {
		rt.Close()
		log.Fatalf("Reconcile failed: %v", err)
	}
	if report.Total() > 0 {
		rt.PurgeCaches(ctx)
	}

	for _, name := range report.Counters() {
		fmt.Fprintf(os.Stdout, "%-24s %d\n", name, report[name])
	}
	fmt.Fprintf(os.Stdout, "%-24s %d\n", "total", report.Total())
}
