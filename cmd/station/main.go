package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"

	"checkin/internal/config"
	"checkin/internal/scanner"
)

// Station reads scans from a keyboard-mode barcode reader on stdin and
// submits each one to the check-in API.
func main() {
	cfg := config.Load()
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	client := scanner.NewClient(cfg.APIURL, cfg.StationID)
	station := scanner.NewStation(
		func(context.Context) (scanner.Source, error) {
			return scanner.NewLineSource(os.Stdin), nil
		},
		func(ctx context.Context, payload string) {
			res, err := client.Submit(ctx, payload)
			switch {
			case errors.Is(err, scanner.ErrNotFound):
				log.Printf("no guest matches %q", payload)
			case err != nil:
				log.Printf("check-in failed: %v", err)
			case res.Duplicate:
				log.Printf("ALREADY REGISTERED: %s (%s) at %s", res.Guest.Name, res.Guest.Type, res.Guest.RegisteredTime)
			default:
				log.Printf("welcome %s, guest of %s", res.Guest.Name, res.Guest.StudentName)
				if res.Warning != "" {
					log.Printf("warning: %s", res.Warning)
				}
			}
		},
	)

	if err := station.Start(ctx); err != nil {
		log.Fatalf("station start failed: %v", err)
	}
	log.Printf("station %s scanning, submitting to %s", cfg.StationID, cfg.APIURL)

	<-station.Done()
	station.Stop()
	log.Println("station stopped")
}
