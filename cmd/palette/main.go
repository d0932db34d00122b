package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/bobmcallan/palette/internal/app"
	"github.com/bobmcallan/palette/internal/common"
)

func main() {
	a, err := app.NewApp()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize app: %v\n", err)
		os.Exit(1)
	}

	common.PrintBanner(a.Config, a.Logger)

	if err := a.Start(); err != nil {
		a.Logger.Fatal().Err(err).Msg("Failed to start")
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	common.PrintShutdownBanner(a.Logger)
	a.Close()
}
