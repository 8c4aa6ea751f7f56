// Main package for the societyhub command line tool.
package main

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/ubuntu/societyhub/cmd/societyhub/commands"
	"github.com/ubuntu/societyhub/internal/constants"
)

func main() {
	slog.SetLogLoggerLevel(constants.DefaultLogLevel)

	a, err := commands.New()
	if err != nil {
		slog.Error(err.Error())
		os.Exit(1)
	}

	installSignalHandler(a)

	os.Exit(run(a))
}

type app interface {
	Run() error
	UsageError() bool
	Quit()
}

func run(a app) int {
	if err := a.Run(); err != nil {
		slog.Error(err.Error())

		if a.UsageError() {
			return 2
		}
		return 1
	}

	return 0
}

func installSignalHandler(a app) {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	go func() {
		for range c {
			slog.Info("Received signal, quitting")
			a.Quit()
		}
	}()
}
