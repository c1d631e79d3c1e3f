package main

import (
	"os"

	"github.com/bubblelabai/bubblelab/cmd/cli"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	// Optional; real deployments configure through the environment.
	_ = godotenv.Load()

	cli.Execute()
}
