package main

import (
	"log"
	"os"

	"github.com/urfave/cli/v2"
)

func main() {
	cliApp := &cli.App{
		Name:  "rafflectl",
		Usage: "operate a running raffle",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "api",
				Value:   "http://localhost:8080",
				Usage:   "raffle API base URL",
				EnvVars: []string{"RAFFLE_API"},
			},
			&cli.StringFlag{
				Name:    "token",
				Usage:   "operator bearer token",
				EnvVars: []string{"RAFFLE_TOKEN"},
			},
			&cli.StringFlag{
				Name:    "nats",
				Value:   "nats://localhost:4222",
				Usage:   "NATS URL for bus commands",
				EnvVars: []string{"NATS_URL"},
			},
		},
		Commands: []*cli.Command{
			statusCommand(),
			playerCommand(),
			enterCommand(),
			upkeepCommand(),
			retryCommand(),
			winnersCommand(),
			reportCommand(),
			tokenCommand(),
			fulfillCommand(),
			fundCommand(),
		},
	}

	if err := cliApp.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
