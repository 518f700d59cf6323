package main

import (
	"bytes"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	raffledomain "github.com/Black-And-White-Club/frolf-raffle/app/modules/raffle/domain"
	rafflejwt "github.com/Black-And-White-Club/frolf-raffle/app/modules/raffle/infrastructure/jwt"
	rafflereport "github.com/Black-And-White-Club/frolf-raffle/app/modules/raffle/infrastructure/report"
	vrfdomain "github.com/Black-And-White-Club/frolf-raffle/app/modules/vrf/domain"
	"github.com/urfave/cli/v2"
)

func statusCommand() *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "show the current round and whether upkeep is due",
		Action: func(c *cli.Context) error {
			api := newAPIClient(c)
			if err := api.printJSON(c.Context, "GET", "/api/raffle", nil, false); err != nil {
				return err
			}
			return api.printJSON(c.Context, "GET", "/api/raffle/upkeep", nil, false)
		},
	}
}

func playerCommand() *cli.Command {
	return &cli.Command{
		Name:      "player",
		Usage:     "show the account in an entry slot",
		ArgsUsage: "<index>",
		Action: func(c *cli.Context) error {
			index, err := strconv.Atoi(c.Args().First())
			if err != nil {
				return fmt.Errorf("invalid index %q", c.Args().First())
			}
			return newAPIClient(c).printJSON(c.Context, "GET", fmt.Sprintf("/api/raffle/players/%d", index), nil, false)
		},
	}
}

func enterCommand() *cli.Command {
	return &cli.Command{
		Name:  "enter",
		Usage: "enter the current round",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "account", Required: true},
			&cli.StringFlag{Name: "value", Required: true, Usage: "payment in base units"},
			&cli.BoolFlag{Name: "bus", Usage: "publish an enter command instead of calling the API"},
		},
		Action: func(c *cli.Context) error {
			if _, err := raffledomain.ParseAmount(c.String("value")); err != nil {
				return err
			}
			payload := raffledomain.EnterRequestedPayloadV1{
				Account: c.String("account"),
				Value:   c.String("value"),
			}
			if c.Bool("bus") {
				return publish(c, raffledomain.EnterRequestedV1, payload)
			}
			return newAPIClient(c).printJSON(c.Context, "POST", "/api/raffle/enter", payload, false)
		},
	}
}

func upkeepCommand() *cli.Command {
	return &cli.Command{
		Name:  "upkeep",
		Usage: "trigger the round if it is eligible",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "bus", Usage: "publish an upkeep command instead of calling the API"},
		},
		Action: func(c *cli.Context) error {
			if c.Bool("bus") {
				return publish(c, raffledomain.UpkeepRequestedV1, raffledomain.UpkeepRequestedPayloadV1{RequestedBy: "rafflectl"})
			}
			return newAPIClient(c).printJSON(c.Context, "POST", "/api/raffle/upkeep", nil, true)
		},
	}
}

func retryCommand() *cli.Command {
	return &cli.Command{
		Name:  "retry-payout",
		Usage: "retry the payout of a round stuck after a failed transfer",
		Action: func(c *cli.Context) error {
			return newAPIClient(c).printJSON(c.Context, "POST", "/api/raffle/payout/retry", nil, true)
		},
	}
}

func winnersCommand() *cli.Command {
	return &cli.Command{
		Name:  "winners",
		Usage: "list recent winners",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "limit", Value: 20},
		},
		Action: func(c *cli.Context) error {
			q := url.Values{"limit": {strconv.Itoa(c.Int("limit"))}}
			return newAPIClient(c).printJSON(c.Context, "GET", "/api/raffle/winners?"+q.Encode(), nil, false)
		},
	}
}

func reportCommand() *cli.Command {
	return &cli.Command{
		Name:  "report",
		Usage: "download the winners workbook",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "out", Value: "raffle-winners.xlsx"},
			&cli.IntFlag{Name: "limit", Value: 100},
		},
		Action: func(c *cli.Context) error {
			q := url.Values{"limit": {strconv.Itoa(c.Int("limit"))}}
			data, err := newAPIClient(c).get(c.Context, "/api/raffle/winners/report?"+q.Encode())
			if err != nil {
				return err
			}

			winners, err := rafflereport.ReadWinners(bytes.NewReader(data))
			if err != nil {
				return fmt.Errorf("downloaded report is unreadable: %w", err)
			}
			if err := os.WriteFile(c.String("out"), data, 0o644); err != nil {
				return err
			}
			fmt.Printf("Wrote %d winners to %s\n", len(winners), c.String("out"))
			return nil
		},
	}
}

func tokenCommand() *cli.Command {
	return &cli.Command{
		Name:  "token",
		Usage: "mint an API token",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "secret", Required: true, EnvVars: []string{"JWT_SECRET"}},
			&cli.StringFlag{Name: "issuer", Value: "frolf-raffle", EnvVars: []string{"JWT_ISSUER"}},
			&cli.StringFlag{Name: "subject", Value: "operator"},
			&cli.StringFlag{Name: "role", Value: string(rafflejwt.RoleOperator)},
			&cli.DurationFlag{Name: "ttl", Value: 24 * time.Hour},
		},
		Action: func(c *cli.Context) error {
			role := rafflejwt.Role(c.String("role"))
			if role != rafflejwt.RoleOperator && role != rafflejwt.RoleViewer {
				return fmt.Errorf("unknown role %q", role)
			}
			token, err := rafflejwt.NewProvider(c.String("secret"), c.String("issuer")).
				GenerateToken(c.String("subject"), role, c.Duration("ttl"))
			if err != nil {
				return err
			}
			fmt.Println(token)
			return nil
		},
	}
}

func fulfillCommand() *cli.Command {
	return &cli.Command{
		Name:      "fulfill",
		Usage:     "ask the local coordinator to answer a pending request",
		ArgsUsage: "<request-id>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "consumer", Value: "raffle"},
			&cli.StringSliceFlag{Name: "word", Usage: "override a random word (base 10)"},
		},
		Action: func(c *cli.Context) error {
			requestID := c.Args().First()
			if _, err := strconv.ParseUint(requestID, 10, 64); err != nil {
				return fmt.Errorf("invalid request id %q", requestID)
			}
			return publish(c, vrfdomain.FulfillRequestedV1, vrfdomain.FulfillRequestedPayloadV1{
				RequestID: requestID,
				Consumer:  c.String("consumer"),
				Words:     c.StringSlice("word"),
			})
		},
	}
}

func fundCommand() *cli.Command {
	return &cli.Command{
		Name:      "fund",
		Usage:     "top up a coordinator subscription",
		ArgsUsage: "<subscription-id> <amount>",
		Action: func(c *cli.Context) error {
			subID, err := strconv.ParseUint(c.Args().Get(0), 10, 64)
			if err != nil {
				return fmt.Errorf("invalid subscription id %q", c.Args().Get(0))
			}
			amount := c.Args().Get(1)
			if _, err := raffledomain.ParseAmount(amount); err != nil {
				return err
			}
			return publish(c, vrfdomain.SubscriptionFundRequestedV1, vrfdomain.SubscriptionFundRequestedPayloadV1{
				SubscriptionID: subID,
				Amount:         amount,
			})
		},
	}
}
