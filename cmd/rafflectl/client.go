package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/Black-And-White-Club/frolf-raffle/internal/eventbus"
	"github.com/urfave/cli/v2"
	"go.opentelemetry.io/otel/trace/noop"
)

type apiClient struct {
	base  string
	token string
	http  *http.Client
}

func newAPIClient(c *cli.Context) *apiClient {
	return &apiClient{
		base:  strings.TrimRight(c.String("api"), "/"),
		token: c.String("token"),
		http:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (a *apiClient) do(ctx context.Context, method, path string, body any, auth bool) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.base+path, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if auth {
		if a.token == "" {
			return nil, fmt.Errorf("%s %s needs an operator token (--token or RAFFLE_TOKEN)", method, path)
		}
		req.Header.Set("Authorization", "Bearer "+a.token)
	}
	return a.http.Do(req)
}

// printJSON pretty-prints the response body and fails on non-2xx statuses.
func (a *apiClient) printJSON(ctx context.Context, method, path string, body any, auth bool) error {
	resp, err := a.do(ctx, method, path, body, auth)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	var out bytes.Buffer
	if json.Indent(&out, data, "", "  ") != nil {
		out.Reset()
		out.Write(bytes.TrimSpace(data))
	}
	fmt.Println(out.String())

	if resp.StatusCode >= 300 {
		return fmt.Errorf("%s %s: %s", method, path, resp.Status)
	}
	return nil
}

func (a *apiClient) get(ctx context.Context, path string) ([]byte, error) {
	resp, err := a.do(ctx, http.MethodGet, path, nil, false)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GET %s: %s: %s", path, resp.Status, strings.TrimSpace(string(data)))
	}
	return data, nil
}

// publish sends one command on the event bus. Results arrive as events on the
// module's stream.
func publish(c *cli.Context, topic string, payload any) error {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	bus, err := eventbus.NewEventBus(c.Context, c.String("nats"), logger, "rafflectl", noop.NewTracerProvider().Tracer("rafflectl"))
	if err != nil {
		return err
	}
	defer bus.Close()

	if err := eventbus.PublishJSON(c.Context, bus, topic, payload); err != nil {
		return fmt.Errorf("failed to publish %s: %w", topic, err)
	}
	fmt.Printf("Published %s\n", topic)
	return nil
}
