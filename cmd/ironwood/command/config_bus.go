package command

import (
	"fmt"
	"time"

	"github.com/ironwood-sim/ironwood/internal/messaging"
	"github.com/pixil98/go-errors"
)

const (
	defaultBusHost = "127.0.0.1"
	defaultBusPort = 4222
)

type BusConfig struct {
	Host           string `json:"host"`
	Port           int    `json:"port"`
	StartTimeout   string `json:"start_timeout"`
	RequestTimeout string `json:"request_timeout"`
}

func (c *BusConfig) validate() error {
	el := errors.NewErrorList()

	if c.StartTimeout != "" {
		_, err := time.ParseDuration(c.StartTimeout)
		if err != nil {
			el.Add(fmt.Errorf("parsing start_timeout: %w", err))
		}
	}

	if c.RequestTimeout != "" {
		_, err := time.ParseDuration(c.RequestTimeout)
		if err != nil {
			el.Add(fmt.Errorf("parsing request_timeout: %w", err))
		}
	}

	return el.Err()
}

func (c *BusConfig) buildNatsServer() (*messaging.NatsServer, error) {
	var opts []messaging.NatsServerOpt
	if c.StartTimeout != "" {
		d, err := time.ParseDuration(c.StartTimeout)
		if err != nil {
			return nil, fmt.Errorf("parsing start_timeout: %w", err)
		}
		opts = append(opts, messaging.WithStartTimeout(d))
	}
	if c.Host != "" {
		opts = append(opts, messaging.WithHost(c.Host))
	}
	if c.Port != 0 {
		opts = append(opts, messaging.WithPort(c.Port))
	}

	s, err := messaging.NewNatsServer(opts...)
	if err != nil {
		return nil, err
	}

	return s, nil
}

// dial connects a role worker to the bus hosted by the orchestrator.
func (c *BusConfig) dial() (*messaging.Bus, error) {
	host := c.Host
	if host == "" {
		host = defaultBusHost
	}
	port := c.Port
	if port == 0 {
		port = defaultBusPort
	}

	var opts []messaging.BusOpt
	if c.RequestTimeout != "" {
		d, err := time.ParseDuration(c.RequestTimeout)
		if err != nil {
			return nil, fmt.Errorf("parsing request_timeout: %w", err)
		}
		opts = append(opts, messaging.WithRequestTimeout(d))
	}

	return messaging.Dial(fmt.Sprintf("nats://%s:%d", host, port), opts...)
}
