// Package hub starts the optional external controller.
package hub

import (
	"context"
	"net"

	"github.com/ttdump/ttdump/config"
	"github.com/ttdump/ttdump/hub/route"
)

// Controller is a bound but not yet serving external controller.
type Controller struct {
	listener net.Listener
	secret   string
}

// Listen binds the external controller address of cfg. It returns nil when
// no controller is configured.
func Listen(cfg *config.Config) (*Controller, error) {
	if cfg.ExternalController == "" {
		return nil, nil
	}
	l, err := route.Listen(cfg.ExternalController)
	if err != nil {
		return nil, err
	}
	return &Controller{listener: l, secret: cfg.Secret}, nil
}

// Addr is the bound address.
func (c *Controller) Addr() net.Addr {
	return c.listener.Addr()
}

// Serve answers requests about src until ctx is done. A nil controller
// returns immediately.
func (c *Controller) Serve(ctx context.Context, src route.Source) error {
	if c == nil {
		return nil
	}
	return route.Serve(ctx, c.listener, c.secret, src)
}

// Close releases the address of a controller that never served.
func (c *Controller) Close() error {
	if c == nil {
		return nil
	}
	return c.listener.Close()
}
