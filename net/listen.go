package net

import (
	"context"
	gonet "net"

	"github.com/pkg/errors"
)

// Listen opens a TCP listener on address. On unix systems the socket is
// marked SO_REUSEADDR so a restarted server can bind while old connections
// linger in TIME_WAIT.
func Listen(ctx context.Context, address string) (gonet.Listener, error) {
	lc := gonet.ListenConfig{Control: reuseAddr}
	l, err := lc.Listen(ctx, "tcp", address)
	if err != nil {
		return nil, errors.Wrapf(err, "listening on %s", address)
	}
	return l, nil
}
