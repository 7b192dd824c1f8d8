//go:build go_valkeyglide_ssl_disable
// +build go_valkeyglide_ssl_disable

package glide

import (
	"errors"
	"net"
	"time"
)

func sslDialTimeout(network, address string, timeout time.Duration, opts SslOpts) (net.Conn, error) {
	return nil, errors.New("TLS support is disabled")
}

func sslCreateContext(opts SslOpts) (ctx interface{}, err error) {
	return nil, errors.New("TLS support is disabled")
}
