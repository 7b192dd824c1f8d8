//go:build !go_valkeyglide_ssl_disable
// +build !go_valkeyglide_ssl_disable

package glide

import (
	"errors"
	"net"
	"os"
	"time"

	"github.com/tarantool/go-openssl"
)

// sslDialTimeout opens a TLS connection to a server node. The TLS stack
// (go-openssl, split across this build-tag pair exactly as the teacher
// does it) is unchanged; the context is pinned to TLS 1.2 (both the
// minimum and the maximum protocol version), so a server that only
// offers another version cannot be reached.
func sslDialTimeout(network, address string, timeout time.Duration, opts SslOpts) (net.Conn, error) {
	ctx, err := sslCreateContext(opts)
	if err != nil {
		return nil, err
	}
	return openssl.DialTimeout(network, address, timeout, ctx.(*openssl.Ctx), 0)
}

// interface{} return type avoids a go-openssl import in builds tagged
// go_valkeyglide_ssl_disable.
func sslCreateContext(opts SslOpts) (ctx interface{}, err error) {
	var sslCtx *openssl.Ctx
	if sslCtx, err = openssl.NewCtxWithVersion(openssl.TLSv1_2); err != nil {
		return
	}
	ctx = sslCtx
	sslCtx.SetMaxProtoVersion(openssl.TLS1_2_VERSION)
	sslCtx.SetMinProtoVersion(openssl.TLS1_2_VERSION)

	if opts.CertFile != "" {
		if err = sslLoadCert(sslCtx, opts.CertFile); err != nil {
			return
		}
	}

	if opts.KeyFile != "" {
		if err = sslLoadKey(sslCtx, opts.KeyFile); err != nil {
			return
		}
	}

	if opts.CaFile != "" {
		if err = sslCtx.LoadVerifyLocations(opts.CaFile, ""); err != nil {
			return
		}
		verifyFlags := openssl.VerifyPeer | openssl.VerifyFailIfNoPeerCert
		sslCtx.SetVerify(verifyFlags, nil)
	}

	if opts.Ciphers != "" {
		sslCtx.SetCipherList(opts.Ciphers)
	}

	return
}

func sslLoadCert(ctx *openssl.Ctx, certFile string) (err error) {
	certBytes, err := os.ReadFile(certFile)
	if err != nil {
		return err
	}

	certs := openssl.SplitPEM(certBytes)
	if len(certs) == 0 {
		return errors.New("no PEM certificate found in " + certFile)
	}
	first, certs := certs[0], certs[1:]

	cert, err := openssl.LoadCertificateFromPEM(first)
	if err != nil {
		return err
	}
	if err = ctx.UseCertificate(cert); err != nil {
		return err
	}

	for _, pem := range certs {
		if cert, err = openssl.LoadCertificateFromPEM(pem); err != nil {
			return err
		}
		if err = ctx.AddChainCertificate(cert); err != nil {
			return err
		}
	}
	return nil
}

func sslLoadKey(ctx *openssl.Ctx, keyFile string) (err error) {
	keyBytes, err := os.ReadFile(keyFile)
	if err != nil {
		return err
	}

	key, err := openssl.LoadPrivateKeyFromPEM(keyBytes)
	if err != nil {
		return err
	}

	return ctx.UsePrivateKey(key)
}
