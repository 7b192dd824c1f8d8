package glide

// SslOpts configures TLS transport to a server node. The shape is carried
// unchanged from the teacher's own SslOpts (same four fields, same
// go-openssl backing in ssl.go); only the consumer (RESP dial instead of
// IPROTO dial) differs.
type SslOpts struct {
	// KeyFile is a path to a private SSL key file.
	KeyFile string
	// CertFile is a path to an SSL certificate file.
	CertFile string
	// CaFile is a path to a trusted certificate authorities (CA) file.
	CaFile string
	// Ciphers is a colon-separated list of SSL cipher suites the
	// connection can use.
	Ciphers string
}
