package glide

import "time"

// ClientConfiguration is the top-level option struct passed to NewClient,
// matching §6's option table. It plays the role the teacher's Opts struct
// played for a single Tarantool connection, generalized to a set of
// seed addresses plus cluster/standalone mode selection.
type ClientConfiguration struct {
	// Addresses lists one or more "host:port" seeds. Only the first is
	// used: in standalone mode it is the server, in cluster mode it is the
	// seed that discovers the rest via CLUSTER SLOTS.
	Addresses []string
	// ClusterMode switches slot-aware routing on (§3).
	ClusterMode bool

	Username string
	Password string

	// DatabaseId selects a database via SELECT on handshake. Standalone
	// only (§6); ignored when ClusterMode is set, since cluster slots are
	// never partitioned by database id.
	DatabaseId *int

	// RequestTimeout bounds each individual command (§6); zero uses
	// defaultRequestTimeout.
	RequestTimeout time.Duration
	// ReadFrom selects the default read routing strategy; per-request
	// overrides are not modeled since the distilled spec scopes
	// read-routing to the client level only.
	ReadFrom ReadFromStrategy

	// ReconnectBaseInterval/ReconnectMaxInterval configure the backoff
	// schedule used on connection loss (§4.2).
	ReconnectBaseInterval time.Duration
	ReconnectMaxInterval  time.Duration

	// TopologyRefreshInterval is the scheduled cluster topology refresh
	// period (§4.4); ignored in standalone mode.
	TopologyRefreshInterval time.Duration

	// Protocol selects RESP2 or RESP3; zero attempts RESP3 and falls back.
	Protocol ServerProtocol

	TLS *SslOpts

	// ClientName is sent via HELLO/CLIENT SETNAME for server-side
	// observability.
	ClientName string

	// AllowOptimisticResubmit controls how a request that got a MOVED
	// reply is redirected: when false the redirected retry waits for a
	// topology refresh to complete; when true it is sent at once to the
	// MOVED address while the refresh runs in the background. Default
	// false; see §9 Open Questions.
	AllowOptimisticResubmit bool

	Logger Logger
}

func (c ClientConfiguration) withDefaults() ClientConfiguration {
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = defaultRequestTimeout
	}
	if c.ReconnectBaseInterval <= 0 {
		c.ReconnectBaseInterval = 100 * time.Millisecond
	}
	if c.ReconnectMaxInterval <= 0 {
		c.ReconnectMaxInterval = 8 * time.Second
	}
	if c.TopologyRefreshInterval <= 0 {
		c.TopologyRefreshInterval = defaultRefreshInterval
	}
	if c.Protocol == 0 {
		c.Protocol = RESP3
	}
	if c.Logger == nil {
		c.Logger = SimpleLogger{}
	}
	return c
}
