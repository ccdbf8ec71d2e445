package config

// this holds the resolved configuration values from CLI
//
//nolint:lll // readablity
var (
	CacheURL          string // connection string for the replay cache (postgres url or sqlite file)
	NatsURL           string // URL of the NATS server
	WaitForServices   string // duration to wait for other services to be ready
	LogLevel          string // sets the log level (zap log level values)
	SQLLogLevel       string // sets the log level for sql subsystem
	LogFormat         string // text vs json
	LogFilter         string // zapfilter rules, empty means no filter
	EnableTelemetry   bool   // enable telemetry
	TelemetryEndpoint string // endpoint for telemetry (otlp grpc), stdout if empty
	Workers           int    // number of pipeline workers, 0 means number of CPUs
	FPS               int    // frames per second of the timeline
)
