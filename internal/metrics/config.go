package metrics

// Config contains the configuration for metric collection and optional
// InfluxDB push export. Field shape mirrors the teacher's own metrics
// config verbatim (see DESIGN.md) since it already named the InfluxDB
// push fields; New and RunInfluxPush (metrics.go) read the endpoint,
// token, bucket and tags.
type Config struct {
	Enabled  bool   `toml:",omitempty"`
	HTTP     string `toml:",omitempty"`
	Port     int    `toml:",omitempty"`

	EnableInfluxDB   bool   `toml:",omitempty"`
	InfluxDBEndpoint string `toml:",omitempty"`
	InfluxDBDatabase string `toml:",omitempty"`
	InfluxDBUsername string `toml:",omitempty"`
	InfluxDBPassword string `toml:",omitempty"`
	InfluxDBTags     string `toml:",omitempty"`

	EnableInfluxDBV2     bool   `toml:",omitempty"`
	InfluxDBToken        string `toml:",omitempty"`
	InfluxDBBucket       string `toml:",omitempty"`
	InfluxDBOrganization string `toml:",omitempty"`
}

// DefaultConfig is the default metrics configuration for VerSafe services.
var DefaultConfig = Config{
	Enabled: false,
	HTTP:    "127.0.0.1",
	Port:    6060,

	EnableInfluxDB:   false,
	InfluxDBEndpoint: "http://localhost:8086",
	InfluxDBDatabase: "versafe",
	InfluxDBTags:     "host=localhost",

	EnableInfluxDBV2:     false,
	InfluxDBBucket:       "versafe",
	InfluxDBOrganization: "versafe",
}
