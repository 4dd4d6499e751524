// Package config loads and validates the Instar bridge configuration.
//
// Values are resolved in layers: built-in defaults, the YAML file, an
// optional .env file, then GRAYLOGIC_* environment variables. Credentials
// (MQTT password, InfluxDB token) belong in the environment rather than
// the YAML file.
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Instar.RootTopic)
package config
