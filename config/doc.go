// Package config loads service configuration from a YAML file, an optional
// .env file and prefixed environment variables, in that order of precedence
// (later sources win).
//
//	var cfg app.Config
//	err := config.LoadConfig("eventfeed", &cfg)
//
// EVENTFEED_STORE_BATCH_SIZE=100 resolves to store.batch_size.
package config
