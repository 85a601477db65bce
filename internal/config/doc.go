// Package config loads the dipwatch configuration file.
//
// JSON and YAML are both accepted; YAML is converted to JSON first so a single
// strict decoder (unknown fields rejected) serves both. After decoding,
// defaults are filled, secrets are overlaid from the environment (a .env file
// is honored), and the result is validated. Manager.Watch hot-reloads the file
// and publishes only valid, changed configs.
package config
