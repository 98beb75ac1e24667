// Package config provides configuration parsing for eventreduce.
//
// The configuration is stored in eventreduce.yaml (or eventreduce.json) in
// the working directory or one of its parents. This package handles
// loading, saving, validating and applying configuration.
//
// # Configuration File Structure
//
//	engine:
//	  scheduler: immediate      # or "batched"
//	  equality: reference       # or "deep"
//	  maxFlushRounds: 100
//	  logLevel: info
//	  logFormat: text
//	devtools:
//	  host: localhost
//	  port: 7331
//	  pathPrefix: /_devtools
//	metrics:
//	  enabled: true
//	  namespace: eventreduce
//	tracing:
//	  enabled: false
//	  tracerName: github.com/vango-dev/eventreduce
//	archive:
//	  bucket: my-sessions
//	  prefix: devtools
//	  region: eu-west-1
//
// # Usage
//
//	cfg, err := config.LoadFromWorkingDir()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	restore, err := cfg.Apply(os.Stderr)
//	defer restore()
package config
