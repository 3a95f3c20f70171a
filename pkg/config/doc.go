// Package config loads the billing service configuration.
//
// Values are resolved in three layers: built-in defaults, an optional YAML
// file (--config or BILLRUN_CONFIG_FILE), then BILLRUN_* environment
// variables.
//
//	server:
//	  port: "8080"
//	billing:
//	  schedule: "0 0 1 * *"   # first of the month, UTC
//	  max_concurrency: 16
//	storage:
//	  type: postgres
//	  postgres_url: postgres://billrun@localhost/billrun?sslmode=disable
//	lock:
//	  url: redis://localhost:6379/0
//	gateway:
//	  type: http
//	  url: https://payments.example.com
//
// Environment examples:
//
//	BILLRUN_STORAGE_TYPE=sqlite
//	BILLRUN_SQLITE_PATH=/var/lib/billrun/billrun.db
//	BILLRUN_BILLING_SCHEDULE="*/5 * * * *"
//	BILLRUN_REDIS_URL=redis://localhost:6379
//	BILLRUN_GATEWAY_TYPE=simulated
//	BILLRUN_LOG_LEVEL=debug
//
// Watch follows the YAML file and hands each valid new version to a callback.
package config
