// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package cliparse handles command-line argument parsing and configuration.

# Configuration

ParseFlags returns a Config struct with all settings:

	cfg, err := cliparse.ParseFlags(os.Args[1:])

# Sources

Each setting is resolved from the first source that provides it:

 1. CLI flags
 2. environment variables (a .env file is loaded first when present)
 3. the YAML file passed with -c
 4. built-in defaults

# Environment Variables

	PORT                → -p               (default 3318)
	BACKEND_URL         → -b               (required)
	REQUEST_TIMEOUT     → -timeout         (default 30s)
	DATABASE_TYPE       → -t               (sqlite, postgres, redis; default sqlite)
	DATABASE_URL        → -d               (default dashboard.db or localhost:6379)
	POLL_INTERVAL       → -poll-interval   (default 2s)
	SLOW_THRESHOLD      → -slow-threshold  (default 60s)
	POLL_FAILURE_BUDGET → -poll-failures   (default 1)
	UNLOCK_PASSPHRASE   → -unlock-passphrase
	UNLOCK_SALT         → -unlock-salt
	DOWNLOAD_DIR        → -download-dir    (default .)

# Config File

	server:
	  port: 3318
	backend:
	  url: http://localhost:8000/api/v1
	  timeout: 30s
	  poll_interval: 2s
	  slow_threshold: 60s
	  poll_failure_budget: 1
	store:
	  type: sqlite
	  url: dashboard.db
	unlock:
	  salt: change-me
	download_dir: ./reports

The unlock pass-phrase is never read from the file.

# Validation

ParseFlags returns an error when:

  - no backend URL is configured
  - DATABASE_TYPE is postgres and DATABASE_URL is empty
  - DATABASE_TYPE is not sqlite, postgres or redis
  - UNLOCK_PASSPHRASE is set without UNLOCK_SALT
  - a numeric or duration value does not parse
*/
package cliparse
