// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

// Package metrics defines the Prometheus metrics of the service and serves
// them on /metrics. Outcome labels reuse the stable error codes the HTTP API
// returns, with "ok" for success.
package metrics
