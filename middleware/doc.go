// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package middleware provides HTTP middleware and helper functions.

# Request Logging

Wrap handlers with request logging:

	mux.HandleFunc("GET /health", middleware.WithLogging(handler))

Logs completion with method, path, status and duration_ms, and records the
latency under the matched route pattern in the request duration histogram.
The wrapper passes websocket hijacking through.

# CORS Middleware

Enable cross-origin requests for frontend access:

	server := http.Server{
		Handler: middleware.CORS(mux),
	}

Allows methods GET, POST, PATCH, DELETE, OPTIONS with headers
Content-Type, Authorization, X-Host-ID, X-Participant-ID,
X-Participant-Token.

# JSON Helpers

Write JSON responses:

	middleware.JSONResponse(w, http.StatusOK, data)
	middleware.CodedErrorResponse(w, http.StatusConflict, "quota_exceeded", "message")

Parse and validate JSON request bodies against their validate tags:

	var req models.JoinRequest
	if err := middleware.DecodeAndValidate(w, r, &req); err != nil {
		middleware.CodedErrorResponse(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}

# Rate Limiting

RateLimiter keeps a token bucket per client, keyed by a salted hash of the
client IP:

	limiter := middleware.NewRateLimiter(30, 10, salt)
	limiter.TrustProxy = cfg.TrustProxy
	mux.HandleFunc("POST /join/{code}", limiter.Limit(handler))

Over-limit requests get 429 with a Retry-After header.

# Client IP Extraction

Get the client IP. Forwarding headers are only honoured when the server is
configured to sit behind a reverse proxy:

	ip := middleware.GetClientIP(r, cfg.TrustProxy)
*/
package middleware
