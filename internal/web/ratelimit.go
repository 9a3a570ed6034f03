// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Vysus Group

package web

import (
	"net/http"

	"github.com/vysusgroup/training-portal/internal/auth"
	"github.com/vysusgroup/training-portal/internal/observability"
)

// rateLimit wraps a handler with a sliding-window limit keyed by the peer
// address of the socket (see remoteAddress). The 429 body is uniform across
// endpoints so the response never reveals which limit was hit.
func rateLimit(limiter *auth.Limiter, metrics *observability.Metrics, route string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !limiter.Allow(remoteAddress(r)) {
			if metrics != nil {
				metrics.RateLimited.WithLabelValues(route).Inc()
			}
			writeJSON(w, http.StatusTooManyRequests, errorResponse{
				Detail: "Too many requests. Please try again later.",
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}
