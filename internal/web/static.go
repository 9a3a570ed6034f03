// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Vysus Group

package web

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// publicPages maps public page paths to the static files that render them.
var publicPages = map[string]string{
	"/login":           "login.html",
	"/register":        "register.html",
	"/reset-password":  "reset-password.html",
	"/forgot-password": "forgot-password.html",
}

// handleRoot sends authenticated clients to the portal landing page. The gate
// has already run; "/" itself is a protected path.
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/training-plan.html", http.StatusTemporaryRedirect)
}

// servePage returns a handler for one of the public HTML pages.
func (s *Server) servePage(file string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		path := filepath.Join(s.staticDir, file)
		info, err := os.Stat(path)
		if err != nil || info.IsDir() {
			writeJSON(w, http.StatusNotFound, errorResponse{Detail: "Page not found"})
			return
		}
		http.ServeFile(w, r, path)
	}
}

// handleStatic serves protected static files. The gate has already required a
// session for these paths.
func (s *Server) handleStatic(w http.ResponseWriter, r *http.Request) {
	rel := strings.TrimPrefix(r.URL.Path, "/")

	// Reject traversal before touching the filesystem.
	if strings.Contains(rel, "..") {
		writeJSON(w, http.StatusBadRequest, errorResponse{Detail: "Invalid path"})
		return
	}

	path := filepath.Join(s.staticDir, rel)
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		writeJSON(w, http.StatusNotFound, errorResponse{Detail: "File not found"})
		return
	}

	http.ServeFile(w, r, path)
}
