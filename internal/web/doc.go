// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Vysus Group

// Package web serves the portal HTTP surface: the JSON auth API, public
// pages, and session-gated static content.
package web
