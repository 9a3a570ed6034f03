// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Vysus Group

// Package auth implements the session and password-reset lifecycle for the
// training portal.
//
// # Domain Types
//
// Domain types (Account, Session, ResetToken) should be created using their
// respective constructors:
//   - NewAccount - creates an Account with a normalized email and password digest
//   - NewSession - creates a Session with a validated owner and expiry
//   - NewResetToken - creates a ResetToken with a validated owner and expiry
//
// Direct struct initialization bypasses validation and may create invalid
// state. Repository implementations receive pre-validated types from these
// constructors.
//
// # Service
//
// Service composes the repositories, the password hasher, and the reset
// mailer into the register / login / logout / forgot-password /
// reset-password / resolve-session operations. It is constructed with
// NewService, which validates its dependencies.
//
// Session tokens and reset tokens are minted from the same source
// (MintToken) but live in separate stores and are never checked against
// each other's namespace.
package auth
