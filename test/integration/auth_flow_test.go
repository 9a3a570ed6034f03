// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Vysus Group

//go:build integration

package integration

import (
	"context"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/vysusgroup/training-portal/internal/auth"
)

var _ = Describe("Registration", func() {
	ctx := context.Background()

	BeforeEach(func() {
		wipeAuthTables(ctx, env.pool)
	})

	It("creates an account for a company email", func() {
		account, err := env.Service.Register(ctx, "Alice@VysusGroup.com", "GoodPass123", nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(account.Email).To(Equal("alice@vysusgroup.com"))
		Expect(account.IsActive).To(BeTrue())

		stored, err := env.Accounts.GetByEmail(ctx, "alice@vysusgroup.com")
		Expect(err).NotTo(HaveOccurred())
		Expect(stored.ID).To(Equal(account.ID))
	})

	It("rejects an outside email before touching the database", func() {
		_, err := env.Service.Register(ctx, "mallory@example.com", "GoodPass123", nil)
		Expect(err).To(MatchError(ContainSubstring("only @vysusgroup.com emails are allowed")))
	})

	It("rejects a duplicate email under direct insert too", func() {
		_, err := env.Service.Register(ctx, "alice@vysusgroup.com", "GoodPass123", nil)
		Expect(err).NotTo(HaveOccurred())

		_, err = env.Service.Register(ctx, "alice@vysusgroup.com", "OtherPass123", nil)
		Expect(err).To(HaveOccurred())
		Expect(err.Error()).To(ContainSubstring("already exists"))
	})

	It("is backstopped by the database domain CHECK", func() {
		// Bypass the service entirely; the schema itself must refuse.
		_, err := env.pool.Exec(ctx, `
			INSERT INTO accounts (id, email, password_digest, is_active, created_at, updated_at)
			VALUES ('01JXXXXXXXXXXXXXXXXXXXXXXX', 'mallory@example.com', 'digest', TRUE, now(), now())
		`)
		Expect(err).To(HaveOccurred())
		Expect(err.Error()).To(ContainSubstring("accounts_email_domain"))
	})
})

var _ = Describe("Login and sessions", func() {
	ctx := context.Background()

	BeforeEach(func() {
		wipeAuthTables(ctx, env.pool)
		_, err := env.Service.Register(ctx, "alice@vysusgroup.com", "GoodPass123", nil)
		Expect(err).NotTo(HaveOccurred())
	})

	It("logs in, resolves, and logs out", func() {
		account, session, err := env.Service.Login(ctx, "alice@vysusgroup.com", "GoodPass123", "203.0.113.9", "test-agent")
		Expect(err).NotTo(HaveOccurred())
		Expect(session.Token).To(HaveLen(43))

		resolved, err := env.Service.ResolveSession(ctx, session.Token)
		Expect(err).NotTo(HaveOccurred())
		Expect(resolved.ID).To(Equal(account.ID))

		Expect(env.Service.Logout(ctx, session.Token)).To(Succeed())

		_, err = env.Service.ResolveSession(ctx, session.Token)
		Expect(err).To(MatchError(auth.ErrNotFound))
	})

	It("returns the same error for a wrong password and an unknown email", func() {
		_, _, wrongErr := env.Service.Login(ctx, "alice@vysusgroup.com", "WrongPass123", "", "")
		_, _, unknownErr := env.Service.Login(ctx, "ghost@vysusgroup.com", "WrongPass123", "", "")

		Expect(wrongErr).To(HaveOccurred())
		Expect(unknownErr).To(HaveOccurred())
		Expect(wrongErr.Error()).To(Equal(unknownErr.Error()))
	})

	It("supports concurrent sessions per account", func() {
		_, first, err := env.Service.Login(ctx, "alice@vysusgroup.com", "GoodPass123", "", "")
		Expect(err).NotTo(HaveOccurred())
		_, second, err := env.Service.Login(ctx, "alice@vysusgroup.com", "GoodPass123", "", "")
		Expect(err).NotTo(HaveOccurred())
		Expect(first.Token).NotTo(Equal(second.Token))

		Expect(env.Service.Logout(ctx, first.Token)).To(Succeed())

		_, err = env.Service.ResolveSession(ctx, second.Token)
		Expect(err).NotTo(HaveOccurred(), "logging out one session must not touch the other")
	})
})

var _ = Describe("Password reset", func() {
	ctx := context.Background()

	BeforeEach(func() {
		wipeAuthTables(ctx, env.pool)
		_, err := env.Service.Register(ctx, "alice@vysusgroup.com", "GoodPass123", nil)
		Expect(err).NotTo(HaveOccurred())
	})

	It("resets the password, consumes the token, and wipes sessions", func() {
		_, session, err := env.Service.Login(ctx, "alice@vysusgroup.com", "GoodPass123", "", "")
		Expect(err).NotTo(HaveOccurred())

		Expect(env.Service.ForgotPassword(ctx, "alice@vysusgroup.com")).To(Succeed())
		token := env.mailer.lastToken("alice@vysusgroup.com")
		Expect(token).NotTo(BeEmpty())

		Expect(env.Service.ResetPassword(ctx, token, "NewGoodPass1")).To(Succeed())

		By("invalidating existing sessions")
		_, err = env.Service.ResolveSession(ctx, session.Token)
		Expect(err).To(MatchError(auth.ErrNotFound))

		By("accepting only the new password")
		_, _, err = env.Service.Login(ctx, "alice@vysusgroup.com", "GoodPass123", "", "")
		Expect(err).To(HaveOccurred())
		_, _, err = env.Service.Login(ctx, "alice@vysusgroup.com", "NewGoodPass1", "", "")
		Expect(err).NotTo(HaveOccurred())

		By("refusing the consumed token")
		Expect(env.Service.ResetPassword(ctx, token, "AnotherPass1")).To(
			MatchError(ContainSubstring("invalid or expired reset token")))
	})

	It("retires earlier tokens when a new one is requested", func() {
		Expect(env.Service.ForgotPassword(ctx, "alice@vysusgroup.com")).To(Succeed())
		first := env.mailer.lastToken("alice@vysusgroup.com")

		Expect(env.Service.ForgotPassword(ctx, "alice@vysusgroup.com")).To(Succeed())
		second := env.mailer.lastToken("alice@vysusgroup.com")
		Expect(second).NotTo(Equal(first))

		Expect(env.Service.ResetPassword(ctx, first, "NewGoodPass1")).To(HaveOccurred())
		Expect(env.Service.ResetPassword(ctx, second, "NewGoodPass1")).To(Succeed())
	})

	It("acknowledges unknown emails without minting a token", func() {
		Expect(env.Service.ForgotPassword(ctx, "ghost@vysusgroup.com")).To(Succeed())
		Expect(env.mailer.lastToken("ghost@vysusgroup.com")).To(BeEmpty())

		var count int
		Expect(env.pool.QueryRow(ctx, "SELECT count(*) FROM reset_tokens").Scan(&count)).To(Succeed())
		Expect(count).To(BeZero())
	})

	It("cascades token and session deletion when the account goes away", func() {
		_, session, err := env.Service.Login(ctx, "alice@vysusgroup.com", "GoodPass123", "", "")
		Expect(err).NotTo(HaveOccurred())
		Expect(env.Service.ForgotPassword(ctx, "alice@vysusgroup.com")).To(Succeed())

		_, err = env.pool.Exec(ctx, "DELETE FROM accounts WHERE email = 'alice@vysusgroup.com'")
		Expect(err).NotTo(HaveOccurred())

		var count int
		Expect(env.pool.QueryRow(ctx, "SELECT count(*) FROM sessions WHERE token = $1", session.Token).Scan(&count)).To(Succeed())
		Expect(count).To(BeZero())
		Expect(env.pool.QueryRow(ctx, "SELECT count(*) FROM reset_tokens").Scan(&count)).To(Succeed())
		Expect(count).To(BeZero())
	})
})
