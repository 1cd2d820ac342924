package main

import (
	"errors"
	"fmt"

	"smarther2mqtt/internal/netatmo"

	"github.com/spf13/cobra"
)

var authorizeCmd = &cobra.Command{
	Use:   "authorize",
	Short: "Run the OAuth2 authorization flow and store a new token",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}

		ctx, stop := signalContext()
		defer stop()

		if err := a.authenticator().Authorize(ctx); err != nil {
			if errors.Is(err, netatmo.ErrAuthorizationAborted) {
				a.logger.Info("Authorization interrupted, exiting")
				return nil
			}
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Token stored in %s\n", a.cfg.Netatmo.TokenFile)
		return nil
	},
}

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Inspect or refresh the stored token",
}

var tokenShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the stored token status",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		token := a.store.Current()
		if token == nil {
			fmt.Fprintf(out, "No token stored in %s\n", a.cfg.Netatmo.TokenFile)
			return nil
		}

		fmt.Fprintf(out, "Token file:    %s\n", a.cfg.Netatmo.TokenFile)
		fmt.Fprintf(out, "Access token:  %s\n", mask(token.AccessToken))
		fmt.Fprintf(out, "Refresh token: %s\n", mask(token.RefreshToken))
		if expiresIn := token.ExpiresIn(); expiresIn > 0 {
			fmt.Fprintf(out, "Expires in:    %s (from issue)\n", expiresIn)
		}
		if scope := token.Extra("scope"); scope != nil {
			fmt.Fprintf(out, "Scope:         %s\n", scope)
		}
		return nil
	},
}

var tokenRefreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Exchange the stored refresh token for a new token pair",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}

		ctx, stop := signalContext()
		defer stop()

		if err := a.authenticator().Refresh(ctx); err != nil {
			return fmt.Errorf("failed to refresh token: %w", err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Token refreshed and stored in %s\n", a.cfg.Netatmo.TokenFile)
		return nil
	},
}

func init() {
	tokenCmd.AddCommand(tokenShowCmd)
	tokenCmd.AddCommand(tokenRefreshCmd)
}

// mask keeps only the first and last characters of a secret
func mask(secret string) string {
	if len(secret) <= 8 {
		return "****"
	}
	return secret[:4] + "..." + secret[len(secret)-4:]
}
