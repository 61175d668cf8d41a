// Package cmd implements the command-line interface for yoteibot.
//
// This package provides the following commands:
//   - serve: Start the LINE webhook server with the Google OAuth callback
//   - version: Display version information
//
// The serve command is the default command when no subcommand is specified.
package cmd
