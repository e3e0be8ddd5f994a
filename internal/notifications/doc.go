// Package notifications delivers pipeline lifecycle events to a Discord
// webhook, with a noop fallback when no webhook is configured.
package notifications
