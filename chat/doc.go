// Package chat connects the bot to Twitch IRC.
//
// Client joins the configured channels, turns every channel message into a
// command.Message for the dispatcher, and hands out per-channel senders that
// tracking sessions use for their reports. The connection is retried with
// backoff until the context ends or Twitch rejects the credentials.
//
// Twitch chat messages are single-line and length-limited, so outbound text
// is flattened (lines joined with " | ") and split into chunks before it is
// written.
package chat
