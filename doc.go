// Package flaresync holds the shared model for connecting creator social
// accounts (Instagram, TikTok, Twitter, YouTube, Twitch) and keeping their
// OAuth credentials encrypted at rest.
//
// Layout:
//   - social and social/providers/* implement the per-platform OAuth adapters,
//     signed state, PKCE helpers and the pending transaction store.
//   - connector drives the client-observable connect/callback/disconnect/sync
//     state machine for a platform and aggregates all platforms with an
//     Orchestrator.
//   - exchange is the server-side token exchange function. It is the only
//     component that holds provider client secrets.
//   - encryption and cryptox provide field level encryption. Only
//     <field>_encrypted / <field>_iv pairs are ever written to storage.
//   - repository, kv, config, logging and metrics are infrastructure.
//
// Sessions:
//   - Every backend call carries a bearer session token. SessionVerifier
//     resolves it to a Session server-side; a user id asserted by the client is
//     never trusted.
//
// Activity sinks:
//   - ActivitySink receives connect, disconnect and sync events. Sinks run
//     best-effort (errors are logged) so you can forward to a database or a
//     queue without blocking the flow.
package flaresync
