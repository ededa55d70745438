// Package chatsync owns session and message state for the chat client and
// keeps it consistent with the backend despite asynchronous processing.
//
// The package composes four pieces behind a single facade (Client):
//
//   - the auth gate: identity is resolved once at Init; absence of identity
//     is the authoritative logged-out state and suppresses all network
//     activity until re-initialization
//   - the session directory: the ordered session list and the active
//     selection, with server-determined ordering preserved
//   - the message cache: the message sequence of the active session,
//     replaced wholesale on each completed fetch, with stale in-flight
//     results discarded by commit-time tag comparison
//   - the attachment linking workflow: a bounded-retry reconciliation that
//     binds an uploaded document's vector store to the active session once
//     the backend has provisioned one
//
// Presentation code calls only the Client. State is mutated exclusively by
// the Client's command handlers and its scheduled refresh callback, so there
// are no uncoordinated writers to race.
package chatsync
