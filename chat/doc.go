// Package chat keeps the viewer's chat identity connected.
//
// Manager owns the access token lifecycle: it reuses a persisted token when
// one exists, registers anonymously for a new one otherwise, and keeps at most
// one live socket. Replacing the socket always closes the previous one first and
// bumps a generation counter, so nothing a stale socket delivers can reach the
// current session.
//
// Server control messages change chat policy:
//   - ERROR_USER_DISABLED: the viewer is blocked; the flag is persisted under
//     store.KeyChatBlocked and later EnsureSession calls refuse to register.
//   - ERROR_NEEDS_REGISTRATION: the socket is dropped and the listener is asked
//     to re-register (unless a registration is already running).
//   - ERROR_MAX_CONNECTIONS_EXCEEDED: the socket is dropped and chat is disabled
//     for this session only.
//   - CONNECTED_USER_INFO: username and moderator flag are refreshed.
//
// Any other message kind is ignored.
package chat
