// Package xtream implements a client for the Xtream Codes IPTV API
// convention: listing endpoints under /player_api.php selected by an
// action query parameter, an XMLTV guide endpoint, and path-encoded
// credential playback URLs.
//
// The client is transport-agnostic: inject a retrying *http.Client for
// transient-failure handling. Failures are classified into a small
// taxonomy (ErrAuthenticationFailed, ErrProviderUnreachable,
// ErrInvalidResponse) that callers use to decide between aborting a run
// and continuing.
package xtream
