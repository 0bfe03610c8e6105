// Package services implements the authenticated Spotify Web API client.
//
// # Client
//
// [Client] performs every outbound call. For each logical call it:
//   - resolves an access token through an [Authenticator], refreshing first when the stored token is missing or expired
//   - sends Authorization: Bearer and Content-Type: application/json, merged over caller headers
//   - resolves with no value on 204, an empty body or a non-JSON body
//   - decodes JSON into the caller's type and validates it ([Validate]); a mismatch is a [shared.ValidationError]
//   - on a 401, forces one refresh and reissues the identical request exactly once
//   - surfaces every other non-2xx as a [shared.HTTPError]
//
// A cancelled context yields [shared.ErrAborted] and never triggers a refresh.
//
// # Tokens
//
// [TokenService] implements [Authenticator] over a [repositories.TokenStore] using golang.org/x/oauth2.
// Refreshes use HTTP Basic client authentication and are collapsed with singleflight.
// A refresh that fails leaves the stored tokens in place.
//
// # Batching
//
// [BatchedRequest] and [BatchedDo] chunk id lists to an endpoint's cap.
// Membership checks run [Sequential] with a fixed delay; bulk writes run [Concurrent].
//
// # Spotify
//
// [SpotifyService] maps Spotify endpoints to typed calls, including library checks and writes,
// follows, playlist edits and [AllPages] pagination.
package services
