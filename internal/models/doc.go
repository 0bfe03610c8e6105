// Package models defines the data carried between the client, the stores and the color workers.
//
// The package contains three groups of types:
//
// 1. Authentication state persisted in the key-value store
//   - [Credentials] : Spotify application id and secret
//   - [TokenPair] : access token, refresh token and expiry
//
// 2. Dominant color extraction
//   - [RGB] : an integer color triple
//   - [ColorRequest] / [ColorResponse] : worker message shapes
//   - [ColorState] : the {color, loading, error} snapshot handed to consumers
//
// 3. Spotify Web API response schemas
//
// Schema structs carry `validate` tags checked at the client boundary.
// A response that decodes but fails validation is reported as a [shared.ValidationError].
package models
