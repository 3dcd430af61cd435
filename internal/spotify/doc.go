// package spotify is a thin client over the Spotify Web API player surface.
//
// Response types based on https://developer.spotify.com/documentation/web-api/reference/
//
// Every operation builds one request and runs it through the session's
// authenticated-call wrapper; token lifecycle concerns live entirely in the
// auth package.
package spotify
