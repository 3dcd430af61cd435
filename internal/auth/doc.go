// package auth implements the Spotify credential and session lifecycle:
// interactive authorization-code acquisition through a short-lived local
// callback listener, token persistence, silent refresh, and an
// authenticated-call wrapper used by every API operation.
package auth
