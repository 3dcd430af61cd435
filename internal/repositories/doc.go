// package repositories provides the SQLite persistence layer for the local
// play history recorded by the overlay.
package repositories
