// package ui implements the terminal overlay: a compact now-playing view that
// polls playback on a ticker and maps transport commands onto key bindings.
package ui
