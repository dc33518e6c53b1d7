// Package mux combines the fetched elementary streams into one MP4 container
// after checking the tracks are not desynced beyond the configured tolerance.
package mux
