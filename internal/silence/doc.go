// Package silence classifies the silent passages of an audio track. The
// track decodes to mono PCM, collapses into a windowed RMS loudness profile
// in dBFS, and a pure scan extracts the maximal runs at or below the noise
// floor that last long enough to count as silence.
package silence
