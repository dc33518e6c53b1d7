// Package manifest resolves a share-page URL into the pair of HLS media
// playlists (one video variant, one audio rendition) that the fetch stage
// downloads.
//
// Resolution scrapes the signed master playlist URL out of the share page,
// picks the variant matching the configured preferred bandwidth (falling back
// to the highest available), picks the default audio rendition, and expands
// every chunk into an absolute signed URL. The result is serialized onto the
// queue item so fetching can resume after a restart without re-scraping.
package manifest
