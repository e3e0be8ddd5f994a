// Package download wraps the yt-dlp command line tool for fetching media
// into the staging directory.
package download
