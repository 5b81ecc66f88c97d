// Package update checks a generic release feed for a newer build, asks the
// user, and stages the verified artifact for installation on exit.
//
// Feed layout:
//
//	<feed_url>/<platform>/latest.yml        (win32)
//	<feed_url>/<platform>/latest-mac.yml    (darwin)
//	<feed_url>/<platform>/latest-linux.yml  (linux)
package update
