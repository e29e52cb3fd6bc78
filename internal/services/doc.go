// Package services holds the error taxonomy and context annotations shared by
// the session, portal, and download layers.
package services
