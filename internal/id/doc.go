// Package id generates the short identifiers used across reqsink: public
// collector uids (8 uppercase hex characters, collision-checked by the
// store at registration time) and internal connection ids.
package id
