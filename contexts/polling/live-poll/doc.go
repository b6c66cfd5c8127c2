// Package livepoll is the single-poll voting ledger: one poll record, one
// marker per voter and poll, and a vote notification for every accepted
// ballot.
package livepoll
