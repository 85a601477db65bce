// Package leaderboard fetches a player's live height from the Deep Dip 2
// tracker API.
//
// Lookup is two requests: the global leaderboard resolves the player name
// (case-insensitive) to a wsid and personal best, then live_heights/{wsid}
// returns the newest points. Callers turn any error into a null sample.
package leaderboard
