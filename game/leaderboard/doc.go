// Package leaderboard records the best scores per level.
//
// Each level keeps its top MaxEntries winning runs, ordered by score and then
// by date. Two backends implement Store: FileStore writes one
// <level>_leaderboard.json per level through afero, and SQLStore keeps a
// single table in SQLite or PostgreSQL. Open selects one from a DSN.
package leaderboard
