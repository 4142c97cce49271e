// Package journal stores a local history of door transitions, actuator
// pulses, and connectivity changes in SQLite.
//
// The journal is write-mostly. Entries are read back only by the status
// API and by operators; nothing in the controller consults them.
package journal
