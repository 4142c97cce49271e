package database

import "errors"

// ErrSchemaTooNew is returned by Migrate when the file was written by a
// newer build with more schema steps than this one knows.
var ErrSchemaTooNew = errors.New("database: schema version newer than supported")
