package repository

import "errors"

// ErrNotFound is returned when a query for a single record finds no rows or an
// update/delete by id affects none. It hides sql.ErrNoRows from callers; the
// service layer translates it into the application-level not-found error.
var ErrNotFound = errors.New("repository: not found")
