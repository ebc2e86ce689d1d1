package db

import "errors"

// Sentinel errors for database operations.
var (
	ErrKeyNotFound       = errors.New("db: key not found")
	ErrIndexExists       = errors.New("db: index already exists")
	ErrSearchUnavailable = errors.New("db: search module unavailable")
)

// Op constants map to Redis command names for error context.
const (
	OpCreateIndex = "FT.CREATE"
	OpIndexInfo   = "FT.INFO"
	OpIndexList   = "FT._LIST"
	OpSearch      = "FT.SEARCH"
	OpDel         = "DEL"
	OpHGetAll     = "HGETALL"
	OpHMGet       = "HMGET"
	OpHSet        = "HSET"
	OpScan        = "SCAN"
	OpGet         = "GET"
	OpSet         = "SET"
	OpIncrBy      = "INCRBY"
	OpExpire      = "EXPIRE"
)

// Error wraps an underlying error with the operation name for diagnostics.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string { return e.Op + ": " + e.Err.Error() }
func (e *Error) Unwrap() error { return e.Err }
