package protocol

// Status keywords the server answers with.
const (
	StatusUsing        = "USING"
	StatusWatching     = "WATCHING"
	StatusNotIgnored   = "NOT_IGNORED"
	StatusInserted     = "INSERTED"
	StatusBuried       = "BURIED"
	StatusJobTooBig    = "JOB_TOO_BIG"
	StatusDraining     = "DRAINING"
	StatusExpectedCRLF = "EXPECTED_CRLF"
	StatusReserved     = "RESERVED"
	StatusDeadlineSoon = "DEADLINE_SOON"
	StatusTimedOut     = "TIMED_OUT"
	StatusFound        = "FOUND"
	StatusNotFound     = "NOT_FOUND"
	StatusDeleted      = "DELETED"
	StatusReleased     = "RELEASED"
	StatusTouched      = "TOUCHED"
	StatusKicked       = "KICKED"
	StatusPaused       = "PAUSED"
	StatusOK           = "OK"
)
