package core

const (
	ActionSend    = "send"
	ActionReceive = "receive"

	ResultOK     = "ok"
	ResultFail   = "fail"
	ResultReject = "reject"
)

// Event describes the outcome of one transfer, for history and logging.
type Event struct {
	Action string
	File   string
	Size   uint64
	Peer   string
	Result string
	Bytes  uint64
	Err    error
}

// ProgressFunc receives the number of payload bytes moved so far.
type ProgressFunc func(done, total uint64)

func emit(fn func(Event), e Event) {
	if fn != nil {
		fn(e)
	}
}

func (p ProgressFunc) report(done, total uint64) {
	if p != nil {
		p(done, total)
	}
}
