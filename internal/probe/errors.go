package probe

import "fmt"

// ConfigError reports an invalid configuration, detected before any stage
// runs.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid configuration: %s %s", e.Field, e.Reason)
}

// ConnectError wraps a failure to establish the remote session.
type ConnectError struct {
	Err error
}

func (e *ConnectError) Error() string { return "connect: " + e.Err.Error() }
func (e *ConnectError) Unwrap() error { return e.Err }

// ChannelError wraps a transport failure during the echo stage. The channel
// state is undefined afterwards, so no partial echo result accompanies it.
type ChannelError struct {
	Op  string
	Err error
}

func (e *ChannelError) Error() string {
	return fmt.Sprintf("echo channel %s: %v", e.Op, e.Err)
}

func (e *ChannelError) Unwrap() error { return e.Err }

// Direction labels a speed-stage transfer direction.
type Direction int

const (
	DirectionUpload Direction = iota
	DirectionDownload
)

func (d Direction) String() string {
	if d == DirectionDownload {
		return "download"
	}
	return "upload"
}

// TransferError wraps an I/O failure during the speed stage. The whole
// stage fails; no partial byte counts are reported.
type TransferError struct {
	Direction Direction
	Err       error
}

func (e *TransferError) Error() string {
	return fmt.Sprintf("%s transfer: %v", e.Direction, e.Err)
}

func (e *TransferError) Unwrap() error { return e.Err }

// StageError tags any stage failure with the stage that produced it.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s stage: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }
