package ledger

import "fmt"

// TransferErrType enumerates the reasons a transfer can be rejected.
type TransferErrType uint32

const (
	// SequenceMismatch indicates that a transfer's sequence number is not
	// exactly one above the sender's last applied sequence. A smaller value is
	// a replay, a larger value a missing predecessor; both are rejected
	// identically.
	SequenceMismatch TransferErrType = iota
	// InsufficientBalance indicates that a transfer's amount exceeds the
	// sender's balance.
	InsufficientBalance
)

// TransferErr is returned by Ledger.Transfer when a transfer is rejected. A
// rejected transfer never mutates the ledger.
type TransferErr struct {
	errType TransferErrType
	sender  string
	detail  string
}

// NewTransferErr instantiates a TransferErr.
func NewTransferErr(errType TransferErrType, sender string, detail string) TransferErr {
	return TransferErr{
		errType: errType,
		sender:  sender,
		detail:  detail,
	}
}

// Error implements the error interface.
func (e TransferErr) Error() string {
	m := ""
	switch e.errType {
	case SequenceMismatch:
		m = "Sequence Mismatch"
	case InsufficientBalance:
		m = "Insufficient Balance"
	}

	return fmt.Sprintf("%s, %s, %s", m, e.sender, e.detail)
}

// IsTransferErr checks that an error is of type TransferErr and that its code
// matches the provided code.
func IsTransferErr(err error, t TransferErrType) bool {
	transferErr, ok := err.(TransferErr)
	return ok && transferErr.errType == t
}
