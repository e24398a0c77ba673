package mongostore

import (
	"errors"

	"go.mongodb.org/mongo-driver/mongo"

	"gigmarket/store"
)

const (
	codeIllegalOperation = 20
	codeWriteConflict    = 112
	codeDuplicateKey     = 11000
)

// Message the server returns when a session asks for a transaction on a
// standalone mongod.
const txnNumbersMsg = "Transaction numbers are only allowed on a replica set member or mongos"

// isDuplicateKeyError detects unique-index violations from inserts.
func isDuplicateKeyError(err error) bool {
	if err == nil {
		return false
	}
	var we mongo.WriteException
	if errors.As(err, &we) {
		for _, e := range we.WriteErrors {
			if e.Code == codeDuplicateKey {
				return true
			}
		}
	}
	return mongo.IsDuplicateKeyError(err)
}

// IsTransactionUnsupported matches the error signature of a transaction
// attempted against a deployment without multi-document isolation. Nothing
// else counts: other IllegalOperation errors are real failures.
func IsTransactionUnsupported(err error) bool {
	if err == nil {
		return false
	}
	var se mongo.ServerError
	if errors.As(err, &se) {
		return se.HasErrorCode(codeIllegalOperation) && se.HasErrorMessage(txnNumbersMsg)
	}
	return false
}

func isWriteConflict(err error) bool {
	var se mongo.ServerError
	if errors.As(err, &se) {
		return se.HasErrorCode(codeWriteConflict) || se.HasErrorLabel("TransientTransactionError")
	}
	return false
}

// translate maps driver errors onto the store sentinels. Errors that did not
// come from the driver are returned unchanged.
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return store.ErrNotFound
	case isDuplicateKeyError(err):
		return errors.Join(store.ErrDuplicate, err)
	case IsTransactionUnsupported(err):
		return errors.Join(store.ErrTxnUnsupported, err)
	case isWriteConflict(err):
		return errors.Join(store.ErrWriteConflict, err)
	default:
		return err
	}
}
