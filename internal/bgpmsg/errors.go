// Package bgpmsg implements the tagged-union message codec: OPEN,
// UPDATE, NOTIFICATION, KEEPALIVE, and the two simulator-private
// messages TRUSTRATE and VOTING. Validation follows an RFC-4271-
// aligned (code, subcode) error taxonomy.
package bgpmsg

import "fmt"

// Code/Subcode pairs. The wire values for the first three bands are
// pinned by the notification sites in the original message codec
// (header/open/update errors are raised one below the textual
// error_code table's own numbering), not by that table's labels.
const (
	// Message Header Errors (code 0)
	CodeMessageHeader            = 0
	SubConnectionNotSynchronized = 1
	SubBadMessageLength          = 2
	SubBadMessageType            = 3

	// OPEN Errors (code 1)
	CodeOpen                    = 1
	SubUnsupportedVersion       = 1
	SubBadPeerAS                = 2
	SubBadBGPIdentifier         = 3
	SubUnsupportedOptionalParam = 4
	SubUnacceptableHoldTime     = 6

	// UPDATE Errors (code 2)
	CodeUpdate                   = 2
	SubMalformedAttributeList    = 1
	SubUnrecognizedWellKnownAttr = 2
	SubMissingWellKnownAttr      = 3
	SubAttributeFlagsError       = 4
	SubAttributeLengthError      = 5
	SubInvalidOriginAttr         = 6
	SubInvalidNextHopAttr        = 7
	SubOptionalAttributeError    = 8
	SubInvalidNetworkField       = 9
	SubInvalidNetworkFieldAlt    = 10
	SubMalformedASPath           = 11

	// HoldTimer Expired (code 4)
	CodeHoldTimerExpired = 4

	// FSM Error (code 5)
	CodeFSM = 5

	// Cease (code 6)
	CodeCease = 6

	// Simulator-private (code 3, unused by the header/open/update/
	// hold-timer/FSM/cease bands above)
	CodeSimPrivate       = 3
	SubIncompleteMessage = 1
	SubPrefixTooLong     = 2
)

// Error is the typed (code, subcode) error every decode/validation
// failure produces. The dispatcher converts it directly into a
// NOTIFICATION sent to the offending peer.
type Error struct {
	Code    uint8
	Subcode uint8
	Msg     string
}

func (e *Error) Error() string {
	return fmt.Sprintf("bgp error (%d,%d): %s", e.Code, e.Subcode, e.Msg)
}

func newErr(code, subcode uint8, msg string) *Error {
	return &Error{Code: code, Subcode: subcode, Msg: msg}
}

// Constructors, one per (code, subcode) pair the codec raises. The
// router feeds CodeOpen errors to the FSM as BGPOpenMsgErr and every
// other code as BGPHeaderErr.
func errConnectionNotSynchronized() *Error {
	return newErr(CodeMessageHeader, SubConnectionNotSynchronized, "marker is not all-ones")
}

func errBadMessageLength(msg string) *Error {
	return newErr(CodeMessageHeader, SubBadMessageLength, msg)
}

func errBadMessageType(msg string) *Error {
	return newErr(CodeMessageHeader, SubBadMessageType, msg)
}

func errUnsupportedVersion() *Error {
	return newErr(CodeOpen, SubUnsupportedVersion, "unsupported BGP version")
}

func errBadPeerAS(msg string) *Error {
	return newErr(CodeOpen, SubBadPeerAS, msg)
}

func errBadBGPIdentifier() *Error {
	return newErr(CodeOpen, SubBadBGPIdentifier, "BGP identifier is not a valid IPv4 address")
}

func errUnacceptableHoldTime() *Error {
	return newErr(CodeOpen, SubUnacceptableHoldTime, "hold time out of range (0,100]")
}

func errMalformedAttributeList(msg string) *Error {
	return newErr(CodeUpdate, SubMalformedAttributeList, msg)
}

func errInvalidNetworkField(msg string) *Error {
	return newErr(CodeSimPrivate, SubPrefixTooLong, msg)
}
