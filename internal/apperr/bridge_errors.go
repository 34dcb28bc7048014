package apperr

var (
	ErrUnknownIdentity = New(CodeUnauthenticated, "unknown app id or secret")
	ErrInvalidToken    = New(CodeUnauthenticated, "invalid or expired access token")
	ErrStaleTimestamp  = New(CodeUnauthenticated, "timestamp outside allowed skew")
	ErrBadSignature    = New(CodeUnauthenticated, "signature mismatch")

	ErrLoginTimeout   = New(CodeDeadlineExceeded, "qr login expired")
	ErrSessionOffline = New(CodeFailedPrecondition, "session is not online")
	ErrNoBoundAccount = New(CodeFailedPrecondition, "no account bound to app")

	ErrUnsupportedMessageType = New(CodeInvalidArgument, "unsupported message type")
	ErrUnsupportedSendType    = New(CodeInvalidArgument, "unsupported send type")
	ErrTextRequired           = New(CodeInvalidArgument, "text is required when type is text")
	ErrFileRequired           = New(CodeInvalidArgument, "file is required when type is not text")
	ErrPUIDNotFound           = New(CodeNotFound, "no contact matches the given puid")

	ErrForwardURLMissing = New(CodeFailedPrecondition, "no forward url configured")
	ErrForwardFailed     = New(CodeInternal, "forward delivery rejected")
)
