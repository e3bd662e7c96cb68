package extractor

const (
	UserID        = "x-user-id"
	RoleID        = "x-role-id"
	Status        = "x-user-status"
	RequestID     = "x-request-id"
	XForwardedFor = "x-forwarded-for"
	Authorization = "Authorization"
)

// Identity states carried in the Status header.
const (
	StatusLoading   = "loading"
	StatusSignedOut = "signed-out"
	StatusSignedIn  = "signed-in"
)
