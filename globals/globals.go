package globals

// Context keys
type ContextKey string

const (
	UserIDKey    ContextKey = "userId"
	UsernameKey  ContextKey = "username"
	RequestIDKey ContextKey = "requestId"
)

// TokenCookie is the cookie the web client keeps its access token in.
const TokenCookie = "token"
