package middlewares

const (
	CtxRequestID = "request_id"
	CtxSubject   = "auth.subject"
	CtxRole      = "auth.role"
	CtxProvider  = "auth.provider"
)
