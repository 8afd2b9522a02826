package handler

type ContextKey string

var (
	RoleCtxKey         ContextKey = "role"
	SubCtxKey          ContextKey = "sub"
	MyInfoCtx          ContextKey = "myInfo"
	SwapRequestCtx     ContextKey = "swapRequest"
	CoverageRequestCtx ContextKey = "coverageRequest"
)
