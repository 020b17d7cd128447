package goGuard

import "context"

type requestContextKey struct{}
type gateResultContextKey struct{}

// WithRequest attaches the adapter's view of the request to ctx so handlers
// behind the gate can call Login or Authenticate without rebuilding it.
func WithRequest(ctx context.Context, req *Request) context.Context {
	return context.WithValue(ctx, requestContextKey{}, req)
}

// RequestFromContext returns the request stored by WithRequest.
func RequestFromContext(ctx context.Context) (*Request, bool) {
	if ctx == nil {
		return nil, false
	}
	req, ok := ctx.Value(requestContextKey{}).(*Request)
	return req, ok && req != nil
}

// WithGateResult records the gate outcome for downstream handlers.
func WithGateResult(ctx context.Context, res GateResult) context.Context {
	return context.WithValue(ctx, gateResultContextKey{}, res)
}

// GateResultFromContext returns the result stored by WithGateResult.
func GateResultFromContext(ctx context.Context) (GateResult, bool) {
	if ctx == nil {
		return GateResult{}, false
	}
	res, ok := ctx.Value(gateResultContextKey{}).(GateResult)
	return res, ok
}
