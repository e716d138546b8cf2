// Package wxpayface describes the capabilities of the vendor face-payment SDK.
//
// The real SDK is a closed native library that only exists inside its device host.
// Everything in this repository talks to it through the SDK interface so the
// Simulator (or any other implementation) can stand in for it.
package wxpayface

// Response is the key/value map every SDK callback delivers. A nil Response
// means the SDK invoked the callback without a payload.
type Response map[string]string

// Get returns the value for key and whether it was present.
func (r Response) Get(key string) (string, bool) {
	if r == nil {
		return "", false
	}
	v, ok := r[key]
	return v, ok
}

// Clone returns a copy of the response safe to hand to another goroutine.
func (r Response) Clone() Response {
	if r == nil {
		return nil
	}
	out := make(Response, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Callback receives an SDK response. Implementations may call it from any
// goroutine and, for the code scanner, more than once.
type Callback func(info Response)

// SDK is the set of vendor capabilities used by the bridge.
//
// Every method that takes a Callback returns as soon as the request has been
// handed to the SDK; the outcome is delivered through the callback. A non-nil
// error means the request was never accepted and the callback will not fire.
type SDK interface {
	InitWxpayface(cb Callback) error
	GetWxpayfaceRawdata(cb Callback) error
	GetWxpayfaceCode(params map[string]string, cb Callback) error
	GetWxpayAuth(params map[string]string, cb Callback) error
	StartCodeScanner(cb Callback) error
	StopCodeScanner() error
	ReleaseWxpayface() error
}
