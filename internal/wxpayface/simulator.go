package wxpayface

import (
	"sync"
	"time"
)

// Method names recorded by the Simulator.
const (
	MethodInit         = "initWxpayface"
	MethodRawData      = "getWxpayfaceRawdata"
	MethodFaceCode     = "getWxpayfaceCode"
	MethodAuth         = "getWxpayAuth"
	MethodStartScanner = "startCodeScanner"
	MethodStopScanner  = "stopCodeScanner"
	MethodRelease      = "releaseWxpayface"
)

// Step scripts how the Simulator answers one capability.
type Step struct {
	// Response is delivered to the callback. A nil Response is delivered as nil.
	Response Response
	// Err is returned synchronously; the callback is not invoked.
	Err error
	// Silent accepts the request but never calls back.
	Silent bool
	// Repeat delivers Response this many extra times (scanner events).
	Repeat int
}

// Call is one recorded SDK invocation.
type Call struct {
	Method string
	Params map[string]string
}

// Simulator is a scripted, in-process SDK. Callbacks fire on their own
// goroutine after Delay, the same way the vendor SDK answers on its own thread.
type Simulator struct {
	Init     Step
	RawData  Step
	FaceCode Step
	Auth     Step
	Scanner  Step
	StopErr  error
	Delay    time.Duration

	mu       sync.Mutex
	calls    []Call
	inflight sync.WaitGroup
}

// NewSimulator returns a Simulator where every capability succeeds.
func NewSimulator() *Simulator {
	ok := func(extra map[string]string) Response {
		r := Response{KeyReturnCode: CodeSuccess, KeyReturnMsg: "ok"}
		for k, v := range extra {
			r[k] = v
		}
		return r
	}
	return &Simulator{
		Init:     Step{Response: ok(nil)},
		RawData:  Step{Response: ok(map[string]string{KeyRawData: "SIMULATED-RAWDATA"})},
		FaceCode: Step{Response: ok(map[string]string{KeyFaceCode: "SIMULATED-FACECODE", KeyOpenID: "SIMULATED-OPENID"})},
		Auth:     Step{Response: ok(nil)},
		Scanner:  Step{Response: ok(map[string]string{KeyCodeMsg: "134500000000000000", KeyErrCode: ""})},
	}
}

func (s *Simulator) InitWxpayface(cb Callback) error {
	return s.answer(MethodInit, nil, s.Init, cb)
}

func (s *Simulator) GetWxpayfaceRawdata(cb Callback) error {
	return s.answer(MethodRawData, nil, s.RawData, cb)
}

func (s *Simulator) GetWxpayfaceCode(params map[string]string, cb Callback) error {
	return s.answer(MethodFaceCode, params, s.FaceCode, cb)
}

func (s *Simulator) GetWxpayAuth(params map[string]string, cb Callback) error {
	return s.answer(MethodAuth, params, s.Auth, cb)
}

func (s *Simulator) StartCodeScanner(cb Callback) error {
	return s.answer(MethodStartScanner, nil, s.Scanner, cb)
}

func (s *Simulator) StopCodeScanner() error {
	s.record(MethodStopScanner, nil)
	return s.StopErr
}

func (s *Simulator) ReleaseWxpayface() error {
	s.record(MethodRelease, nil)
	return nil
}

// Calls returns every recorded invocation in order.
func (s *Simulator) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Call, len(s.calls))
	copy(out, s.calls)
	return out
}

// Count returns how many times method was invoked.
func (s *Simulator) Count(method string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.calls {
		if c.Method == method {
			n++
		}
	}
	return n
}

// LastParams returns the parameters of the most recent call to method.
func (s *Simulator) LastParams(method string) map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.calls) - 1; i >= 0; i-- {
		if s.calls[i].Method == method {
			return s.calls[i].Params
		}
	}
	return nil
}

// Drain blocks until every scheduled callback has fired.
func (s *Simulator) Drain() {
	s.inflight.Wait()
}

func (s *Simulator) record(method string, params map[string]string) {
	var cp map[string]string
	if params != nil {
		cp = make(map[string]string, len(params))
		for k, v := range params {
			cp[k] = v
		}
	}
	s.mu.Lock()
	s.calls = append(s.calls, Call{Method: method, Params: cp})
	s.mu.Unlock()
}

func (s *Simulator) answer(method string, params map[string]string, step Step, cb Callback) error {
	s.record(method, params)
	if step.Err != nil {
		return step.Err
	}
	if step.Silent || cb == nil {
		return nil
	}
	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		if s.Delay > 0 {
			time.Sleep(s.Delay)
		}
		for i := 0; i <= step.Repeat; i++ {
			cb(step.Response.Clone())
		}
	}()
	return nil
}
