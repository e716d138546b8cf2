package facepay

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/parsec/wechat-face-payment/facepay/models"
	"github.com/parsec/wechat-face-payment/internal/amount"
	"github.com/parsec/wechat-face-payment/internal/orderref"
	"github.com/parsec/wechat-face-payment/internal/wxpayface"
	"golang.org/x/exp/slog"
)

// State is a step of the SDK call pipelines.
type State int

const (
	StateIdle State = iota
	StateInitializing
	StateAwaitingRawData
	StateAwaitingAuth
	StateAwaitingFaceCode
	StateScannerStarting
	StateAwaitingWxpayAuth
	StateTerminal
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateInitializing:
		return "Initializing"
	case StateAwaitingRawData:
		return "AwaitingRawData"
	case StateAwaitingAuth:
		return "AwaitingAuth"
	case StateAwaitingFaceCode:
		return "AwaitingFaceCode"
	case StateScannerStarting:
		return "ScannerStarting"
	case StateAwaitingWxpayAuth:
		return "AwaitingWxpayAuth"
	case StateTerminal:
		return "Terminal"
	case StateFailed:
		return "Failed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// AuthInfoExchanger trades SDK raw data for an authinfo token.
type AuthInfoExchanger interface {
	GetAuthInfo(ctx context.Context, raw []byte) (string, error)
}

// Sequencer drives the SDK through its fixed call order.
type Sequencer struct {
	sdk             wxpayface.SDK
	auth            AuthInfoExchanger
	logger          *slog.Logger
	callbackTimeout time.Duration
	orderRefWindow  time.Duration

	// Now returns the clock used for order references.
	Now func() time.Time
	// OnTransition, if set, observes every state change of every run.
	OnTransition func(pipeline string, from, to State)
}

func NewSequencer(sdk wxpayface.SDK, auth AuthInfoExchanger, logger *slog.Logger, cfg *Config) *Sequencer {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	window := cfg.OrderRefWindow
	if window <= 0 {
		window = orderref.DefaultWindow
	}
	return &Sequencer{
		sdk:             sdk,
		auth:            auth,
		logger:          logger.With(slog.String("component", "sequencer")),
		callbackTimeout: cfg.CallbackTimeout,
		orderRefWindow:  window,
		Now:             time.Now,
	}
}

type tracker struct {
	seq      *Sequencer
	pipeline string
	state    State
	logger   *slog.Logger
}

func (s *Sequencer) track(pipeline string, logger *slog.Logger) *tracker {
	return &tracker{seq: s, pipeline: pipeline, state: StateIdle, logger: logger}
}

func (t *tracker) to(next State) {
	prev := t.state
	t.state = next
	t.logger.Debug("transition", slog.String("from", prev.String()), slog.String("to", next.String()))
	if t.seq.OnTransition != nil {
		t.seq.OnTransition(t.pipeline, prev, next)
	}
}

// await hands a callback to call and blocks for its first invocation.
// Later invocations are ignored.
func (s *Sequencer) await(ctx context.Context, call func(wxpayface.Callback) error) (wxpayface.Response, error) {
	if s.callbackTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.callbackTimeout)
		defer cancel()
	}

	ch := make(chan wxpayface.Response, 1)
	var once sync.Once
	err := call(func(info wxpayface.Response) {
		once.Do(func() { ch <- info })
	})
	if err != nil {
		return nil, fmt.Errorf("sdk rejected request: %w", err)
	}

	select {
	case info := <-ch:
		return info, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("waiting for sdk callback: %w", ctx.Err())
	}
}

// step awaits a callback and classifies it.
func (s *Sequencer) step(ctx context.Context, call func(wxpayface.Callback) error) (wxpayface.Response, error) {
	info, err := s.await(ctx, call)
	if err != nil {
		return nil, err
	}
	if err := Classify(info); err != nil {
		return nil, err
	}
	return info, nil
}

// authorize runs init, raw data and the authinfo exchange.
// On error it returns the stage that failed.
func (s *Sequencer) authorize(ctx context.Context, tr *tracker) (string, models.Stage, error) {
	tr.to(StateInitializing)
	if _, err := s.step(ctx, s.sdk.InitWxpayface); err != nil {
		return "", models.StageInit, fmt.Errorf("init sdk: %w", err)
	}
	tr.logger.Debug("sdk initialized")

	tr.to(StateAwaitingRawData)
	info, err := s.step(ctx, s.sdk.GetWxpayfaceRawdata)
	if err != nil {
		return "", models.StageRawData, fmt.Errorf("get rawdata: %w", err)
	}
	raw, _ := info.Get(wxpayface.KeyRawData)
	if raw == "" {
		return "", models.StageRawData, fmt.Errorf("get rawdata: %w", &models.SdkFailure{
			ErrCode: models.CodeRawDataMissing,
			Message: "rawdata missing from reply",
			Payload: info.Clone(),
		})
	}

	tr.to(StateAwaitingAuth)
	token, err := s.auth.GetAuthInfo(ctx, []byte(raw))
	if err != nil {
		return "", models.StageAuthInfo, fmt.Errorf("exchange rawdata: %w", err)
	}
	tr.logger.Debug("authinfo received")
	return token, "", nil
}

// FaceCodeParams builds the parameter set for GetWxpayfaceCode.
func FaceCodeParams(session *models.PaymentSession, orderRef, authInfo string) map[string]string {
	params := map[string]string{
		wxpayface.ParamFaceAuthType: session.AuthType,
		wxpayface.ParamAppID:        session.AppID,
		wxpayface.ParamMchID:        session.MerchantID,
		wxpayface.ParamStoreID:      session.StoreID,
		wxpayface.ParamOutTradeNo:   orderRef,
		wxpayface.ParamTotalFee:     amount.FormatMinorUnits(session.AmountMinorUnits),
		wxpayface.ParamTelephone:    session.Phone,
		wxpayface.ParamAuthInfo:     authInfo,
	}
	if session.OpenID != "" {
		params[wxpayface.ParamOpenID] = session.OpenID
	}
	if session.SubAppID != "" {
		params[wxpayface.ParamSubAppID] = session.SubAppID
	}
	if session.SubMerchantID != "" {
		params[wxpayface.ParamSubMchID] = session.SubMerchantID
	}
	return params
}

// RunFacePay drives one face payment to a terminal outcome. It never
// returns without an outcome; failures before the face-code reply produce
// an OutcomeFailed naming the stage.
func (s *Sequencer) RunFacePay(ctx context.Context, session *models.PaymentSession) models.Outcome {
	logger := s.logger.With(slog.String("pipeline", "face_pay"), slog.String("session_id", session.ID))
	tr := s.track("face_pay", logger)

	out := models.Outcome{SessionID: session.ID}
	finish := func(o models.Outcome) models.Outcome {
		o.CompletedAt = s.Now().UTC()
		return o
	}

	token, stage, err := s.authorize(ctx, tr)
	if err != nil {
		tr.to(StateFailed)
		logger.Error("face pay aborted", slog.String("stage", string(stage)), slog.Any("err", err))
		return finish(failedOutcome(out, stage, err))
	}

	out.OrderRef = orderref.NewWithWindow(s.Now(), s.orderRefWindow)
	params := FaceCodeParams(session, out.OrderRef, token)

	tr.to(StateAwaitingFaceCode)
	info, err := s.await(ctx, func(cb wxpayface.Callback) error {
		return s.sdk.GetWxpayfaceCode(params, cb)
	})
	if err != nil {
		tr.to(StateFailed)
		logger.Error("face pay aborted", slog.String("stage", string(models.StageFaceCode)), slog.Any("err", err))
		return finish(failedOutcome(out, models.StageFaceCode, err))
	}

	tr.to(StateTerminal)
	out = faceCodeOutcome(out, info)
	logger.Info("face pay finished",
		slog.String("status", string(out.Status)),
		slog.String("order_ref", out.OrderRef),
		slog.String("amount", amount.Major(session.AmountMinorUnits)),
		slog.String("code", out.Code),
		slog.String("msg", out.Message),
	)
	return finish(out)
}

func failedOutcome(out models.Outcome, stage models.Stage, err error) models.Outcome {
	out.Status = models.OutcomeFailed
	out.Stage = stage
	out.Error = err.Error()
	var failure *models.SdkFailure
	if errors.As(err, &failure) {
		out.Code = failure.Code
		if out.Code == "" {
			out.Code = failure.ErrCode
		}
		out.Message = failure.Message
		out.Payload = failure.Payload
	}
	return out
}

// faceCodeOutcome maps the face-code reply onto a terminal status.
func faceCodeOutcome(out models.Outcome, info wxpayface.Response) models.Outcome {
	out.Stage = models.StageFaceCode
	if info == nil {
		out.Status = models.OutcomeUnrecognized
		out.Message = "empty sdk response"
		return out
	}
	out.Code, _ = info.Get(wxpayface.KeyReturnCode)
	out.Message, _ = info.Get(wxpayface.KeyReturnMsg)
	out.Payload = info.Clone()
	switch out.Code {
	case wxpayface.CodeSuccess:
		out.Status = models.OutcomePaymentSuccess
	case wxpayface.CodeUserCancel:
		out.Status = models.OutcomeUserCancelled
	case wxpayface.CodeScanPayment:
		out.Status = models.OutcomeRedirectedToScanPay
	case wxpayface.CodeError:
		out.Status = models.OutcomeSdkError
	default:
		out.Status = models.OutcomeUnrecognized
	}
	return out
}

// RunScanPay initializes the SDK, opens the code scanner and returns the
// first scan event. The scanner is stopped exactly once whenever it was
// started, whatever the event.
func (s *Sequencer) RunScanPay(ctx context.Context) (wxpayface.Response, error) {
	logger := s.logger.With(slog.String("pipeline", "scan_pay"))
	tr := s.track("scan_pay", logger)

	tr.to(StateInitializing)
	if _, err := s.step(ctx, s.sdk.InitWxpayface); err != nil {
		tr.to(StateFailed)
		logger.Error("scan pay aborted", slog.String("stage", string(models.StageInit)), slog.Any("err", err))
		return nil, fmt.Errorf("init sdk: %w", err)
	}

	tr.to(StateScannerStarting)
	info, err := s.await(ctx, s.sdk.StartCodeScanner)
	s.stopScanner(logger)
	if err != nil {
		tr.to(StateFailed)
		logger.Error("scan pay aborted", slog.Any("err", err))
		return nil, fmt.Errorf("code scanner: %w", err)
	}
	if err := Classify(info); err != nil {
		tr.to(StateFailed)
		logger.Warn("scan failed", slog.Any("err", err))
		return nil, err
	}

	tr.to(StateTerminal)
	codeMsg, _ := info.Get(wxpayface.KeyCodeMsg)
	logger.Info("scan finished", slog.Int("code_len", len(codeMsg)))
	return info, nil
}

func (s *Sequencer) stopScanner(logger *slog.Logger) {
	if err := s.sdk.StopCodeScanner(); err != nil {
		logger.Warn("stop code scanner", slog.Any("err", err))
	}
}

// RunWxpayAuth asks the user to authorize release of real-name information
// for the identity behind faceSID.
func (s *Sequencer) RunWxpayAuth(ctx context.Context, faceSID string) (wxpayface.Response, error) {
	logger := s.logger.With(slog.String("pipeline", "wxpay_auth"))
	tr := s.track("wxpay_auth", logger)

	token, stage, err := s.authorize(ctx, tr)
	if err != nil {
		tr.to(StateFailed)
		logger.Error("wxpay auth aborted", slog.String("stage", string(stage)), slog.Any("err", err))
		return nil, err
	}

	params := map[string]string{
		wxpayface.ParamAuthInfo: token,
		wxpayface.ParamFaceSID:  faceSID,
	}
	tr.to(StateAwaitingWxpayAuth)
	info, err := s.step(ctx, func(cb wxpayface.Callback) error {
		return s.sdk.GetWxpayAuth(params, cb)
	})
	if err != nil {
		tr.to(StateFailed)
		logger.Warn("wxpay auth failed", slog.Any("err", err))
		return nil, fmt.Errorf("wxpay auth: %w", err)
	}

	tr.to(StateTerminal)
	logger.Info("wxpay auth finished")
	return info, nil
}
