package facepay

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/parsec/wechat-face-payment/facepay/models"
	"github.com/parsec/wechat-face-payment/internal/amount"
	"github.com/parsec/wechat-face-payment/internal/wxpayface"
	"golang.org/x/exp/slog"
)

const (
	AckInitFacePay = "initFacePay SUCCESS"
	AckRelease     = "SUCCESS"
)

// ErrNoSession is returned by calls that need a face-pay session when none is live.
var ErrNoSession = errors.New("no face pay session")

// Argument names accepted by initFacePay, in validation order.
const (
	ArgAppID        = "appId"
	ArgMchID        = "mchId"
	ArgStoreID      = "storeId"
	ArgTelPhone     = "telPhone"
	ArgOpenID       = "openId"
	ArgOutTradeNo   = "outTradeNo"
	ArgTotalFee     = "totalFee"
	ArgFaceAuthType = "faceAuthType"
	ArgSubAppID     = "subAppId"
	ArgSubMchID     = "subMchId"
	ArgFaceSID      = "faceSid"
	ArgInfoType     = "infoType"
)

var requiredFacePayArgs = []string{
	ArgAppID, ArgMchID, ArgStoreID, ArgTelPhone, ArgOpenID, ArgOutTradeNo, ArgTotalFee, ArgFaceAuthType,
}

// UserInfoLookup resolves a face_sid into user information.
type UserInfoLookup interface {
	FaceUserInfo(ctx context.Context, appID, faceSID, infoType string) (map[string]any, error)
}

// Bridge is the externally callable surface of the plugin. It holds the
// single shared SDK handle: at most one payment session is live at a time,
// and starting a new session cancels the run of the previous one.
type Bridge struct {
	sdk      wxpayface.SDK
	seq      *Sequencer
	users    UserInfoLookup
	repo     *Repository
	logger   *slog.Logger
	platform string

	ctx  context.Context
	stop context.CancelFunc
	wg   sync.WaitGroup

	mu        sync.Mutex
	session   *models.PaymentSession
	cancelRun context.CancelFunc
	subs      map[int]chan models.Outcome
	nextSub   int
}

func NewBridge(sdk wxpayface.SDK, seq *Sequencer, users UserInfoLookup, repo *Repository, logger *slog.Logger, cfg *Config) *Bridge {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if repo == nil {
		repo = NewRepository()
	}
	ctx, stop := context.WithCancel(context.Background())
	return &Bridge{
		sdk:      sdk,
		seq:      seq,
		users:    users,
		repo:     repo,
		logger:   logger.With(slog.String("component", "bridge")),
		platform: cfg.Platform(),
		ctx:      ctx,
		stop:     stop,
		subs:     make(map[int]chan models.Outcome),
	}
}

func (b *Bridge) GetPlatformVersion() string {
	return b.platform
}

// InitFacePay validates params, records a new session and starts the
// face-pay pipeline in the background. It returns as soon as the session is
// recorded; the payment outcome arrives through Subscribe and Outcome.
func (b *Bridge) InitFacePay(params map[string]any) (string, error) {
	if _, err := b.StartFacePay(params); err != nil {
		return "", err
	}
	return AckInitFacePay, nil
}

// StartFacePay is InitFacePay returning the recorded session.
func (b *Bridge) StartFacePay(params map[string]any) (*models.PaymentSession, error) {
	session, err := newSession(params)
	if err != nil {
		return nil, err
	}

	b.mu.Lock()
	if b.cancelRun != nil {
		b.logger.Warn("replacing live session", slog.String("session_id", b.session.ID))
		b.cancelRun()
	}
	runCtx, cancel := context.WithCancel(b.ctx)
	b.session = session
	b.cancelRun = cancel
	b.wg.Add(1)
	b.mu.Unlock()

	b.logger.Info("face pay session started",
		slog.String("session_id", session.ID),
		slog.String("mch_id", session.MerchantID),
		slog.String("store_id", session.StoreID),
		slog.String("telephone", maskPhone(session.Phone)),
		slog.String("amount", amount.Major(session.AmountMinorUnits)),
		slog.String("auth_type", session.AuthType),
	)

	go func() {
		defer b.wg.Done()
		defer cancel()
		outcome := b.seq.RunFacePay(runCtx, session)
		b.finish(session, outcome)
	}()

	return session, nil
}

func newSession(params map[string]any) (*models.PaymentSession, error) {
	values := make(map[string]string, len(requiredFacePayArgs))
	for _, field := range requiredFacePayArgs {
		v, err := stringArg(params, field)
		if err != nil {
			return nil, err
		}
		if v == "" {
			return nil, &models.MissingParameterError{Field: field}
		}
		values[field] = v
	}

	fee, err := amount.ParseMinorUnits(values[ArgTotalFee])
	if err != nil {
		return nil, &models.InvalidParameterError{Field: ArgTotalFee, Reason: err.Error()}
	}
	if !wxpayface.IsAuthType(values[ArgFaceAuthType]) {
		return nil, &models.InvalidParameterError{Field: ArgFaceAuthType, Reason: fmt.Sprintf("unknown auth type %q", values[ArgFaceAuthType])}
	}
	subAppID, err := stringArg(params, ArgSubAppID)
	if err != nil {
		return nil, err
	}
	subMchID, err := stringArg(params, ArgSubMchID)
	if err != nil {
		return nil, err
	}

	return &models.PaymentSession{
		ID:               uuid.New().String(),
		AppID:            values[ArgAppID],
		SubAppID:         subAppID,
		MerchantID:       values[ArgMchID],
		SubMerchantID:    subMchID,
		StoreID:          values[ArgStoreID],
		Phone:            values[ArgTelPhone],
		OpenID:           values[ArgOpenID],
		OrderID:          values[ArgOutTradeNo],
		AmountMinorUnits: fee,
		AuthType:         values[ArgFaceAuthType],
		CreatedAt:        time.Now().UTC(),
	}, nil
}

// stringArg returns params[field] as a string; absent or nil yields "".
func stringArg(params map[string]any, field string) (string, error) {
	raw, ok := params[field]
	if !ok || raw == nil {
		return "", nil
	}
	s, ok := raw.(string)
	if !ok {
		return "", &models.InvalidParameterError{Field: field, Reason: fmt.Sprintf("must be a string, got %T", raw)}
	}
	return s, nil
}

func (b *Bridge) finish(session *models.PaymentSession, outcome models.Outcome) {
	if err := b.repo.SaveOutcome(context.Background(), outcome); err != nil {
		b.logger.Error("saving outcome", slog.String("session_id", session.ID), slog.Any("err", err))
	}

	b.mu.Lock()
	if b.session == session {
		b.cancelRun = nil
	}
	subs := make([]chan models.Outcome, 0, len(b.subs))
	for _, ch := range b.subs {
		subs = append(subs, ch)
	}
	for _, ch := range subs {
		select {
		case ch <- outcome:
		default:
			b.logger.Warn("outcome subscriber is full; dropping", slog.String("session_id", session.ID))
		}
	}
	b.mu.Unlock()
}

// Subscribe returns a channel receiving every face-pay outcome produced
// after the call, and a function that ends the subscription.
func (b *Bridge) Subscribe() (<-chan models.Outcome, func()) {
	ch := make(chan models.Outcome, 16)

	b.mu.Lock()
	id := b.nextSub
	b.nextSub++
	b.subs[id] = ch
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			close(ch)
		})
	}
}

// Outcome returns the recorded outcome of a session, ErrNotFound while it runs.
func (b *Bridge) Outcome(ctx context.Context, sessionID string) (*models.Outcome, error) {
	o, err := b.repo.GetOutcome(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("finding outcome: %w", err)
	}
	return o, nil
}

func (b *Bridge) ListOutcomes(ctx context.Context, limit int) ([]*models.Outcome, error) {
	outcomes, err := b.repo.ListOutcomes(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("listing outcomes: %w", err)
	}
	return outcomes, nil
}

// Session returns the live session, if any.
func (b *Bridge) Session() (*models.PaymentSession, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.session == nil {
		return nil, false
	}
	cp := *b.session
	return &cp, true
}

// InitScanCodePay runs the scan-pay pipeline and returns the scan payload.
func (b *Bridge) InitScanCodePay(ctx context.Context) (wxpayface.Response, error) {
	return b.seq.RunScanPay(ctx)
}

// ReleaseWxPayFace cancels any running face-pay pipeline, drops the session
// and releases the SDK. It always reports success.
func (b *Bridge) ReleaseWxPayFace() string {
	b.mu.Lock()
	if b.cancelRun != nil {
		b.cancelRun()
		b.cancelRun = nil
	}
	b.session = nil
	b.mu.Unlock()

	if err := b.sdk.ReleaseWxpayface(); err != nil {
		b.logger.Warn("release sdk", slog.Any("err", err))
	}
	b.logger.Info("sdk released")
	return AckRelease
}

// RequestWxpayAuth asks the user to authorize real-name information release.
func (b *Bridge) RequestWxpayAuth(ctx context.Context, faceSID string) (wxpayface.Response, error) {
	if faceSID == "" {
		return nil, &models.MissingParameterError{Field: ArgFaceSID}
	}
	return b.seq.RunWxpayAuth(ctx, faceSID)
}

// QueryFaceUser looks up user information for faceSID under the live session's app.
func (b *Bridge) QueryFaceUser(ctx context.Context, faceSID, infoType string) (map[string]any, error) {
	if faceSID == "" {
		return nil, &models.MissingParameterError{Field: ArgFaceSID}
	}
	if infoType == "" {
		return nil, &models.MissingParameterError{Field: ArgInfoType}
	}
	session, ok := b.Session()
	if !ok {
		return nil, ErrNoSession
	}
	info, err := b.users.FaceUserInfo(ctx, session.AppID, faceSID, infoType)
	if err != nil {
		return nil, fmt.Errorf("query face user: %w", err)
	}
	return info, nil
}

// Wait blocks until every started face-pay pipeline has finished.
func (b *Bridge) Wait() {
	b.wg.Wait()
}

// Close cancels running pipelines and waits for them.
func (b *Bridge) Close() {
	b.stop()
	b.wg.Wait()
}

func maskPhone(p string) string {
	if len(p) <= 4 {
		return p
	}
	if len(p) < 7 {
		return "***" + p[len(p)-4:]
	}
	return p[:3] + "****" + p[len(p)-4:]
}
