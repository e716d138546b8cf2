package facepay_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/parsec/wechat-face-payment/facepay"
	"github.com/parsec/wechat-face-payment/facepay/models"
	"github.com/parsec/wechat-face-payment/internal/wxpayface"
	"github.com/stretchr/testify/require"
)

type usersStub struct {
	appID, faceSID, infoType string
	info                     map[string]any
	err                      error
}

func (u *usersStub) FaceUserInfo(ctx context.Context, appID, faceSID, infoType string) (map[string]any, error) {
	u.appID, u.faceSID, u.infoType = appID, faceSID, infoType
	return u.info, u.err
}

func newBridge(t *testing.T, sim *wxpayface.Simulator, timeout time.Duration) (*facepay.Bridge, *usersStub) {
	t.Helper()
	cfg := facepay.DefaultConfig()
	cfg.CallbackTimeout = timeout
	cfg.PlatformVersion = "Android 9"
	users := &usersStub{info: map[string]any{"return_code": "SUCCESS", "name": "Z***"}}
	seq := facepay.NewSequencer(sim, &authStub{token: "AUTH-TOKEN"}, discardLogger(), cfg)
	b := facepay.NewBridge(sim, seq, users, facepay.NewRepository(), discardLogger(), cfg)
	t.Cleanup(b.Close)
	return b, users
}

func facePayArgs() map[string]any {
	return map[string]any{
		"appId":        "A1",
		"mchId":        "M1",
		"storeId":      "S1",
		"telPhone":     "13800000000",
		"openId":       "O1",
		"outTradeNo":   "T1",
		"totalFee":     "100",
		"faceAuthType": "FACEID-ONCE",
	}
}

func nextOutcome(t *testing.T, ch <-chan models.Outcome) models.Outcome {
	t.Helper()
	select {
	case o := <-ch:
		return o
	case <-time.After(5 * time.Second):
		t.Fatal("no outcome delivered")
		return models.Outcome{}
	}
}

func TestBridge_GetPlatformVersion(t *testing.T) {
	b, _ := newBridge(t, wxpayface.NewSimulator(), time.Second)
	require.Equal(t, "Android 9", b.GetPlatformVersion())
}

func TestBridge_InitFacePay_Validation(t *testing.T) {
	missing := []string{"appId", "mchId", "storeId", "telPhone", "openId", "outTradeNo", "totalFee", "faceAuthType"}
	for _, field := range missing {
		t.Run("absent "+field, func(t *testing.T) {
			sim := wxpayface.NewSimulator()
			b, _ := newBridge(t, sim, time.Second)
			args := facePayArgs()
			delete(args, field)

			ack, err := b.InitFacePay(args)
			require.Empty(t, ack)
			var mp *models.MissingParameterError
			require.ErrorAs(t, err, &mp)
			require.Equal(t, field, mp.Field)
			require.Empty(t, sim.Calls())
		})
		t.Run("empty "+field, func(t *testing.T) {
			sim := wxpayface.NewSimulator()
			b, _ := newBridge(t, sim, time.Second)
			args := facePayArgs()
			args[field] = ""

			_, err := b.InitFacePay(args)
			var mp *models.MissingParameterError
			require.ErrorAs(t, err, &mp)
			require.Equal(t, field, mp.Field)
			require.Empty(t, sim.Calls())
		})
	}

	t.Run("first missing field wins", func(t *testing.T) {
		b, _ := newBridge(t, wxpayface.NewSimulator(), time.Second)
		_, err := b.InitFacePay(map[string]any{"telPhone": "1"})
		require.EqualError(t, err, "missing parameter: appId")
	})

	invalid := []struct {
		name  string
		field string
		value any
	}{
		{"fractional fee", "totalFee", "1.5"},
		{"zero fee", "totalFee", "0"},
		{"exponent fee", "totalFee", "1e2"},
		{"numeric fee", "totalFee", float64(100)},
		{"unknown auth type", "faceAuthType", "FACE-ANY"},
		{"numeric sub merchant", "subMchId", 12},
	}
	for _, c := range invalid {
		t.Run(c.name, func(t *testing.T) {
			sim := wxpayface.NewSimulator()
			b, _ := newBridge(t, sim, time.Second)
			args := facePayArgs()
			args[c.field] = c.value

			_, err := b.InitFacePay(args)
			var ip *models.InvalidParameterError
			require.ErrorAs(t, err, &ip)
			require.Equal(t, c.field, ip.Field)
			require.Empty(t, sim.Calls())
		})
	}
}

func TestBridge_InitFacePay_Success(t *testing.T) {
	sim := wxpayface.NewSimulator()
	b, _ := newBridge(t, sim, time.Second)
	outcomes, unsubscribe := b.Subscribe()
	defer unsubscribe()

	ack, err := b.InitFacePay(facePayArgs())
	require.NoError(t, err)
	require.Equal(t, "initFacePay SUCCESS", ack)

	session, ok := b.Session()
	require.True(t, ok)
	require.Equal(t, int64(100), session.AmountMinorUnits)
	require.Equal(t, "T1", session.OrderID)

	outcome := nextOutcome(t, outcomes)
	require.Equal(t, session.ID, outcome.SessionID)
	require.Equal(t, models.OutcomePaymentSuccess, outcome.Status)
	require.NotEmpty(t, outcome.OrderRef)

	b.Wait()
	stored, err := b.Outcome(context.Background(), session.ID)
	require.NoError(t, err)
	require.Equal(t, outcome.Status, stored.Status)

	params := sim.LastParams(wxpayface.MethodFaceCode)
	require.Equal(t, "AUTH-TOKEN", params["authinfo"])
	require.Equal(t, "100", params["total_fee"])
	require.Equal(t, outcome.OrderRef, params["out_trade_no"])
}

func TestBridge_InitFacePay_SdkError(t *testing.T) {
	sim := wxpayface.NewSimulator()
	sim.FaceCode = wxpayface.Step{Response: wxpayface.Response{"return_code": "ERROR", "return_msg": "face not detected"}}
	b, _ := newBridge(t, sim, time.Second)
	outcomes, unsubscribe := b.Subscribe()
	defer unsubscribe()

	ack, err := b.InitFacePay(facePayArgs())
	require.NoError(t, err)
	require.Equal(t, facepay.AckInitFacePay, ack)

	outcome := nextOutcome(t, outcomes)
	require.Equal(t, models.OutcomeSdkError, outcome.Status)
	require.Equal(t, "face not detected", outcome.Message)
	require.False(t, outcome.Paid())
}

func TestBridge_NewSessionCancelsPrevious(t *testing.T) {
	sim := wxpayface.NewSimulator()
	sim.FaceCode = wxpayface.Step{Silent: true}
	b, _ := newBridge(t, sim, 0)
	outcomes, unsubscribe := b.Subscribe()
	defer unsubscribe()

	first, err := b.StartFacePay(facePayArgs())
	require.NoError(t, err)
	second, err := b.StartFacePay(facePayArgs())
	require.NoError(t, err)
	require.NotEqual(t, first.ID, second.ID)

	outcome := nextOutcome(t, outcomes)
	require.Equal(t, first.ID, outcome.SessionID)
	require.Equal(t, models.OutcomeFailed, outcome.Status)
	require.Contains(t, outcome.Error, context.Canceled.Error())

	live, ok := b.Session()
	require.True(t, ok)
	require.Equal(t, second.ID, live.ID)
}

func TestBridge_ReleaseWxPayFace(t *testing.T) {
	sim := wxpayface.NewSimulator()
	sim.FaceCode = wxpayface.Step{Silent: true}
	b, _ := newBridge(t, sim, 0)
	outcomes, unsubscribe := b.Subscribe()
	defer unsubscribe()

	session, err := b.StartFacePay(facePayArgs())
	require.NoError(t, err)

	require.Equal(t, "SUCCESS", b.ReleaseWxPayFace())

	outcome := nextOutcome(t, outcomes)
	require.Equal(t, session.ID, outcome.SessionID)
	require.Equal(t, models.OutcomeFailed, outcome.Status)

	_, ok := b.Session()
	require.False(t, ok)
	require.Equal(t, 1, sim.Count(wxpayface.MethodRelease))

	// releasing without a session still succeeds
	require.Equal(t, "SUCCESS", b.ReleaseWxPayFace())
}

func TestBridge_InitScanCodePay(t *testing.T) {
	t.Run("scan event", func(t *testing.T) {
		sim := wxpayface.NewSimulator()
		b, _ := newBridge(t, sim, time.Second)

		info, err := b.InitScanCodePay(context.Background())
		require.NoError(t, err)
		require.Equal(t, "134500000000000000", info["code_msg"])
		require.Equal(t, 1, sim.Count(wxpayface.MethodStopScanner))
	})

	t.Run("scanner failure", func(t *testing.T) {
		sim := wxpayface.NewSimulator()
		sim.Scanner = wxpayface.Step{Response: wxpayface.Response{"return_code": "ERROR", "return_msg": "scanner busy"}}
		b, _ := newBridge(t, sim, time.Second)

		_, err := b.InitScanCodePay(context.Background())
		require.Error(t, err)
		require.Contains(t, err.Error(), "ERROR")
		require.Contains(t, err.Error(), "scanner busy")
		require.Equal(t, 1, sim.Count(wxpayface.MethodStopScanner))
	})
}

func TestBridge_QueryFaceUser(t *testing.T) {
	b, users := newBridge(t, wxpayface.NewSimulator(), time.Second)

	_, err := b.QueryFaceUser(context.Background(), "SID", "1")
	require.ErrorIs(t, err, facepay.ErrNoSession)

	_, err = b.QueryFaceUser(context.Background(), "", "1")
	var mp *models.MissingParameterError
	require.ErrorAs(t, err, &mp)
	require.Equal(t, "faceSid", mp.Field)

	_, err = b.InitFacePay(facePayArgs())
	require.NoError(t, err)
	b.Wait()

	info, err := b.QueryFaceUser(context.Background(), "SID", "1")
	require.NoError(t, err)
	require.Equal(t, "Z***", info["name"])
	require.Equal(t, "A1", users.appID)
	require.Equal(t, "SID", users.faceSID)

	users.err = errors.New("boom")
	_, err = b.QueryFaceUser(context.Background(), "SID", "1")
	require.ErrorContains(t, err, "boom")
}

func TestBridge_RequestWxpayAuth(t *testing.T) {
	sim := wxpayface.NewSimulator()
	b, _ := newBridge(t, sim, time.Second)

	_, err := b.RequestWxpayAuth(context.Background(), "")
	var mp *models.MissingParameterError
	require.ErrorAs(t, err, &mp)
	require.Empty(t, sim.Calls())

	info, err := b.RequestWxpayAuth(context.Background(), "SID-9")
	require.NoError(t, err)
	require.Equal(t, "SUCCESS", info["return_code"])
	require.Equal(t, "SID-9", sim.LastParams(wxpayface.MethodAuth)["face_sid"])
}

func TestBridge_Unsubscribe(t *testing.T) {
	b, _ := newBridge(t, wxpayface.NewSimulator(), time.Second)
	ch, unsubscribe := b.Subscribe()
	unsubscribe()
	unsubscribe()

	_, open := <-ch
	require.False(t, open)

	_, err := b.InitFacePay(facePayArgs())
	require.NoError(t, err)
	b.Wait()

	outcomes, err := b.ListOutcomes(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, outcomes, 1)
}
