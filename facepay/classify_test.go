package facepay_test

import (
	"errors"
	"testing"

	"github.com/parsec/wechat-face-payment/facepay"
	"github.com/parsec/wechat-face-payment/facepay/models"
	"github.com/parsec/wechat-face-payment/internal/wxpayface"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		name string
		info wxpayface.Response
		ok   bool
		code string
	}{
		{"success", wxpayface.Response{"return_code": "SUCCESS", "return_msg": "ok"}, true, ""},
		{"nil", nil, false, ""},
		{"empty", wxpayface.Response{}, false, ""},
		{"missing code", wxpayface.Response{"return_msg": "no code", "rawdata": "R"}, false, ""},
		{"failure", wxpayface.Response{"return_code": "ERROR", "return_msg": "camera busy"}, false, "ERROR"},
		{"lowercase", wxpayface.Response{"return_code": "success"}, false, "success"},
		{"user cancel", wxpayface.Response{"return_code": "USER_CANCEL"}, false, "USER_CANCEL"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			err := facepay.Classify(c.info)
			if c.ok {
				require.NoError(t, err)
				return
			}
			var failure *models.SdkFailure
			require.True(t, errors.As(err, &failure))
			require.Equal(t, c.code, failure.Code)
		})
	}
}

func TestClassify_CarriesErrCodeAndPayload(t *testing.T) {
	info := wxpayface.Response{"return_code": "FAIL", "return_msg": "scan timeout", "err_code": "SCAN_TIMEOUT"}
	err := facepay.Classify(info)

	var failure *models.SdkFailure
	require.ErrorAs(t, err, &failure)
	require.Equal(t, "SCAN_TIMEOUT", failure.ChannelCode())
	require.Equal(t, "scan timeout", failure.Message)
	require.Equal(t, "FAIL", failure.Payload["return_code"])

	// the payload is a copy
	info["return_code"] = "SUCCESS"
	require.Equal(t, "FAIL", failure.Payload["return_code"])
}
