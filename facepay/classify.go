package facepay

import (
	"github.com/parsec/wechat-face-payment/facepay/models"
	"github.com/parsec/wechat-face-payment/internal/wxpayface"
)

// Classify decides whether an SDK reply is a success. It returns nil for a
// reply whose return_code is SUCCESS and a *models.SdkFailure otherwise.
// Only return_code, return_msg and err_code are inspected.
func Classify(info wxpayface.Response) error {
	if info == nil {
		return &models.SdkFailure{Message: "empty sdk response"}
	}
	code, ok := info.Get(wxpayface.KeyReturnCode)
	if ok && code == wxpayface.CodeSuccess {
		return nil
	}
	msg, _ := info.Get(wxpayface.KeyReturnMsg)
	errCode, _ := info.Get(wxpayface.KeyErrCode)
	if !ok {
		msg = "return_code missing: " + msg
	}
	return &models.SdkFailure{
		Code:    code,
		ErrCode: errCode,
		Message: msg,
		Payload: info.Clone(),
	}
}
