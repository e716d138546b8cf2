package wxpayface

// Response keys.
const (
	KeyReturnCode = "return_code"
	KeyReturnMsg  = "return_msg"
	KeyErrCode    = "err_code"
	KeyCodeMsg    = "code_msg"
	KeyRawData    = "rawdata"
	KeyFaceSID    = "face_sid"
	KeyOpenID     = "openid"
	KeyFaceCode   = "face_code"
)

// Request parameter keys.
const (
	ParamFaceAuthType = "face_authtype"
	ParamAppID        = "appid"
	ParamSubAppID     = "sub_appid"
	ParamMchID        = "mch_id"
	ParamMchName      = "mch_name"
	ParamSubMchID     = "sub_mch_id"
	ParamStoreID      = "store_id"
	ParamAuthInfo     = "authinfo"
	ParamFaceSID      = "face_sid"
	ParamInfoType     = "info_type"
	ParamOutTradeNo   = "out_trade_no"
	ParamTotalFee     = "total_fee"
	ParamTelephone    = "telephone"
	ParamOpenID       = "openid"
)

// Values of return_code.
const (
	CodeSuccess     = "SUCCESS"
	CodeUserCancel  = "USER_CANCEL"
	CodeScanPayment = "SCAN_PAYMENT"
	CodeError       = "ERROR"
)

// Face auth types accepted by GetWxpayfaceCode.
const (
	AuthTypeFacePay      = "FACEPAY"
	AuthTypeFacePayDelay = "FACEPAY_DELAY"
	AuthTypeFaceAuth     = "FACE_AUTH"
	AuthTypeFaceIDOnce   = "FACEID-ONCE"
	AuthTypeFaceIDLoop   = "FACEID-LOOP"
	AuthTypeScanCode     = "SCAN_CODE"
)

var authTypes = map[string]struct{}{
	AuthTypeFacePay:      {},
	AuthTypeFacePayDelay: {},
	AuthTypeFaceAuth:     {},
	AuthTypeFaceIDOnce:   {},
	AuthTypeFaceIDLoop:   {},
	AuthTypeScanCode:     {},
}

// IsAuthType reports whether s is a face auth type the SDK understands.
func IsAuthType(s string) bool {
	_, ok := authTypes[s]
	return ok
}
