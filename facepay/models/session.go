package models

import "time"

// PaymentSession holds the parameters of one initFacePay call.
// Fields are written once when the session is created.
type PaymentSession struct {
    ID               string    `json:"id"`
    AppID            string    `json:"app_id"`
    SubAppID         string    `json:"sub_app_id,omitempty"`
    MerchantID       string    `json:"mch_id"`
    SubMerchantID    string    `json:"sub_mch_id,omitempty"`
    StoreID          string    `json:"store_id"`
    Phone            string    `json:"telephone"`
    OpenID           string    `json:"openid"`
    OrderID          string    `json:"out_trade_no"`
    AmountMinorUnits int64     `json:"total_fee"`
    AuthType         string    `json:"face_authtype"`
    CreatedAt        time.Time `json:"created_at"`
}
