package models

import "time"

// OutcomeStatus is the terminal state of a face-pay run.
type OutcomeStatus string

const (
    OutcomePaymentSuccess      OutcomeStatus = "PAYMENT_SUCCESS"
    OutcomeUserCancelled       OutcomeStatus = "USER_CANCELLED"
    OutcomeRedirectedToScanPay OutcomeStatus = "REDIRECTED_TO_SCAN_PAY"
    OutcomeSdkError            OutcomeStatus = "SDK_ERROR"
    // OutcomeUnrecognized is a face-code reply whose return_code is not one of the four known codes.
    OutcomeUnrecognized OutcomeStatus = "UNRECOGNIZED"
    // OutcomeFailed means the run stopped before the face-code step produced a reply.
    OutcomeFailed OutcomeStatus = "FAILED"
)

// Stage names the pipeline step an outcome was produced at.
type Stage string

const (
    StageInit     Stage = "init"
    StageRawData  Stage = "raw_data"
    StageAuthInfo Stage = "auth_info"
    StageFaceCode Stage = "face_code"
)

type Outcome struct {
    SessionID   string            `json:"session_id"`
    OrderRef    string            `json:"order_ref,omitempty"`
    Status      OutcomeStatus     `json:"status"`
    Stage       Stage             `json:"stage"`
    Code        string            `json:"code,omitempty"`
    Message     string            `json:"message,omitempty"`
    Payload     map[string]string `json:"payload,omitempty"`
    Error       string            `json:"error,omitempty"`
    CompletedAt time.Time         `json:"completed_at"`
}

// Paid reports whether the outcome is a completed payment.
func (o Outcome) Paid() bool {
    return o.Status == OutcomePaymentSuccess
}
