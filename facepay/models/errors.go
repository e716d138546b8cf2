package models

import "fmt"

// MissingParameterError is returned when a required bridge argument is absent or empty.
type MissingParameterError struct {
	Field string
}

func (e *MissingParameterError) Error() string {
	return fmt.Sprintf("missing parameter: %s", e.Field)
}

// InvalidParameterError is returned when a bridge argument is present but unusable.
type InvalidParameterError struct {
	Field  string
	Reason string
}

func (e *InvalidParameterError) Error() string {
	return fmt.Sprintf("invalid parameter %s: %s", e.Field, e.Reason)
}

// CodeRawDataMissing marks a raw-data reply that reported SUCCESS without a rawdata field.
const CodeRawDataMissing = "RAWDATA_MISSING"

// SdkFailure is an SDK reply whose return_code is not SUCCESS.
type SdkFailure struct {
	Code    string
	ErrCode string
	Message string
	Payload map[string]string
}

func (e *SdkFailure) Error() string {
	if e.ErrCode != "" {
		return fmt.Sprintf("sdk failure: return_code=%s err_code=%s return_msg=%s", e.Code, e.ErrCode, e.Message)
	}
	return fmt.Sprintf("sdk failure: return_code=%s return_msg=%s", e.Code, e.Message)
}

// ChannelCode is the error code reported to the host: err_code when the SDK
// supplied one, otherwise return_code.
func (e *SdkFailure) ChannelCode() string {
	if e.ErrCode != "" {
		return e.ErrCode
	}
	if e.Code != "" {
		return e.Code
	}
	return "SDK_FAILURE"
}
